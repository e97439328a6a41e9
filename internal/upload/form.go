package upload

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
)

// FieldName is the multipart field carrying media files
const FieldName = "media"

// maxMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files.
const maxMemory = 32 << 20

var ErrPayloadTooLarge = errors.New("upload exceeds the size limit")

// ReadForm parses a request body of at most maxBytes. Multipart bodies are
// read completely before anything is stored, so an oversized request
// never leaves files behind. Non-multipart bodies yield a nil form.
// Callers must call RemoveAll on a non-nil form.
func ReadForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	err := r.ParseMultipartForm(maxMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			return nil, fmt.Errorf("%w: limit is %d bytes", ErrPayloadTooLarge, maxBytes)
		}
		return nil, fmt.Errorf("failed to parse multipart form: %w", err)
	}

	return r.MultipartForm, nil
}

// Files returns the media parts of a parsed form
func Files(form *multipart.Form) []*multipart.FileHeader {
	if form == nil {
		return nil
	}
	return form.File[FieldName]
}
