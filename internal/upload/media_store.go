package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"car-showroom/internal/domain"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// URLPrefix is the site-relative path uploaded files are served under
const URLPrefix = "/uploads/"

const createAttempts = 5

var safeExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// MediaStore persists uploaded files into one flat directory
type MediaStore struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewMediaStore creates the upload directory if needed
func NewMediaStore(dir string, logger *zap.Logger) (*MediaStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &MediaStore{dir: dir, logger: logger, now: time.Now}, nil
}

// Dir returns the upload directory
func (s *MediaStore) Dir() string {
	return s.dir
}

// GenerateFilename returns <unix-millis>-<random><ext> for an upload
func GenerateFilename(now time.Time, originalName string) string {
	ext := filepath.Ext(filepath.Base(originalName))
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	return fmt.Sprintf("%d-%d%s", now.UnixMilli(), rand.IntN(1_000_000_000), ext)
}

// Save stores one uploaded part and describes it as a media item. The
// declared content type decides image vs video; content is only sniffed
// when the client declared none.
func (s *MediaStore) Save(ctx context.Context, fh *multipart.FileHeader) (domain.MediaItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.MediaItem{}, err
	}

	src, err := fh.Open()
	if err != nil {
		return domain.MediaItem{}, fmt.Errorf("failed to open upload %q: %w", fh.Filename, err)
	}
	defer src.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		mt, err := mimetype.DetectReader(src)
		if err == nil {
			contentType = mt.String()
		}
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return domain.MediaItem{}, fmt.Errorf("failed to rewind upload %q: %w", fh.Filename, err)
		}
	}

	dst, name, err := s.create(fh.Filename)
	if err != nil {
		return domain.MediaItem{}, err
	}

	written, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.dir, name))
		return domain.MediaItem{}, fmt.Errorf("failed to write upload %q: %w", fh.Filename, err)
	}

	item := domain.MediaItem{
		Filename:     name,
		URL:          URLPrefix + name,
		Type:         domain.MediaTypeFor(contentType),
		Size:         written,
		OriginalName: fh.Filename,
	}

	s.logger.Debug("Stored upload",
		zap.String("filename", name),
		zap.String("original_name", fh.Filename),
		zap.String("content_type", contentType),
		zap.Int64("size", written),
	)
	return item, nil
}

// SaveAll stores every part in order. If any part fails, the parts
// already written for this call are removed again.
func (s *MediaStore) SaveAll(ctx context.Context, files []*multipart.FileHeader) (domain.MediaList, error) {
	media := make(domain.MediaList, 0, len(files))
	for _, fh := range files {
		item, err := s.Save(ctx, fh)
		if err != nil {
			s.RemoveAll(media)
			return nil, err
		}
		media = append(media, item)
	}
	return media, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *MediaStore) Remove(filename string) error {
	name := filepath.Base(filename)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return nil
	}

	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove upload %q: %w", name, err)
	}
	return nil
}

// RemoveAll deletes every locally stored file of the gallery, best effort
func (s *MediaStore) RemoveAll(media domain.MediaList) {
	for _, name := range media.Filenames() {
		if err := s.Remove(name); err != nil {
			s.logger.Warn("Failed to remove media file", zap.String("filename", name), zap.Error(err))
			continue
		}
		s.logger.Debug("Removed media file", zap.String("filename", name))
	}
}

func (s *MediaStore) create(originalName string) (*os.File, string, error) {
	for attempt := 0; attempt < createAttempts; attempt++ {
		name := GenerateFilename(s.now(), originalName)
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("failed to create upload file: %w", err)
		}
	}
	return nil, "", fmt.Errorf("failed to create upload file: name collisions after %d attempts", createAttempts)
}
