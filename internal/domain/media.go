package domain

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// MediaTypeFor classifies a declared content type.
func MediaTypeFor(contentType string) MediaType {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return MediaTypeImage
	}
	return MediaTypeVideo
}

// MediaItem is one uploaded image or video attached to a car.
type MediaItem struct {
	Filename     string    `json:"filename,omitempty"`
	URL          string    `json:"url"`
	Type         MediaType `json:"type"`
	Size         int64     `json:"size,omitempty"`
	OriginalName string    `json:"originalName,omitempty"`
}

// MediaList is the ordered gallery of a car. Its JSON decoder is the
// single place legacy encodings are canonicalised:
//
//   - null or absent            -> []
//   - a JSON-encoded string     -> decoded recursively, [] when unparseable
//   - an array of bare URLs     -> [{url, type: "image"}]
//   - an array of objects       -> kept, missing type defaults to "image"
type MediaList []MediaItem

func (m MediaList) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]MediaItem(m))
}

func (m *MediaList) UnmarshalJSON(data []byte) error {
	*m = canonicalMedia(data, 0)
	return nil
}

// Filenames lists the on-disk names referenced by the gallery.
func (m MediaList) Filenames() []string {
	names := make([]string, 0, len(m))
	for _, item := range m {
		if item.Filename != "" {
			names = append(names, item.Filename)
		}
	}
	return names
}

// Absolute returns a copy whose site-relative URLs are prefixed with base
// (scheme://host). URLs that already carry a scheme, or are
// protocol-relative, are kept.
func (m MediaList) Absolute(base string) MediaList {
	out := make(MediaList, len(m))
	base = strings.TrimRight(base, "/")
	for i, item := range m {
		out[i] = item
		out[i].URL = absoluteURL(base, item.URL)
	}
	return out
}

// schemePrefix matches an RFC 3986 scheme followed by its colon
var schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)

func absoluteURL(base, raw string) string {
	if raw == "" || schemePrefix.MatchString(raw) || strings.HasPrefix(raw, "//") {
		return raw
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return base + raw
}

// legacy string encodings can nest; stop after a few levels.
const maxMediaNesting = 4

func canonicalMedia(data []byte, depth int) MediaList {
	data = bytes.TrimSpace(data)
	out := MediaList{}
	if len(data) == 0 || depth > maxMediaNesting {
		return out
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return out
		}
		return canonicalMedia([]byte(s), depth+1)
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return out
		}
		for _, elem := range elems {
			if item, ok := canonicalMediaItem(elem); ok {
				out = append(out, item)
			}
		}
	}
	return out
}

func canonicalMediaItem(elem json.RawMessage) (MediaItem, bool) {
	elem = bytes.TrimSpace(elem)
	if len(elem) == 0 {
		return MediaItem{}, false
	}

	switch elem[0] {
	case '"':
		var u string
		if err := json.Unmarshal(elem, &u); err != nil || u == "" {
			return MediaItem{}, false
		}
		return MediaItem{URL: u, Type: MediaTypeImage}, true
	case '{':
		var item MediaItem
		if err := json.Unmarshal(elem, &item); err != nil {
			return MediaItem{}, false
		}
		if item.URL == "" && item.Filename != "" {
			item.URL = "/uploads/" + item.Filename
		}
		if item.URL == "" {
			return MediaItem{}, false
		}
		if item.Type == "" {
			item.Type = MediaTypeImage
		}
		return item, true
	}
	return MediaItem{}, false
}
