package storage

import (
	"io"
	"path"
	"strings"
)

// BlobStore holds essay attachments. Keys are forward-slash paths scoped
// under an attempt; the database only ever stores the key.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	Delete(key string) error
	// PublicURL maps a key to the path the asset route serves it under.
	PublicURL(key string) (string, error)
}

// AttachmentKey builds the canonical blob key for an essay attachment.
// The filename is flattened to its base name so uploads cannot escape the
// attempt's prefix.
func AttachmentKey(attemptID, questionID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "upload.bin"
	}
	return path.Join("attempts", attemptID, questionID, name)
}
