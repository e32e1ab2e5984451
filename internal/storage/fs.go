package storage

import (
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrBadKey rejects keys that would resolve outside the store root.
var ErrBadKey = errors.New("key escapes store root")

// FSStore keeps attachments on the local disk, the default for a
// single-host school deployment. publicBase is the route prefix the
// asset handler serves blobs under.
type FSStore struct {
	base       string
	publicBase string
}

func NewFSStore(base, publicBase string) (*FSStore, error) {
	if base == "" {
		base = "./data/attachments"
	}
	if publicBase == "" {
		publicBase = "/assets"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

// resolve maps a key to a path under base. Absolute keys and any key
// carrying a ".." element are refused.
func (s *FSStore) resolve(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrBadKey
	}
	for _, el := range strings.Split(key, "/") {
		if el == ".." {
			return "", ErrBadKey
		}
	}
	clean := path.Clean(key)
	if clean == "." {
		return "", ErrBadKey
	}
	return filepath.Join(s.base, filepath.FromSlash(clean)), nil
}

func (s *FSStore) Put(key string, r io.Reader) (string, error) {
	dst, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return key, nil
}

func (s *FSStore) Get(key string) (io.ReadCloser, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Delete removes the blob; a missing key is not an error, so a learner
// purge can run twice.
func (s *FSStore) Delete(key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FSStore) PublicURL(key string) (string, error) {
	if _, err := s.resolve(key); err != nil {
		return "", err
	}
	return s.publicBase + "/" + strings.TrimLeft(key, "/"), nil
}
