package service

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ============================================================
// Object Storage
// ============================================================

var ErrInvalidKey = errors.New("invalid object key")

// ObjectStore keeps uploaded files on disk and hands out public URLs.
type ObjectStore struct {
	root      string
	publicURL string
	now       func() time.Time
}

func NewObjectStore(root, publicURL string) *ObjectStore {
	return &ObjectStore{
		root:      root,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

// FloorPlanKey строит ключ floor-plans/{unixmillis}-{filename}.
func (s *ObjectStore) FloorPlanKey(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	return fmt.Sprintf("floor-plans/%d-%s", s.now().UnixMilli(), base)
}

// Path maps a key below the storage root. Keys with a ".." segment are
// rejected; dots inside a file name are fine.
func (s *ObjectStore) Path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", ErrInvalidKey
	}
	for _, seg := range strings.Split(strings.ReplaceAll(key, "\\", "/"), "/") {
		if seg == ".." {
			return "", ErrInvalidKey
		}
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func (s *ObjectStore) URL(key string) string {
	return s.publicURL + "/" + key
}

// Put сохраняет объект и возвращает его публичный URL.
func (s *ObjectStore) Put(key string, data []byte) (string, error) {
	target, err := s.Path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("mkdir object dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	return s.URL(key), nil
}

func (s *ObjectStore) Get(key string) ([]byte, error) {
	target, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(target)
}

func (s *ObjectStore) Delete(key string) error {
	target, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
