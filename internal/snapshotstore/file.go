package snapshotstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/xxxsen/bingio/internal/conversation"
	appErr "github.com/xxxsen/bingio/internal/pkg/errors"
)

type fileConfig struct {
	Path string `json:"path"`
}

type fileStore struct {
	path string
}

func init() {
	Register("file", createFileStore)
}

func createFileStore(args interface{}) (conversation.SnapshotStorage, error) {
	cfg := &fileConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("file snapshot store path is required")
	}
	return NewFile(cfg.Path), nil
}

func NewFile(path string) conversation.SnapshotStorage {
	return &fileStore{path: path}
}

func (s *fileStore) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Save replaces the file atomically so a crash never leaves a torn snapshot.
func (s *fileStore) Save(ctx context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
