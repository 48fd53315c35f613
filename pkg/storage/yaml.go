package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"mercator-hq/callisto/pkg/model"
)

// yamlDocument is the on-disk layout of the proxy list file.
type yamlDocument struct {
	Proxies []model.Record `yaml:"proxies"`
}

// YAMLStore keeps the proxy list in a YAML file.
//
//	proxies:
//	  - template: "https://%h.ezproxy.example.edu/%p"
//	    multi_host: true
//	    auto_associate: true
//	    hosts: [journal.example.org]
type YAMLStore struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
	// last is the file content as last read or written by this store.
	last []byte
}

// NewYAMLStore creates a store for path. The file does not need to exist.
func NewYAMLStore(path string, logger *slog.Logger) (*YAMLStore, error) {
	if path == "" {
		return nil, NewStorageError("yaml", "open", fmt.Errorf("path cannot be empty"))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YAMLStore{
		path:   path,
		logger: logger.With("component", "storage.yaml"),
	}, nil
}

// Path returns the file path.
func (s *YAMLStore) Path() string {
	return s.path
}

// Load implements registry.Store. A missing file is an empty list.
func (s *YAMLStore) Load(ctx context.Context) ([]model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.last = nil
		return nil, nil
	}
	if err != nil {
		return nil, NewStorageError("yaml", "read", err)
	}

	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, NewStorageError("yaml", "parse", err)
	}
	s.last = data
	return doc.Proxies, nil
}

// Save implements registry.Store. The file is replaced atomically.
func (s *YAMLStore) Save(ctx context.Context, records []model.Record) error {
	if records == nil {
		records = []model.Record{}
	}
	data, err := yaml.Marshal(yamlDocument{Proxies: records})
	if err != nil {
		return NewStorageError("yaml", "encode", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NewStorageError("yaml", "mkdir", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return NewStorageError("yaml", "write", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return NewStorageError("yaml", "write", err)
	}
	if err := tmp.Close(); err != nil {
		return NewStorageError("yaml", "write", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return NewStorageError("yaml", "rename", err)
	}

	s.last = data
	s.logger.Debug("proxy list saved", "path", s.path, "count", len(records))
	return nil
}

// ChangedExternally reports whether the file content differs from what this
// store last read or wrote.
func (s *YAMLStore) ChangedExternally() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return s.last != nil
	}
	return !bytes.Equal(data, s.last)
}

// Close implements Backend.
func (s *YAMLStore) Close() error {
	return nil
}

// Watch calls reload whenever the file is changed by another process. Writes
// made through Save are ignored. It blocks until ctx is cancelled.
func (s *YAMLStore) Watch(ctx context.Context, reload func(ctx context.Context) error) error {
	fw, err := NewFileWatcher(s.path, DefaultDebounceInterval, s.logger)
	if err != nil {
		return NewStorageError("yaml", "watch", err)
	}
	defer fw.Stop()

	return fw.Watch(ctx, func() error {
		if !s.ChangedExternally() {
			return nil
		}
		s.logger.Info("proxy list edited externally, reloading", "path", s.path)
		return reload(ctx)
	})
}
