package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/sma-roster/pkg/storage"
)

// FileMirrorBackend keeps one JSON file per key under a directory.
type FileMirrorBackend struct {
	storage *storage.LocalStorage
}

// NewFileMirrorBackend builds a file backend over local storage.
func NewFileMirrorBackend(store *storage.LocalStorage) *FileMirrorBackend {
	return &FileMirrorBackend{storage: store}
}

// Read returns the contents of the files that exist.
func (b *FileMirrorBackend) Read(ctx context.Context, keys ...string) (map[string][]byte, error) {
	values := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, ok, err := b.storage.Read(fileName(key))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		if ok {
			values[key] = data
		}
	}
	return values, nil
}

// WriteAll writes each entry atomically, in order. The files are not written as one unit, so
// callers order classes before the students referencing them.
func (b *FileMirrorBackend) WriteAll(ctx context.Context, entries []MirrorEntry) error {
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.storage.SaveAtomic(fileName(entry.Key), entry.Value); err != nil {
			return fmt.Errorf("write %s: %w", entry.Key, err)
		}
	}
	return nil
}

func fileName(key string) string {
	return key + ".json"
}
