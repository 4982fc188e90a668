// Package blob stores uploaded documents in object storage.
package blob

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Store is the object storage interface the pipeline depends on.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds the storage key for one uploaded file. The ULID keeps
// keys unique and time-sortable within an owner's prefix.
func ObjectKey(ownerID, fileName string) string {
	return fmt.Sprintf("uploads/%s/%s-%s", ownerID, ulid.Make(), sanitizeName(fileName))
}

func sanitizeName(name string) string {
	base := filepath.Base(name)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
