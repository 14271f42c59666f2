// Package archive stores opaque blobs such as cached price panels.
package archive

import "context"

// Storage defines the interface for blob storage backends.
// Read returns core.ErrNotFound when nothing is stored at path.
type Storage interface {
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}
