// Package storage provides the blob store collaborators the user directory
// persists through: S3-compatible object storage, a local directory, and an
// in-memory map.
package storage

import "context"

// Backend downloads and uploads named text blobs. DownloadText returns an
// error wrapping common.ErrorNotFound when the key is absent; transport
// failures wrap common.ErrStorage.
type Backend interface {
	DownloadText(ctx context.Context, key string) (string, error)
	UploadText(ctx context.Context, key, text string) error
}
