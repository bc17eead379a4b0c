package interfaces

import "context"

// ObjectStore writes and reads the rendered page artifacts. Upload methods
// return the object path the blob was written to; a path recorded on a page
// row guarantees the blob exists.
type ObjectStore interface {
	UploadHTML(ctx context.Context, jobID, url string, content []byte) (string, error)
	UploadMarkdown(ctx context.Context, jobID, url string, content []byte) (string, error)
	GetObject(ctx context.Context, path string) ([]byte, error)
	DeleteObject(ctx context.Context, path string) error
	Ping(ctx context.Context) error
}
