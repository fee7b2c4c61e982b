package ports

import "context"

// Document is an exported artifact ready for download.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// DocumentSink surfaces exported documents to the user.
// It returns a location (path, URL or key) describing where the document went.
type DocumentSink interface {
	Deliver(ctx context.Context, doc Document) (string, error)
}
