package pipeline

import "context"

// Document is one raw document handed to the pipeline. Hint is whatever the
// source uses to identify it (a path, a row key). A non-nil Err marks a
// document the source could not read; it is skipped and recorded, not fatal.
type Document struct {
	Hint string
	Body []byte
	Err  error
}

// Source enumerates a finite sequence of documents. Documents calls yield
// once per document, in order, and stops at the first error yield returns.
// An error returned by Documents itself aborts the run.
type Source interface {
	Documents(ctx context.Context, yield func(Document) error) error
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, yield func(Document) error) error

func (f SourceFunc) Documents(ctx context.Context, yield func(Document) error) error {
	return f(ctx, yield)
}

// ReadFailure records a document that was skipped.
type ReadFailure struct {
	Hint string
	Err  error
}
