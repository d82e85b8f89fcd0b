package source

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/pipeline"
)

// Texts yields each string as one document, hinted by its index.
type Texts []string

var _ pipeline.Source = Texts(nil)

func (t Texts) Documents(ctx context.Context, yield func(pipeline.Document) error) error {
	for i, text := range t {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := yield(pipeline.Document{Hint: fmt.Sprintf("text-%d", i), Body: []byte(text)}); err != nil {
			return err
		}
	}
	return nil
}

// Static yields a fixed list of documents as given, read errors included.
type Static []pipeline.Document

func (s Static) Documents(ctx context.Context, yield func(pipeline.Document) error) error {
	for _, doc := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := yield(doc); err != nil {
			return err
		}
	}
	return nil
}
