package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/pipeline"
	sperrors "github.com/Adithya-Monish-Kumar-K/fingertips/pkg/errors"
)

const documentsQuery = `SELECT id, title, body FROM documents WHERE status = $1 ORDER BY id`

// Postgres streams rows of the documents table with a given status. A
// document's text is its title followed by its body. A row that cannot be
// scanned is yielded as unreadable; a failing query or cursor aborts the run.
type Postgres struct {
	db     *sql.DB
	status string
	logger *slog.Logger
}

func NewPostgres(db *sql.DB, status string) *Postgres {
	return &Postgres{
		db:     db,
		status: status,
		logger: slog.Default().With("component", "postgres-source"),
	}
}

func (p *Postgres) Documents(ctx context.Context, yield func(pipeline.Document) error) error {
	rows, err := p.db.QueryContext(ctx, documentsQuery, p.status)
	if err != nil {
		return fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			id          string
			title, body sql.NullString
		)
		if err := rows.Scan(&id, &title, &body); err != nil {
			hint := fmt.Sprintf("documents row %d", n)
			if err := yield(pipeline.Document{Hint: hint, Err: sperrors.Read("scanning document", hint, err)}); err != nil {
				return err
			}
			n++
			continue
		}
		n++
		text := title.String
		if body.String != "" {
			text += " " + body.String
		}
		if err := yield(pipeline.Document{Hint: id, Body: []byte(text)}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating documents: %w", err)
	}
	p.logger.Info("documents read", "status", p.status, "count", n)
	return nil
}
