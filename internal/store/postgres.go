package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig configures the connection pool.
type PostgresConfig struct {
	DSN         string
	MaxConns    int32
	PingTimeout time.Duration
}

// PostgresStore keeps documents in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, pings and returns the store. Call Migrate before
// first use on a fresh database.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is empty")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

const schema = `
create table if not exists documents (
  id          uuid primary key,
  filename    text not null default '',
  language    text not null,
  status      text not null default 'pending',
  image_key   text not null,
  uploaded_at timestamptz not null default now()
);
create index if not exists documents_uploaded_at_idx on documents (uploaded_at desc);
create table if not exists extracted_texts (
  document_id  uuid primary key references documents(id) on delete cascade,
  text         text not null default '',
  extracted_at timestamptz not null default now()
);`

// Migrate creates the tables when they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, doc *Document) error {
	if err := prepare(doc, time.Now()); err != nil {
		return err
	}
	const q = `
insert into documents (id, filename, language, status, image_key, uploaded_at)
values ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, q, doc.ID, doc.Filename, string(doc.Language), string(doc.Status),
		doc.ImageKey, doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const selectDocument = `
select d.id, d.filename, d.language, d.status, d.image_key, d.uploaded_at, t.text, t.extracted_at
from documents d
left join extracted_texts t on t.document_id = d.id`

func scanDocument(row pgx.Row) (*Document, error) {
	var (
		d         Document
		lang      string
		status    string
		text      *string
		extracted *time.Time
	)
	if err := row.Scan(&d.ID, &d.Filename, &lang, &status, &d.ImageKey, &d.UploadedAt, &text, &extracted); err != nil {
		return nil, err
	}
	d.Language = script.Language(lang)
	d.Status = Status(status)
	d.Text, d.ExtractedAt = text, extracted
	return &d, nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	d, err := scanDocument(s.pool.QueryRow(ctx, selectDocument+` where d.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]*Document, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, selectDocument+` order by d.uploaded_at desc, d.id limit $1 offset $2`,
		limit, max(opts.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := []*Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	tag, err := s.pool.Exec(ctx, `update documents set status = $2 where id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveTranscript(ctx context.Context, id uuid.UUID, text string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `update documents set status = $2 where id = $1`, id, string(status))
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		const q = `
insert into extracted_texts (document_id, text, extracted_at) values ($1, $2, now())
on conflict (document_id) do update set text = excluded.text, extracted_at = excluded.extracted_at`
		if _, err := tx.Exec(ctx, q, id, text); err != nil {
			return fmt.Errorf("save transcript: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `delete from documents where id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
