package links

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/shortly/internal/errx"
	"github.com/sundayezeilo/shortly/internal/idgen"
)

// pgQuerier abstracts the subset of pgxpool.Pool the store needs, so tests
// can substitute a fake connection.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgStore struct {
	db  pgQuerier
	ids idgen.Generator
}

// PgStoreConfig holds configuration for the Postgres store.
type PgStoreConfig struct {
	IDGenerator idgen.Generator
}

// NewPgStore returns a Store backed by Postgres.
func NewPgStore(db pgQuerier, config *PgStoreConfig) Store {
	if config == nil {
		config = &PgStoreConfig{}
	}

	// Default: UUID v7 keeps inserts clustered in the primary-key index.
	if config.IDGenerator == nil {
		config.IDGenerator = idgen.NewV7()
	}

	return &pgStore{
		db:  db,
		ids: config.IDGenerator,
	}
}

// schema is the links table. owner_id refers to a user in the external
// identity provider, so it carries no foreign key here.
const schema = `
CREATE TABLE IF NOT EXISTS links (
	id           UUID PRIMARY KEY,
	original_url TEXT NOT NULL,
	short_code   TEXT NOT NULL,
	owner_id     UUID,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at   TIMESTAMPTZ,
	clicks       BIGINT NOT NULL DEFAULT 0,
	last_used_at TIMESTAMPTZ,
	CONSTRAINT links_short_code_unique UNIQUE (short_code)
);

CREATE INDEX IF NOT EXISTS links_expires_at_idx
	ON links (expires_at) WHERE expires_at IS NOT NULL;
`

// Migrate creates the links table and its indexes if they do not exist.
func Migrate(ctx context.Context, db pgQuerier) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return errx.E("links.Migrate", errx.Unavailable, err)
	}
	return nil
}

const linkColumns = `id, original_url, short_code, owner_id, created_at, expires_at, clicks, last_used_at`

func scanLink(row pgx.Row) (Link, error) {
	var l Link
	err := row.Scan(
		&l.ID,
		&l.OriginalURL,
		&l.ShortCode,
		&l.OwnerID,
		&l.CreatedAt,
		&l.ExpiresAt,
		&l.Clicks,
		&l.LastUsedAt,
	)
	if err != nil {
		return Link{}, err
	}
	return l, nil
}

func isShortCodeUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" &&
		pgErr.ConstraintName == "links_short_code_unique"
}

func mapStoreError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case isShortCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func (s *pgStore) InsertLink(ctx context.Context, link Link) (Link, error) {
	const op = "links.pgStore.InsertLink"

	if link.ID == uuid.Nil {
		id, err := s.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ID = id
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO links (id, original_url, short_code, owner_id, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+linkColumns,
		link.ID, link.OriginalURL, link.ShortCode, link.OwnerID, link.ExpiresAt,
	)

	created, err := scanLink(row)
	if err != nil {
		return Link{}, mapStoreError(op, err)
	}
	return created, nil
}

func (s *pgStore) FindByShortCode(ctx context.Context, code string) (Link, error) {
	const op = "links.pgStore.FindByShortCode"

	row := s.db.QueryRow(ctx, `
		SELECT `+linkColumns+`
		FROM links
		WHERE short_code = $1
		  AND (expires_at IS NULL OR expires_at > now())`,
		code,
	)

	link, err := scanLink(row)
	if err != nil {
		return Link{}, mapStoreError(op, err)
	}
	return link, nil
}

func (s *pgStore) FindByOriginalURL(ctx context.Context, originalURL string) (Link, error) {
	const op = "links.pgStore.FindByOriginalURL"

	row := s.db.QueryRow(ctx, `
		SELECT `+linkColumns+`
		FROM links
		WHERE original_url = $1
		  AND (expires_at IS NULL OR expires_at > now())
		ORDER BY created_at
		LIMIT 1`,
		originalURL,
	)

	link, err := scanLink(row)
	if err != nil {
		return Link{}, mapStoreError(op, err)
	}
	return link, nil
}

func (s *pgStore) ResolveAndTouch(ctx context.Context, code string) (Link, error) {
	const op = "links.pgStore.ResolveAndTouch"

	// Single UPDATE so concurrent resolves each add exactly one click.
	row := s.db.QueryRow(ctx, `
		UPDATE links
		SET clicks = clicks + 1, last_used_at = now()
		WHERE short_code = $1
		  AND (expires_at IS NULL OR expires_at > now())
		RETURNING `+linkColumns,
		code,
	)

	link, err := scanLink(row)
	if err != nil {
		return Link{}, mapStoreError(op, err)
	}
	return link, nil
}

func (s *pgStore) UpdateOriginalURL(ctx context.Context, code string, ownerID uuid.UUID, originalURL string) error {
	const op = "links.pgStore.UpdateOriginalURL"

	tag, err := s.db.Exec(ctx, `
		UPDATE links
		SET original_url = $3
		WHERE short_code = $1 AND owner_id = $2`,
		code, ownerID, originalURL,
	)
	if err != nil {
		return mapStoreError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, errors.New("no link with this code owned by caller"))
	}
	return nil
}

func (s *pgStore) DeleteLink(ctx context.Context, code string, ownerID uuid.UUID) error {
	const op = "links.pgStore.DeleteLink"

	tag, err := s.db.Exec(ctx, `
		DELETE FROM links
		WHERE short_code = $1 AND owner_id = $2`,
		code, ownerID,
	)
	if err != nil {
		return mapStoreError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, errors.New("no link with this code owned by caller"))
	}
	return nil
}

func (s *pgStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const op = "links.pgStore.DeleteExpired"

	tag, err := s.db.Exec(ctx, `
		DELETE FROM links
		WHERE expires_at IS NOT NULL AND expires_at < $1`,
		before,
	)
	if err != nil {
		return 0, mapStoreError(op, err)
	}
	return tag.RowsAffected(), nil
}
