package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fluffyriot/lunchsync/internal/classify"
	"github.com/fluffyriot/lunchsync/internal/fetcher"
)

const syncedPostColumns = `id, version, created_at, updated_at, page_key, page_name,
	external_id, url, published_at, content, classification,
	repost_status, repost_attempts, reposted_at, last_attempt_at, next_attempt_at`

// Postgres implements Store on a relational table; the version
// precondition maps to a conditional UPDATE.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Store(ctx context.Context, data NewSynchronizedPost) (SynchronizedPost, error) {
	now := time.Now()
	sp := SynchronizedPost{
		ID:             uuid.New(),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
		PageKey:        data.PageKey,
		PageName:       data.PageName,
		Post:           data.Post,
		Classification: data.Classification,
		Repost:         data.Repost,
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO synced_posts (`+syncedPostColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		sp.ID, sp.Version, sp.CreatedAt, sp.UpdatedAt, sp.PageKey, sp.PageName,
		sp.Post.ExternalID, sp.Post.URL, sp.Post.PublishedAt, sp.Post.Content, string(sp.Classification),
		string(sp.Repost.Status), sp.Repost.Attempts,
		nullTime(sp.Repost.RepostedAt), nullTime(sp.Repost.LastAttemptAt), nullTime(sp.Repost.NextAttemptAt),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return SynchronizedPost{}, ErrDuplicateExternalID
		}
		return SynchronizedPost{}, fmt.Errorf("insert synced post: %w", err)
	}
	return sp, nil
}

func (p *Postgres) UpdateRepost(ctx context.Context, id uuid.UUID, expectedVersion int, repost Repost) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE synced_posts
		SET version = version + 1,
		    updated_at = $1,
		    repost_status = $2,
		    repost_attempts = $3,
		    reposted_at = $4,
		    last_attempt_at = $5,
		    next_attempt_at = $6
		WHERE id = $7 AND version = $8`,
		time.Now(), string(repost.Status), repost.Attempts,
		nullTime(repost.RepostedAt), nullTime(repost.LastAttemptAt), nullTime(repost.NextAttemptAt),
		id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update repost state: %w", err)
	}
	return p.checkConditionalUpdate(ctx, res, id)
}

func (p *Postgres) UpdateContent(ctx context.Context, id uuid.UUID, expectedVersion int, post fetcher.Post, classification classify.Classification) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE synced_posts
		SET version = version + 1,
		    updated_at = $1,
		    external_id = $2,
		    url = $3,
		    published_at = $4,
		    content = $5,
		    classification = $6
		WHERE id = $7 AND version = $8`,
		time.Now(), post.ExternalID, post.URL, post.PublishedAt, post.Content, string(classification),
		id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update post content: %w", err)
	}
	return p.checkConditionalUpdate(ctx, res, id)
}

// checkConditionalUpdate tells a lost version race apart from a row
// that does not exist at all.
func (p *Postgres) checkConditionalUpdate(ctx context.Context, res sql.Result, id uuid.UUID) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	err = p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM synced_posts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check row existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConcurrentModification
}

func (p *Postgres) FindByID(ctx context.Context, id uuid.UUID) (SynchronizedPost, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+syncedPostColumns+` FROM synced_posts WHERE id = $1`, id)

	sp, err := scanSyncedPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SynchronizedPost{}, ErrNotFound
	}
	return sp, err
}

func (p *Postgres) FindByExternalID(ctx context.Context, externalID string) (*SynchronizedPost, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+syncedPostColumns+` FROM synced_posts WHERE external_id = $1`, externalID)

	sp, err := scanSyncedPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (p *Postgres) FindLastSeen(ctx context.Context, pageKey string) (*SynchronizedPost, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+syncedPostColumns+` FROM synced_posts
		WHERE page_key = $1
		ORDER BY published_at DESC
		LIMIT 1`, pageKey)

	sp, err := scanSyncedPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (p *Postgres) GetLastSeen(ctx context.Context, limit int) ([]SynchronizedPost, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+syncedPostColumns+` FROM synced_posts
		ORDER BY published_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query last seen posts: %w", err)
	}
	defer rows.Close()

	var out []SynchronizedPost
	for rows.Next() {
		sp, err := scanSyncedPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (p *Postgres) StreamRetryable(ctx context.Context, now time.Time, visit func(SynchronizedPost) error) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+syncedPostColumns+` FROM synced_posts
		WHERE repost_status = $1 AND next_attempt_at IS NOT NULL AND next_attempt_at <= $2
		ORDER BY published_at ASC`,
		string(RepostFailed), now)
	if err != nil {
		return fmt.Errorf("query retryable posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		sp, err := scanSyncedPost(rows)
		if err != nil {
			return err
		}
		if err := visit(sp); err != nil {
			return err
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSyncedPost(row rowScanner) (SynchronizedPost, error) {
	var (
		sp             SynchronizedPost
		classification string
		repostStatus   string
		repostedAt     sql.NullTime
		lastAttemptAt  sql.NullTime
		nextAttemptAt  sql.NullTime
	)

	err := row.Scan(
		&sp.ID, &sp.Version, &sp.CreatedAt, &sp.UpdatedAt, &sp.PageKey, &sp.PageName,
		&sp.Post.ExternalID, &sp.Post.URL, &sp.Post.PublishedAt, &sp.Post.Content, &classification,
		&repostStatus, &sp.Repost.Attempts, &repostedAt, &lastAttemptAt, &nextAttemptAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SynchronizedPost{}, err
		}
		return SynchronizedPost{}, fmt.Errorf("scan synced post: %w", err)
	}

	sp.Classification = classify.Classification(classification)
	sp.Repost.Status = RepostStatus(repostStatus)
	sp.Repost.RepostedAt = timePtr(repostedAt)
	sp.Repost.LastAttemptAt = timePtr(lastAttemptAt)
	sp.Repost.NextAttemptAt = timePtr(nextAttemptAt)
	return sp, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
