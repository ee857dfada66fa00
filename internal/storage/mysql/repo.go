package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"

	"review_insights/internal/domain"
)

const (
	errDupEntry    = 1062 // ER_DUP_ENTRY
	errDataTooLong = 1406 // ER_DATA_TOO_LONG
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// InsertReview stores r. A repeated (platform, id) is reported as
// *domain.DuplicateIDError, a value too wide for its column as
// *domain.ValidationError.
func (r *Repo) InsertReview(ctx context.Context, rv domain.ReviewRecord) error {
	_, err := r.db.ExecContext(ctx, insertReviewSQL,
		string(rv.Platform),
		rv.ID,
		rv.Rating,
		valStr(rv.Title),
		rv.Body,
		rv.Timestamp.UTC(),
		valStr(rv.AppVersion),
		rv.DeveloperResponded,
	)
	var me *gomysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errDupEntry:
			return &domain.DuplicateIDError{Platform: rv.Platform, ID: rv.ID}
		case errDataTooLong:
			return domain.NewValidationError("review", me.Message)
		}
	}
	return err
}

func (r *Repo) ListReviews(ctx context.Context, p domain.Platform) ([]domain.ReviewRecord, error) {
	rows, err := r.db.QueryContext(ctx, listReviewsSQL, string(p))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReviewRecord
	for rows.Next() {
		rv := domain.ReviewRecord{Platform: p}
		var (
			title      sql.NullString
			body       sql.NullString
			appVersion sql.NullString
		)
		if err := rows.Scan(
			&rv.ID,
			&rv.Rating,
			&title,
			&body,
			&rv.Timestamp,
			&appVersion,
			&rv.DeveloperResponded,
		); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		rv.Title = title.String
		rv.Body = body.String
		rv.AppVersion = appVersion.String
		rv.Timestamp = rv.Timestamp.UTC()
		out = append(out, rv)
	}
	return out, rows.Err()
}

// CountReviews returns the number of stored reviews per platform.
func (r *Repo) CountReviews(ctx context.Context) (map[domain.Platform]int, error) {
	rows, err := r.db.QueryContext(ctx, countReviewsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.Platform]int, len(domain.Platforms))
	for rows.Next() {
		var (
			p string
			n int
		)
		if err := rows.Scan(&p, &n); err != nil {
			return nil, err
		}
		out[domain.Platform(p)] = n
	}
	return out, rows.Err()
}
