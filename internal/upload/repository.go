package upload

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateStoredName is returned when a stored filename is already taken.
var ErrDuplicateStoredName = errors.New("stored filename already exists")

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores upload records in the file_uploads table.
type PostgresRepository struct {
	db DB
}

// NewRepository creates a new PostgresRepository with the given connection pool.
func NewRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts rec in its own transaction: committed on success, rolled back on any error.
func (r *PostgresRepository) Create(ctx context.Context, rec *Record) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	err = tx.QueryRow(ctx,
		`INSERT INTO file_uploads
		 (user_id, original_filename, stored_filename, file_url, file_size, content_type, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, uploaded_at`,
		rec.UserID, rec.OriginalFilename, rec.StoredFilename, rec.FileURL,
		rec.FileSize, rec.ContentType, rec.UploadedAt,
	).Scan(&rec.ID, &rec.UploadedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert file upload: %w", ErrDuplicateStoredName)
		}
		return fmt.Errorf("insert file upload: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListByUser returns all records owned by userID, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, original_filename, stored_filename, file_url, file_size, content_type, uploaded_at
		 FROM file_uploads
		 WHERE user_id = $1
		 ORDER BY uploaded_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list file uploads: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.OriginalFilename, &rec.StoredFilename,
			&rec.FileURL, &rec.FileSize, &rec.ContentType, &rec.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("scan file upload: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file uploads: %w", err)
	}
	return records, nil
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
