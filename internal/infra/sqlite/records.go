package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/transaction-analyzer/internal/uploads"
)

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// RecordStore implements uploads.RecordStore on the upload_records table.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore wraps an open, migrated database.
func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

// Create implements uploads.RecordStore.
func (s *RecordStore) Create(ctx context.Context, rec *uploads.Record) error {
	result, err := encodeResult(rec.Result)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO upload_records (id, filename, source_uri, status, result, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Filename, rec.SourceURI, string(rec.Status), result,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("Create: inserting record %s: %w", rec.ID, err)
	}
	return nil
}

// Get implements uploads.RecordStore.
func (s *RecordStore) Get(ctx context.Context, id string) (*uploads.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, source_uri, status, result, created_at, updated_at
		FROM upload_records
		WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", uploads.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return rec, nil
}

// List implements uploads.RecordStore, oldest first.
func (s *RecordStore) List(ctx context.Context) ([]*uploads.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, source_uri, status, result, created_at, updated_at
		FROM upload_records
		ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("List: querying records: %w", err)
	}
	defer rows.Close()

	records := []*uploads.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: iterating: %w", err)
	}
	return records, nil
}

// Save implements uploads.RecordStore with a single UPDATE statement.
func (s *RecordStore) Save(ctx context.Context, rec *uploads.Record) error {
	result, err := encodeResult(rec.Result)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE upload_records
		SET status = ?, result = ?, updated_at = ?
		WHERE id = ?`,
		string(rec.Status), result, formatTime(rec.UpdatedAt), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("Save: updating record %s: %w", rec.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Save: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", uploads.ErrNotFound, rec.ID)
	}
	return nil
}

// Begin implements uploads.RecordStore. The pending check is part of the
// UPDATE so concurrent runs cannot both start.
func (s *RecordStore) Begin(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE upload_records
		SET status = ?, result = NULL, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(uploads.StatusProcessing), formatTime(now), id, string(uploads.StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("Begin: updating record %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Begin: rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM upload_records WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", uploads.ErrNotFound, id)
	}
	if err != nil {
		return false, fmt.Errorf("Begin: checking record %s: %w", id, err)
	}
	return false, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*uploads.Record, error) {
	var (
		rec                  uploads.Record
		status               string
		result               sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&rec.ID, &rec.Filename, &rec.SourceURI, &status, &result, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	rec.Status = uploads.Status(status)
	if result.Valid {
		rec.Result = &uploads.Result{}
		if err := json.Unmarshal([]byte(result.String), rec.Result); err != nil {
			return nil, fmt.Errorf("decoding result of %s: %w", rec.ID, err)
		}
	}

	var err error
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at of %s: %w", rec.ID, err)
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at of %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func encodeResult(r *uploads.Result) (sql.NullString, error) {
	if r == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding result: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

var _ uploads.RecordStore = (*RecordStore)(nil)
