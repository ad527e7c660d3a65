package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/transaction-analyzer/internal/uploads"
)

// RecordRow mirrors one row of <dataset>.upload_records.
type RecordRow struct {
	ID        string              `bigquery:"id"`         // REQUIRED
	Filename  bigquery.NullString `bigquery:"filename"`   // NULLABLE
	SourceURI string              `bigquery:"source_uri"` // REQUIRED
	Status    string              `bigquery:"status"`     // REQUIRED

	// Result is the JSON encoding of uploads.Result.
	Result bigquery.NullString `bigquery:"result"` // NULLABLE

	CreatedAt time.Time `bigquery:"created_at"` // REQUIRED
	UpdatedAt time.Time `bigquery:"updated_at"` // REQUIRED
}

// ToRow converts a record to its table representation.
func ToRow(rec *uploads.Record) (*RecordRow, error) {
	row := &RecordRow{
		ID:        rec.ID,
		Filename:  bigquery.NullString{StringVal: rec.Filename, Valid: rec.Filename != ""},
		SourceURI: rec.SourceURI,
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt.UTC(),
		UpdatedAt: rec.UpdatedAt.UTC(),
	}
	if rec.Result != nil {
		data, err := json.Marshal(rec.Result)
		if err != nil {
			return nil, fmt.Errorf("ToRow: encoding result: %w", err)
		}
		row.Result = bigquery.NullString{StringVal: string(data), Valid: true}
	}
	return row, nil
}

// Record converts a row back into an upload record.
func (r *RecordRow) Record() (*uploads.Record, error) {
	rec := &uploads.Record{
		ID:        r.ID,
		SourceURI: r.SourceURI,
		Status:    uploads.Status(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.Filename.Valid {
		rec.Filename = r.Filename.StringVal
	}
	if r.Result.Valid {
		rec.Result = &uploads.Result{}
		if err := json.Unmarshal([]byte(r.Result.StringVal), rec.Result); err != nil {
			return nil, fmt.Errorf("Record: decoding result of %s: %w", r.ID, err)
		}
	}
	return rec, nil
}
