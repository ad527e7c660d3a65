package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/transaction-analyzer/internal/uploads"
)

const recordsTable = "upload_records"

const selectRecordColumns = `
		SELECT
			id,
			filename,
			source_uri,
			status,
			result,
			created_at,
			updated_at`

// RecordRepository implements uploads.RecordStore on BigQuery. Rows are
// written with DML rather than streaming inserts so Save can update them
// straight away.
type RecordRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewClient creates a BigQuery client for projectID.
func NewClient(ctx context.Context, projectID string) (*bigquery.Client, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewClient: creating client: %w", err)
	}
	return client, nil
}

// NewRecordRepository creates a repository with a shared BigQuery client.
// The caller owns client.
func NewRecordRepository(client *bigquery.Client, projectID, datasetID string) *RecordRepository {
	return &RecordRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}
}

func (r *RecordRepository) table() string {
	return fmt.Sprintf("`%s.%s.%s`", r.projectID, r.datasetID, recordsTable)
}

// Create implements uploads.RecordStore.
func (r *RecordRepository) Create(ctx context.Context, rec *uploads.Record) error {
	row, err := ToRow(rec)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	q := r.client.Query(fmt.Sprintf(`
		INSERT %s (
			id,
			filename,
			source_uri,
			status,
			result,
			created_at,
			updated_at
		)
		VALUES (
			@id,
			@filename,
			@source_uri,
			@status,
			@result,
			@created_at,
			@updated_at
		)
	`, r.table()))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: row.ID},
		{Name: "filename", Value: row.Filename},
		{Name: "source_uri", Value: row.SourceURI},
		{Name: "status", Value: row.Status},
		{Name: "result", Value: row.Result},
		{Name: "created_at", Value: row.CreatedAt},
		{Name: "updated_at", Value: row.UpdatedAt},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("Create: inserting record %s: %w", rec.ID, err)
	}
	return nil
}

// Get implements uploads.RecordStore.
func (r *RecordRepository) Get(ctx context.Context, id string) (*uploads.Record, error) {
	q := r.client.Query(selectRecordColumns + `
		FROM ` + r.table() + `
		WHERE id = @id
		LIMIT 1
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Get: reading query: %w", err)
	}

	var row RecordRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, fmt.Errorf("%w: %s", uploads.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: reading row: %w", err)
	}

	return row.Record()
}

// List implements uploads.RecordStore, oldest first.
func (r *RecordRepository) List(ctx context.Context) ([]*uploads.Record, error) {
	q := r.client.Query(selectRecordColumns + `
		FROM ` + r.table() + `
		ORDER BY created_at ASC, id ASC
	`)

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("List: reading query: %w", err)
	}

	records := []*uploads.Record{}
	for {
		var row RecordRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("List: iterating: %w", err)
		}

		rec, err := row.Record()
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// Save implements uploads.RecordStore. Status, result and updated_at change
// in one UPDATE statement.
func (r *RecordRepository) Save(ctx context.Context, rec *uploads.Record) error {
	row, err := ToRow(rec)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    result = @result,
		    updated_at = @updated_at
		WHERE id = @id
	`, r.table()))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: row.Status},
		{Name: "result", Value: row.Result},
		{Name: "updated_at", Value: row.UpdatedAt},
		{Name: "id", Value: row.ID},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("Save: updating record %s: %w", rec.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", uploads.ErrNotFound, rec.ID)
	}
	return nil
}

// Begin implements uploads.RecordStore. The pending check is part of the
// UPDATE statement. When the job reports no affected-row count the record is
// read back instead.
func (r *RecordRepository) Begin(ctx context.Context, id string, now time.Time) (bool, error) {
	// TIMESTAMP keeps microseconds; the read-back compares against this value.
	now = now.UTC().Truncate(time.Microsecond)

	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @processing,
		    result = NULL,
		    updated_at = @updated_at
		WHERE id = @id AND status = @pending
	`, r.table()))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "processing", Value: string(uploads.StatusProcessing)},
		{Name: "pending", Value: string(uploads.StatusPending)},
		{Name: "updated_at", Value: now},
		{Name: "id", Value: id},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return false, fmt.Errorf("Begin: updating record %s: %w", id, err)
	}
	if affected > 0 {
		return true, nil
	}

	rec, err := r.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("Begin: %w", err)
	}
	if affected < 0 {
		return rec.Status == uploads.StatusProcessing && rec.UpdatedAt.Equal(now), nil
	}
	return false, nil
}

// runDML runs q to completion and returns the number of affected rows, or -1
// when the job reports no query statistics.
func runDML(ctx context.Context, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if status.Statistics != nil {
		if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			return qs.NumDMLAffectedRows, nil
		}
	}
	return -1, nil
}

var _ uploads.RecordStore = (*RecordRepository)(nil)
