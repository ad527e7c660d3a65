// Package uploads owns the lifecycle of an uploaded transaction batch:
// creating the pending record, running the analysis job and persisting its
// terminal outcome.
package uploads

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/transaction-analyzer/internal/analysis"
)

// Status is the lifecycle state of an upload.
type Status string

const (
	// StatusPending means the record exists and a job has been requested.
	StatusPending Status = "pending"
	// StatusProcessing means an analysis job has started.
	StatusProcessing Status = "processing"
	// StatusCompleted means Result holds the analysis report.
	StatusCompleted Status = "completed"
	// StatusFailed means Result holds the error message.
	StatusFailed Status = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the four known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when no record exists for an id.
	ErrNotFound = errors.New("upload not found")

	// ErrInvalidUpload is returned when a submitted file is rejected before storage.
	ErrInvalidUpload = errors.New("invalid upload")

	// ErrNotCSV rejects files without a .csv extension.
	ErrNotCSV = fmt.Errorf("%w: file must be CSV format", ErrInvalidUpload)

	// ErrEmptyUpload rejects zero-byte files.
	ErrEmptyUpload = fmt.Errorf("%w: no file provided", ErrInvalidUpload)
)

// Record is the persisted state of one upload.
type Record struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	SourceURI string    `json:"source_uri"`
	Status    Status    `json:"status"`
	Result    *Result   `json:"result"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy that shares the (immutable) report.
func (r *Record) Clone() *Record {
	c := *r
	if r.Result != nil {
		res := *r.Result
		c.Result = &res
	}
	return &c
}

// Begin moves a pending record to processing and clears any result.
// Records already processing or terminal keep their status; a re-delivered
// job overwrites the terminal result when it finishes. Stores use it to
// implement RecordStore.Begin.
func (r *Record) Begin(now time.Time) bool {
	if r.Status != StatusPending {
		return false
	}
	r.Status = StatusProcessing
	r.Result = nil
	r.UpdatedAt = now
	return true
}

// Complete sets the terminal success state.
func (r *Record) Complete(report *analysis.Report, now time.Time) {
	r.Status = StatusCompleted
	r.Result = &Result{Report: report}
	r.UpdatedAt = now
}

// Fail sets the terminal failure state with err's message.
func (r *Record) Fail(err error, now time.Time) {
	r.Status = StatusFailed
	r.Result = &Result{Error: err.Error()}
	r.UpdatedAt = now
}

// Result is either a report or an error message. It serialises as the bare
// report object, or as {"error": "..."}.
type Result struct {
	Report *analysis.Report
	Error  string
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Report != nil {
		return json.Marshal(r.Report)
	}
	return json.Marshal(struct {
		Error string `json:"error"`
	}{r.Error})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Result) UnmarshalJSON(data []byte) error {
	var probe struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Error != nil {
		*r = Result{Error: *probe.Error}
		return nil
	}

	var report analysis.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return err
	}
	*r = Result{Report: &report}
	return nil
}
