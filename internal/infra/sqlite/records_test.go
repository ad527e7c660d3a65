package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/transaction-analyzer/internal/analysis"
	"github.com/dvloznov/transaction-analyzer/internal/uploads"
)

func newTestStore(t *testing.T) *RecordStore {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(db, zerolog.Nop()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// A second run must be a no-op.
	if err := Migrate(db, zerolog.Nop()); err != nil {
		t.Fatalf("Migrate() second run error = %v", err)
	}
	return NewRecordStore(db)
}

func TestRecordStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC)

	rec := &uploads.Record{
		ID:        "u1",
		Filename:  "tx.csv",
		SourceURI: "file:///tmp/u1/tx.csv",
		Status:    uploads.StatusPending,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Create(ctx, rec); err == nil {
		t.Error("Create() should reject duplicate ids")
	}

	got, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != uploads.StatusPending || got.Result != nil || !got.CreatedAt.Equal(created) {
		t.Errorf("Get() = %+v", got)
	}

	report, err := analysis.Analyze(strings.NewReader("transaction_id,date,amount,category\nt1,2024-01-05,2.25,Food\n"))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	got.Complete(report, created.Add(time.Minute))
	if err := store.Save(ctx, got); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	done, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if done.Status != uploads.StatusCompleted || done.Result == nil || done.Result.Report == nil {
		t.Fatalf("after Save: %+v", done)
	}
	if done.Result.Report.TotalAmount.String() != "2.25" {
		t.Errorf("TotalAmount = %s", done.Result.Report.TotalAmount)
	}
	if _, ok := done.Result.Report.MonthlyTrends["2024-01-31"]; !ok {
		t.Errorf("MonthlyTrends = %v", done.Result.Report.MonthlyTrends)
	}
	if !done.UpdatedAt.Equal(created.Add(time.Minute)) {
		t.Errorf("UpdatedAt = %v", done.UpdatedAt)
	}

	done.Fail(errors.New("missing required columns: category"), created.Add(2*time.Minute))
	if err := store.Save(ctx, done); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	failed, _ := store.Get(ctx, "u1")
	if failed.Status != uploads.StatusFailed || failed.Result.Report != nil || failed.Result.Error != "missing required columns: category" {
		t.Errorf("after failing Save: %+v", failed.Result)
	}
}

func TestRecordStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, uploads.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := store.Save(ctx, &uploads.Record{ID: "missing", Status: uploads.StatusFailed}); !errors.Is(err, uploads.ErrNotFound) {
		t.Errorf("Save() error = %v, want ErrNotFound", err)
	}
}

func TestRecordStore_ListOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("empty List() = %v", list)
	}

	// 900ms sorts after 1s if formatted without fixed width.
	offsets := map[string]time.Duration{
		"late":   10 * time.Second,
		"early":  900 * time.Millisecond,
		"middle": time.Second,
	}
	for id, off := range offsets {
		_ = store.Create(ctx, &uploads.Record{ID: id, SourceURI: "mem://" + id, Status: uploads.StatusPending, CreatedAt: base.Add(off), UpdatedAt: base})
	}

	list, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var ids []string
	for _, r := range list {
		ids = append(ids, r.ID)
	}
	if strings.Join(ids, ",") != "early,middle,late" {
		t.Errorf("List() order = %v", ids)
	}
}

func TestRecordStore_RejectsUnknownStatus(t *testing.T) {
	store := newTestStore(t)
	err := store.Create(context.Background(), &uploads.Record{ID: "x", SourceURI: "mem://x", Status: "archived"})
	if err == nil {
		t.Error("Create() with unknown status should violate the CHECK constraint")
	}
}

func TestRecordStore_BeginOnlyFromPending(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	if err := store.Create(ctx, &uploads.Record{ID: "u1", Status: uploads.StatusPending, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	started, err := store.Begin(ctx, "u1", now.Add(time.Second))
	if err != nil || !started {
		t.Fatalf("Begin() = %v, %v; want true, nil", started, err)
	}
	again, err := store.Begin(ctx, "u1", now.Add(2*time.Second))
	if err != nil || again {
		t.Fatalf("second Begin() = %v, %v; want false, nil", again, err)
	}

	rec, _ := store.Get(ctx, "u1")
	if rec.Status != uploads.StatusProcessing || !rec.UpdatedAt.Equal(now.Add(time.Second)) {
		t.Errorf("after Begin: %+v", rec)
	}

	rec.Fail(errors.New("boom"), now.Add(3*time.Second))
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if started, _ := store.Begin(ctx, "u1", now.Add(4*time.Second)); started {
		t.Error("Begin() moved a failed record back to processing")
	}
	rec, _ = store.Get(ctx, "u1")
	if rec.Status != uploads.StatusFailed || rec.Result == nil || rec.Result.Error != "boom" {
		t.Errorf("failed record changed by Begin: %+v", rec)
	}

	if _, err := store.Begin(ctx, "missing", now); !errors.Is(err, uploads.ErrNotFound) {
		t.Errorf("Begin() error = %v, want ErrNotFound", err)
	}
}
