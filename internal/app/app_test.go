package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/transaction-analyzer/internal/config"
	"github.com/dvloznov/transaction-analyzer/internal/infra/cache"
	"github.com/dvloznov/transaction-analyzer/internal/uploads"
)

func testConfig(t *testing.T, overrides map[string]string) *config.Config {
	t.Helper()
	env := map[string]string{
		"UPLOAD_DIR":    filepath.Join(t.TempDir(), "uploads"),
		"SQLITE_PATH":   filepath.Join(t.TempDir(), "records.db"),
		"RETRY_BACKOFF": "10ms",
		"WORKERS":       "2",
	}
	for k, v := range overrides {
		env[k] = v
	}
	cfg, err := config.FromEnv(func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	return cfg
}

// TestEndToEnd submits a CSV and waits for the in-process consumer to
// complete it.
func TestEndToEnd(t *testing.T) {
	for _, store := range []string{config.RecordStoreMemory, config.RecordStoreSQLite} {
		t.Run(store, func(t *testing.T) {
			cfg := testConfig(t, map[string]string{"RECORD_STORE": store, "RECORD_CACHE_TTL": "1m"})

			a, err := New(context.Background(), cfg, zerolog.Nop())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer a.Close()

			if _, ok := a.Records.(*cache.RecordStore); !ok {
				t.Errorf("Records = %T, want cache wrapper", a.Records)
			}

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- a.Queue.Consume(ctx, a.Lifecycle.Handle) }()

			good, err := a.Service.Submit(ctx, "good.csv", strings.NewReader(
				"transaction_id,date,amount,category\nt1,2024-01-05,10.00,Food\nt2,2024-02-05,5.00,Food\n"))
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			bad, err := a.Service.Submit(ctx, "bad.csv", strings.NewReader("id,amount\n1,2\n"))
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}

			waitFor(t, a, good.ID, uploads.StatusCompleted)
			waitFor(t, a, bad.ID, uploads.StatusFailed)

			rec, _ := a.Service.Get(ctx, good.ID)
			if rec.Result.Report.TotalAmount.String() != "15" {
				t.Errorf("TotalAmount = %s", rec.Result.Report.TotalAmount)
			}
			rec, _ = a.Service.Get(ctx, bad.ID)
			if !strings.Contains(rec.Result.Error, "missing required columns") {
				t.Errorf("Result.Error = %q", rec.Result.Error)
			}

			cancel()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("Consume did not return after cancel")
			}
		})
	}
}

func waitFor(t *testing.T, a *App, id string, want uploads.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := a.Service.Get(context.Background(), id)
		if err == nil && rec.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("upload %s did not reach %s", id, want)
}

func TestNew_CloseIsIdempotent(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, nil), zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
