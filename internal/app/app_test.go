package app

import (
	"context"
	"testing"

	"social-ingest/internal/objectstore"
	"social-ingest/internal/startup"
)

func memoryConfig(t *testing.T, ledger bool) *startup.Config {
	t.Helper()
	return &startup.Config{
		DatabaseDir:   t.TempDir(),
		LedgerEnabled: ledger,
		Storage: startup.StorageConfig{
			Backend:   startup.BackendMemory,
			Bucket:    "media",
			PublicURL: "http://minio.test",
		},
	}
}

func TestBuildWithLedger(t *testing.T) {
	svc, err := Build(context.Background(), memoryConfig(t, true), Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	if svc.Ledger == nil {
		t.Fatal("ledger should be open")
	}
	if _, ok := svc.Store.(*objectstore.Memory); !ok {
		t.Errorf("store = %T, want *objectstore.Memory", svc.Store)
	}
	if svc.Acquirer.Store() != svc.Store {
		t.Error("acquirer should write to the built store")
	}

	rec, err := svc.Orch.Ingest(context.Background(), "https://x.com/jack")
	if err != nil || rec.Username != "jack" {
		t.Errorf("Ingest() = %+v, %v", rec, err)
	}
}

func TestBuildWithoutLedger(t *testing.T) {
	svc, err := Build(context.Background(), memoryConfig(t, false), Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer func() { _ = svc.Close() }()

	if svc.Ledger != nil {
		t.Error("ledger should be nil when disabled")
	}
	// Sweeping without a ledger is a no-op, not a nil dereference.
	if res, err := svc.Orch.Sweep(context.Background()); err != nil || res.Deleted != 0 {
		t.Errorf("Sweep() = %+v, %v", res, err)
	}

	if _, err := Build(context.Background(), memoryConfig(t, false), Options{RequireLedger: true}); err == nil {
		t.Error("RequireLedger should fail when the ledger is disabled")
	}
}

func TestNewStoreUnknownBackend(t *testing.T) {
	if _, err := NewStore(context.Background(), startup.StorageConfig{Backend: "gcs"}, true); err == nil {
		t.Error("NewStore() should reject unknown backends")
	}
}

func TestNewStoreS3SkipsCheck(t *testing.T) {
	store, err := NewStore(context.Background(), startup.StorageConfig{
		Backend:   startup.BackendS3,
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "media",
		URLMode:   objectstore.URLModePublic,
	}, true)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, ok := store.(*objectstore.Gateway); !ok {
		t.Errorf("store = %T, want *objectstore.Gateway", store)
	}
}
