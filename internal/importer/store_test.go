package importer

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/JonMunkholm/fieldmap/internal/core"
)

func newProcessSession(t *testing.T) *core.Session {
	t.Helper()
	schema, err := core.Lookup("processes")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	return core.NewSession(schema)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sess := newProcessSession(t)

	if _, err := store.Get(ctx, sess.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() before Put error = %v, want ErrSessionNotFound", err)
	}

	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := store.Get(ctx, sess.ID())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != sess {
		t.Error("Get() returned a different session")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}

	if err := store.Delete(ctx, sess.ID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, sess.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i := 0; i < 3; i++ {
		if err := store.Put(ctx, newProcessSession(t)); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	removed, err := store.Sweep(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 0 || store.Len() != 3 {
		t.Errorf("Sweep(past) removed %d, left %d; want 0, 3", removed, store.Len())
	}

	removed, err = store.Sweep(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 3 || store.Len() != 0 {
		t.Errorf("Sweep(future) removed %d, left %d; want 3, 0", removed, store.Len())
	}
}

// TestRedisStore runs against a real server when FIELDMAP_TEST_REDIS_URL is
// set, e.g. redis://localhost:6379/15.
func TestRedisStore(t *testing.T) {
	url := os.Getenv("FIELDMAP_TEST_REDIS_URL")
	if url == "" {
		t.Skip("FIELDMAP_TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	store, err := NewRedisStore(ctx, url, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer store.Close()

	sess := newProcessSession(t)
	if err := sess.Load("p.csv", []byte(processesCSV)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	t.Cleanup(func() { store.Delete(ctx, sess.ID()) })

	got, err := store.Get(ctx, sess.ID())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Stage() != core.StageMapping || got.RowCount() != 2 {
		t.Errorf("restored stage %s with %d rows, want mapping with 2", got.Stage(), got.RowCount())
	}
	if got.Mapping().Target("Rate") != "hourlyRate" {
		t.Errorf("restored mapping = %v", got.Mapping())
	}

	if err := store.Delete(ctx, sess.ID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, sess.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrSessionNotFound", err)
	}
}
