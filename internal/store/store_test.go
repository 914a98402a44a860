package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T, path, scope string) *Store {
	t.Helper()
	st, err := Open(path, scope)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st
}

func TestPutGetSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lajit.db")
	ctx := context.Background()

	st := openTestStore(t, path, DefaultScope)
	payload := []byte(`{"marjat":{"sessions":1}}`)
	if err := st.Put(ctx, "score-data", payload); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st = openTestStore(t, path, DefaultScope)
	t.Cleanup(func() {
		_ = st.Close()
	})
	got, ok, err := st.Get(ctx, "score-data")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("expected key to survive reopen")
	}
	if string(got) != string(payload) {
		t.Fatalf("unexpected value: %s", got)
	}
}

func TestGetMissingKey(t *testing.T) {
	st := openTestStore(t, filepath.Join(t.TempDir(), "lajit.db"), DefaultScope)
	t.Cleanup(func() {
		_ = st.Close()
	})
	got, ok, err := st.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok || got != nil {
		t.Fatalf("expected absent key, got %q", got)
	}
}

func TestPutOverwritesAndDelete(t *testing.T) {
	st := openTestStore(t, filepath.Join(t.TempDir(), "lajit.db"), DefaultScope)
	t.Cleanup(func() {
		_ = st.Close()
	})
	ctx := context.Background()

	if err := st.Put(ctx, "k", []byte("one")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Put(ctx, "k", []byte("two")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, _, err := st.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "two" {
		t.Fatalf("expected overwrite, got %q", got)
	}

	if err := st.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete missing key: %v", err)
	}
	if _, ok, _ := st.Get(ctx, "k"); ok {
		t.Fatalf("expected key to be deleted")
	}
}

func TestScopesAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lajit.db")
	ctx := context.Background()

	oldStore := openTestStore(t, path, "score-store-v0")
	if err := oldStore.Put(ctx, "score-data", []byte(`{}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := oldStore.Put(ctx, "item-stats-data", []byte(`{}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	_ = oldStore.Close()

	st := openTestStore(t, path, DefaultScope)
	t.Cleanup(func() {
		_ = st.Close()
	})
	if _, ok, _ := st.Get(ctx, "score-data"); ok {
		t.Fatalf("expected new scope to start empty")
	}
	if err := st.Put(ctx, "score-data", []byte(`{"a":{"sessions":2}}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	scopes, err := st.Scopes(ctx)
	if err != nil {
		t.Fatalf("scopes: %v", err)
	}
	if len(scopes) != 2 {
		t.Fatalf("expected 2 scopes, got %+v", scopes)
	}
	if scopes[0].Name != "score-store-v0" || scopes[0].Keys != 2 {
		t.Fatalf("unexpected old scope: %+v", scopes[0])
	}
	if scopes[1].Name != DefaultScope || scopes[1].Keys != 1 {
		t.Fatalf("unexpected active scope: %+v", scopes[1])
	}
	if scopes[1].UpdatedAt.IsZero() {
		t.Fatalf("expected updated timestamp")
	}

	removed, err := st.DropScope(ctx, "score-store-v0")
	if err != nil {
		t.Fatalf("drop scope: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed entries, got %d", removed)
	}
	if _, ok, _ := st.Get(ctx, "score-data"); !ok {
		t.Fatalf("active scope must be untouched")
	}
}

func TestOpenRejectsEmptyScope(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "lajit.db"), ""); err == nil {
		t.Fatalf("expected error for empty scope")
	}
}
