package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/scenecast/scenecast/internal/compiler"
)

// The store must satisfy the compiler's cache contract.
var _ compiler.PreloweredCache = (*Store)(nil)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "scenecast.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLowered_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.PutLowered(ctx, "scene-1", "hash-a", "Intro_scene1", "#Intro_scene1: {frame: int}")
	if err != nil {
		t.Fatalf("PutLowered() failed: %v", err)
	}

	entry, text, ok, err := s.GetLowered(ctx, "scene-1", "hash-a")
	if err != nil {
		t.Fatalf("GetLowered() failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if entry != "Intro_scene1" {
		t.Errorf("entry = %q, expected %q", entry, "Intro_scene1")
	}
	if text != "#Intro_scene1: {frame: int}" {
		t.Errorf("unexpected lowered text: %q", text)
	}
}

func TestLowered_MissIsNotAnError(t *testing.T) {
	s := openTestStore(t)

	_, _, ok, err := s.GetLowered(context.Background(), "scene-1", "hash-a")
	if err != nil {
		t.Fatalf("GetLowered() failed: %v", err)
	}
	if ok {
		t.Error("expected a miss for an empty store")
	}
}

func TestLowered_HashMismatchIsAMiss(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.PutLowered(ctx, "scene-1", "hash-a", "Entry", "text"); err != nil {
		t.Fatalf("PutLowered() failed: %v", err)
	}

	// Edited source means a new hash: the stale form must never be served.
	_, _, ok, err := s.GetLowered(ctx, "scene-1", "hash-b")
	if err != nil {
		t.Fatalf("GetLowered() failed: %v", err)
	}
	if ok {
		t.Error("stale lowered form served for a different source hash")
	}
}

func TestLowered_PutIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.PutLowered(ctx, "scene-1", "hash-a", "Entry", "text"); err != nil {
			t.Fatalf("PutLowered() iteration %d failed: %v", i, err)
		}
	}

	count, err := s.CountLowered(ctx)
	if err != nil {
		t.Fatalf("CountLowered() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, expected 1 after duplicate puts", count)
	}
}

func TestLowered_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenecast.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s1.PutLowered(ctx, "scene-1", "hash-a", "Entry", "text"); err != nil {
		t.Fatalf("PutLowered() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	_, _, ok, err := s2.GetLowered(ctx, "scene-1", "hash-a")
	if err != nil {
		t.Fatalf("GetLowered() failed: %v", err)
	}
	if !ok {
		t.Error("lowered form did not survive a restart")
	}
}

func TestLowered_DeleteScene(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mustPut(t, s, "scene-1", "hash-a")
	mustPut(t, s, "scene-1", "hash-b")
	mustPut(t, s, "scene-2", "hash-a")

	if err := s.DeleteScene(ctx, "scene-1"); err != nil {
		t.Fatalf("DeleteScene() failed: %v", err)
	}

	count, err := s.CountLowered(ctx)
	if err != nil {
		t.Fatalf("CountLowered() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, expected only scene-2 to remain", count)
	}
}

func TestLowered_PruneScenes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mustPut(t, s, "scene-1", "hash-a")
	mustPut(t, s, "scene-2", "hash-a")
	mustPut(t, s, "scene-3", "hash-a")

	if err := s.PruneScenes(ctx, []string{"scene-2"}); err != nil {
		t.Fatalf("PruneScenes() failed: %v", err)
	}

	_, _, ok, err := s.GetLowered(ctx, "scene-2", "hash-a")
	if err != nil || !ok {
		t.Errorf("live scene was pruned (ok=%v, err=%v)", ok, err)
	}
	count, err := s.CountLowered(ctx)
	if err != nil {
		t.Fatalf("CountLowered() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, expected 1 after prune", count)
	}

	// Empty live set clears everything.
	if err := s.PruneScenes(ctx, nil); err != nil {
		t.Fatalf("PruneScenes(nil) failed: %v", err)
	}
	count, err = s.CountLowered(ctx)
	if err != nil {
		t.Fatalf("CountLowered() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, expected empty cache", count)
	}
}

func mustPut(t *testing.T, s *Store, sceneID, hash string) {
	t.Helper()
	if err := s.PutLowered(context.Background(), sceneID, hash, "Entry", "text"); err != nil {
		t.Fatalf("PutLowered(%s, %s) failed: %v", sceneID, hash, err)
	}
}
