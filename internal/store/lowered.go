package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// GetLowered returns the cached canonical lowered form for a scene at a
// specific source hash. ok is false on a miss; err is reserved for actual
// database failures.
func (s *Store) GetLowered(ctx context.Context, sceneID, sourceHash string) (entryName, loweredText string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT entry_name, lowered_text
		FROM lowered_scenes
		WHERE scene_id = ? AND source_hash = ?
	`, sceneID, sourceHash)

	if err := row.Scan(&entryName, &loweredText); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", false, nil
		}
		return "", "", false, fmt.Errorf("get lowered: %w", err)
	}
	return entryName, loweredText, true, nil
}

// PutLowered records the canonical lowered form for a scene at a specific
// source hash. Uses ON CONFLICT DO NOTHING for idempotency - lowering is
// deterministic, so a concurrent duplicate write carries identical content
// and is silently ignored.
func (s *Store) PutLowered(ctx context.Context, sceneID, sourceHash, entryName, loweredText string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lowered_scenes (scene_id, source_hash, entry_name, lowered_text)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scene_id, source_hash) DO NOTHING
	`, sceneID, sourceHash, entryName, loweredText)
	if err != nil {
		return fmt.Errorf("put lowered: %w", err)
	}
	return nil
}

// DeleteScene drops every cached form for one scene. Called when a scene is
// removed from the project; stale revisions of live scenes are left in
// place (they are small and keyed by hash, so they can never be served for
// current source).
func (s *Store) DeleteScene(ctx context.Context, sceneID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM lowered_scenes WHERE scene_id = ?
	`, sceneID)
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	return nil
}

// PruneScenes drops cached forms for every scene not in the live set,
// bounding the cache by the current project. An empty live set clears the
// cache entirely.
func (s *Store) PruneScenes(ctx context.Context, live []string) error {
	if len(live) == 0 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM lowered_scenes`); err != nil {
			return fmt.Errorf("prune scenes: %w", err)
		}
		return nil
	}

	placeholders := strings.Repeat("?, ", len(live)-1) + "?"
	args := make([]any, len(live))
	for i, id := range live {
		args[i] = id
	}

	query := fmt.Sprintf(`DELETE FROM lowered_scenes WHERE scene_id NOT IN (%s)`, placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("prune scenes: %w", err)
	}
	return nil
}

// CountLowered reports how many lowered forms are cached. Used by status
// reporting and tests.
func (s *Store) CountLowered(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lowered_scenes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count lowered: %w", err)
	}
	return count, nil
}
