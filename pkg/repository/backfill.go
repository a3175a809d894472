package repository

import (
	"context"
	"fmt"

	"github.com/ccollicutt/matchlog/pkg/parser"
)

// BackfillNames replaces "Unknown" roster names with a name the same player used
// in another match, preferring the most recent one. It returns the rows updated.
func (r *Repository) BackfillNames(ctx context.Context, q Querier) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE roster SET name = (
			SELECT r2.name FROM roster r2 JOIN games g ON g.id = r2.game_id
			WHERE r2.player_id = roster.player_id AND r2.name <> ?
			ORDER BY g.timestamp DESC, g.id DESC
			LIMIT 1
		)
		WHERE name = ? AND EXISTS (
			SELECT 1 FROM roster r3
			WHERE r3.player_id = roster.player_id AND r3.name <> ?
		)`, parser.UnknownName, parser.UnknownName, parser.UnknownName)
	if err != nil {
		return 0, fmt.Errorf("backfilling names: %w", err)
	}
	return res.RowsAffected()
}
