// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwchanap/virgo/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for play results.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			song_title TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			bpm REAL NOT NULL,
			total_notes INTEGER NOT NULL,
			perfect INTEGER NOT NULL,
			great INTEGER NOT NULL,
			good INTEGER NOT NULL,
			miss INTEGER NOT NULL,
			max_combo INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS result_drum_stats (
			result_id INTEGER NOT NULL,
			drum TEXT NOT NULL,
			perfect INTEGER NOT NULL,
			great INTEGER NOT NULL,
			good INTEGER NOT NULL,
			miss INTEGER NOT NULL,
			error_sum_ms REAL NOT NULL,
			error_count INTEGER NOT NULL,
			PRIMARY KEY (result_id, drum)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_ended_at ON results(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_result_drum_stats_drum ON result_drum_stats(drum);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertResult stores a completed play session and its per-drum stats.
func (s *Store) InsertResult(ctx context.Context, result model.PlayResult, drums []model.DrumStats) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO results (started_at, ended_at, song_title, difficulty, bpm, total_notes, perfect, great, good, miss, max_combo, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.StartedAt.Format(time.RFC3339Nano),
		result.EndedAt.Format(time.RFC3339Nano),
		result.SongTitle,
		result.Difficulty,
		result.BPM,
		result.TotalNotes,
		result.Perfect,
		result.Great,
		result.Good,
		result.Miss,
		result.MaxCombo,
		result.DurationMs,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(drums) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO result_drum_stats (result_id, drum, perfect, great, good, miss, error_sum_ms, error_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, ds := range drums {
			if _, err := stmt.ExecContext(ctx, id, ds.Drum, ds.Perfect, ds.Great, ds.Good, ds.Miss, ds.ErrorSumMs, ds.ErrorCount); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// GetWeakDrums aggregates drum stats over the most recent play sessions.
func (s *Store) GetWeakDrums(ctx context.Context, window int, song string) ([]model.DrumAggregate, error) {
	if window <= 0 {
		return nil, nil
	}
	query := `WITH recent_results AS (
		SELECT id FROM results
		WHERE (? = '' OR song_title = ?)
		ORDER BY ended_at DESC
		LIMIT ?
	)
	SELECT ds.drum, SUM(ds.perfect) AS perfect, SUM(ds.great) AS great, SUM(ds.good) AS good,
		SUM(ds.miss) AS miss, SUM(ds.error_sum_ms) AS error_sum_ms, SUM(ds.error_count) AS error_count
	FROM result_drum_stats ds
	JOIN recent_results r ON r.id = ds.result_id
	GROUP BY ds.drum`

	rows, err := s.db.QueryContext(ctx, query, song, song, window)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.DrumAggregate
	for rows.Next() {
		var agg model.DrumAggregate
		if err := rows.Scan(&agg.Drum, &agg.Perfect, &agg.Great, &agg.Good, &agg.Miss, &agg.ErrorSumMs, &agg.ErrorCount); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListResults returns play-session aggregates filtered by stats config.
func (s *Store) ListResults(ctx context.Context, cfg model.StatsConfig) ([]model.ResultAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Song != "" {
		clauses = append(clauses, "song_title = ?")
		args = append(args, cfg.Song)
	}
	if cfg.Difficulty != "" {
		clauses = append(clauses, "difficulty = ?")
		args = append(args, cfg.Difficulty)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT id, ended_at, song_title, perfect + great + good AS hit, miss, duration_ms
		FROM results
		WHERE %s
		ORDER BY ended_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var results []model.ResultAggregate
	for rows.Next() {
		var agg model.ResultAggregate
		var endedAt string
		if err := rows.Scan(&agg.ResultID, &endedAt, &agg.SongTitle, &agg.Hit, &agg.Miss, &agg.DurationMs); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		results = append(results, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// ListDrumAggregatesForResults aggregates per-drum stats across play sessions.
func (s *Store) ListDrumAggregatesForResults(ctx context.Context, resultIDs []int64) ([]model.DrumAggregate, error) {
	if len(resultIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(resultIDs))
	args := make([]any, len(resultIDs))
	for i, id := range resultIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT drum, SUM(perfect) AS perfect, SUM(great) AS great, SUM(good) AS good,
		SUM(miss) AS miss, SUM(error_sum_ms) AS error_sum_ms, SUM(error_count) AS error_count
		FROM result_drum_stats
		WHERE result_id IN (%s)
		GROUP BY drum`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.DrumAggregate
	for rows.Next() {
		var agg model.DrumAggregate
		if err := rows.Scan(&agg.Drum, &agg.Perfect, &agg.Great, &agg.Good, &agg.Miss, &agg.ErrorSumMs, &agg.ErrorCount); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListDrumStatsForResults returns per-session stats for selected drums.
func (s *Store) ListDrumStatsForResults(ctx context.Context, resultIDs []int64, drums []string) (map[int64]map[string]model.DrumAggregate, error) {
	if len(resultIDs) == 0 || len(drums) == 0 {
		return map[int64]map[string]model.DrumAggregate{}, nil
	}
	idPlaceholders := make([]string, len(resultIDs))
	args := make([]any, 0, len(resultIDs)+len(drums))
	for i, id := range resultIDs {
		idPlaceholders[i] = "?"
		args = append(args, id)
	}
	drumPlaceholders := make([]string, len(drums))
	for i, d := range drums {
		drumPlaceholders[i] = "?"
		args = append(args, d)
	}

	query := fmt.Sprintf(`SELECT result_id, drum, perfect, great, good, miss, error_sum_ms, error_count
		FROM result_drum_stats
		WHERE result_id IN (%s) AND drum IN (%s)`, strings.Join(idPlaceholders, ","), strings.Join(drumPlaceholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	result := map[int64]map[string]model.DrumAggregate{}
	for rows.Next() {
		var resultID int64
		var agg model.DrumAggregate
		if err := rows.Scan(&resultID, &agg.Drum, &agg.Perfect, &agg.Great, &agg.Good, &agg.Miss, &agg.ErrorSumMs, &agg.ErrorCount); err != nil {
			return nil, err
		}
		if _, ok := result[resultID]; !ok {
			result[resultID] = map[string]model.DrumAggregate{}
		}
		result[resultID][agg.Drum] = agg
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
