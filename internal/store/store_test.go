package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwchanap/virgo/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "virgo.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func insertTestResult(t *testing.T, s *Store, endedAt time.Time, song string, perfect, miss int, drums []model.DrumStats) int64 {
	t.Helper()
	id, err := s.InsertResult(context.Background(), model.PlayResult{
		StartedAt:  endedAt.Add(-time.Minute),
		EndedAt:    endedAt,
		SongTitle:  song,
		Difficulty: "medium",
		BPM:        120,
		TotalNotes: perfect + miss,
		Perfect:    perfect,
		Miss:       miss,
		MaxCombo:   perfect,
		DurationMs: 60000,
	}, drums)
	if err != nil {
		t.Fatalf("InsertResult: %v", err)
	}
	return id
}

func TestInsertAndListResults(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	insertTestResult(t, s, base, "Astral Drift", 90, 10, nil)
	insertTestResult(t, s, base.Add(time.Hour), "Neon Cascade", 70, 30, nil)

	all, err := s.ListResults(context.Background(), model.StatsConfig{})
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 results, got %d", len(all))
	}
	if !all[0].EndedAt.Before(all[1].EndedAt) {
		t.Fatalf("expected results ordered by ended_at ascending")
	}
	if all[0].Hit != 90 || all[0].Miss != 10 {
		t.Fatalf("expected 90 hits and 10 misses, got %d/%d", all[0].Hit, all[0].Miss)
	}
	if all[0].SongTitle != "Astral Drift" || all[1].SongTitle != "Neon Cascade" {
		t.Fatalf("expected song titles on aggregates, got %q, %q", all[0].SongTitle, all[1].SongTitle)
	}

	bySong, err := s.ListResults(context.Background(), model.StatsConfig{Song: "Neon Cascade"})
	if err != nil {
		t.Fatalf("ListResults with song filter: %v", err)
	}
	if len(bySong) != 1 || bySong[0].Hit != 70 {
		t.Fatalf("expected 1 filtered result with 70 hits, got %+v", bySong)
	}

	byDifficulty, err := s.ListResults(context.Background(), model.StatsConfig{Difficulty: "medium"})
	if err != nil {
		t.Fatalf("ListResults with difficulty filter: %v", err)
	}
	if len(byDifficulty) != 2 {
		t.Fatalf("expected 2 medium results, got %d", len(byDifficulty))
	}
	if other, err := s.ListResults(context.Background(), model.StatsConfig{Difficulty: "hard"}); err != nil || len(other) != 0 {
		t.Fatalf("expected no hard results, got %v (err %v)", other, err)
	}

	since := base.Add(30 * time.Minute)
	recent, err := s.ListResults(context.Background(), model.StatsConfig{Since: &since})
	if err != nil {
		t.Fatalf("ListResults with since filter: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 recent result, got %d", len(recent))
	}
}

func TestGetWeakDrums(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	insertTestResult(t, s, base, "Astral Drift", 50, 0, []model.DrumStats{
		{Drum: "snare", Perfect: 10, Miss: 2, ErrorSumMs: 40, ErrorCount: 10},
	})
	insertTestResult(t, s, base.Add(time.Hour), "Astral Drift", 50, 0, []model.DrumStats{
		{Drum: "snare", Perfect: 5, Miss: 8, ErrorSumMs: -20, ErrorCount: 5},
		{Drum: "bass", Perfect: 20, Miss: 1, ErrorSumMs: 10, ErrorCount: 20},
	})

	aggs, err := s.GetWeakDrums(context.Background(), 10, "")
	if err != nil {
		t.Fatalf("GetWeakDrums: %v", err)
	}
	byDrum := map[string]model.DrumAggregate{}
	for _, a := range aggs {
		byDrum[a.Drum] = a
	}
	if snare := byDrum["snare"]; snare.Perfect != 15 || snare.Miss != 10 || snare.ErrorSumMs != 20 {
		t.Fatalf("unexpected snare aggregate: %+v", snare)
	}

	latest, err := s.GetWeakDrums(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("GetWeakDrums window 1: %v", err)
	}
	byDrum = map[string]model.DrumAggregate{}
	for _, a := range latest {
		byDrum[a.Drum] = a
	}
	if snare := byDrum["snare"]; snare.Perfect != 5 || snare.Miss != 8 {
		t.Fatalf("expected only the latest session in window 1, got %+v", snare)
	}

	none, err := s.GetWeakDrums(context.Background(), 0, "")
	if err != nil || none != nil {
		t.Fatalf("expected empty aggregate for window 0, got %v %v", none, err)
	}
}

func TestListDrumAggregatesForResults(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	id1 := insertTestResult(t, s, base, "Astral Drift", 10, 0, []model.DrumStats{
		{Drum: "hihat", Perfect: 4, Great: 2},
	})
	id2 := insertTestResult(t, s, base.Add(time.Hour), "Astral Drift", 10, 0, []model.DrumStats{
		{Drum: "hihat", Perfect: 1, Great: 3},
	})

	aggs, err := s.ListDrumAggregatesForResults(context.Background(), []int64{id1, id2})
	if err != nil {
		t.Fatalf("ListDrumAggregatesForResults: %v", err)
	}
	if len(aggs) != 1 || aggs[0].Drum != "hihat" || aggs[0].Perfect != 5 || aggs[0].Great != 5 {
		t.Fatalf("unexpected aggregates: %+v", aggs)
	}

	if empty, err := s.ListDrumAggregatesForResults(context.Background(), nil); err != nil || empty != nil {
		t.Fatalf("expected nil for no ids, got %v %v", empty, err)
	}
}

func TestListDrumStatsForResults(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	id1 := insertTestResult(t, s, base, "Astral Drift", 10, 0, []model.DrumStats{
		{Drum: "snare", Perfect: 4},
		{Drum: "bass", Perfect: 6},
	})
	id2 := insertTestResult(t, s, base.Add(time.Hour), "Astral Drift", 10, 0, []model.DrumStats{
		{Drum: "snare", Perfect: 2, Miss: 1},
	})

	byResult, err := s.ListDrumStatsForResults(context.Background(), []int64{id1, id2}, []string{"snare"})
	if err != nil {
		t.Fatalf("ListDrumStatsForResults: %v", err)
	}
	if len(byResult) != 2 {
		t.Fatalf("expected stats for 2 results, got %d", len(byResult))
	}
	if byResult[id1]["snare"].Perfect != 4 || byResult[id2]["snare"].Miss != 1 {
		t.Fatalf("unexpected per-result stats: %+v", byResult)
	}
	if _, ok := byResult[id1]["bass"]; ok {
		t.Fatalf("expected bass to be filtered out")
	}

	empty, err := s.ListDrumStatsForResults(context.Background(), nil, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty map, got %v %v", empty, err)
	}
}
