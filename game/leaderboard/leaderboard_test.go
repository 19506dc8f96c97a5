package leaderboard

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestRecordKeepsBest(t *testing.T) {
	b, err := New("")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	place, prev, err := b.Record("classic", "p1", "Ana", 60000)
	if err != nil || place != 1 || prev != 0 {
		t.Errorf("Expected first place, got place=%d prev=%d err=%v", place, prev, err)
	}

	place, prev, _ = b.Record("classic", "p1", "Ana", 65000)
	if place != 0 || prev != 60000 {
		t.Errorf("Expected slower lap ignored, got place=%d prev=%d", place, prev)
	}
	if best, _ := b.Best("classic", "p1"); best != 60000 {
		t.Errorf("Expected best 60000, got %d", best)
	}

	b.Record("classic", "p2", "Bia", 55000)
	top := b.Top("classic")
	if len(top) != 2 || top[0].PlayerID != "p2" || top[1].LapMS != 60000 {
		t.Errorf("Unexpected top list: %+v", top)
	}

	if _, ok := b.Best("other", "p1"); ok {
		t.Error("Expected tours to be independent")
	}
	if len(b.Top("other")) != 0 {
		t.Error("Expected empty top list for unknown tour")
	}
}

func TestTopIsCapped(t *testing.T) {
	b, _ := New("")
	for i := 0; i < TopSize+5; i++ {
		b.Record("t", fmt.Sprintf("p%02d", i), "", int64(1000+i))
	}
	top := b.Top("t")
	if len(top) != TopSize {
		t.Fatalf("Expected %d entries, got %d", TopSize, len(top))
	}
	if top[0].LapMS != 1000 || top[TopSize-1].LapMS != int64(1000+TopSize-1) {
		t.Errorf("Expected fastest laps in order, got %+v", top)
	}

	place, _, _ := b.Record("t", "slow", "", 99999)
	if place != 0 {
		t.Errorf("Expected no placement outside the top list, got %d", place)
	}
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "leaderboard.json")

	b, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, _, err := b.Record("classic", "p1", "Ana", 42000); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if best, ok := reloaded.Best("classic", "p1"); !ok || best != 42000 {
		t.Errorf("Expected persisted best, got %d (found=%v)", best, ok)
	}

	if err := reloaded.Reset("classic", "p1"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if len(reloaded.Top("classic")) != 0 {
		t.Error("Expected player removed from top list")
	}
	if err := reloaded.Reset("classic", ""); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
}

func TestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaderboard.json")
	if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if _, err := New(path); err == nil {
		t.Error("Expected error for corrupt leaderboard")
	}
}
