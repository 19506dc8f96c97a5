// Package leaderboard keeps the best finished lap times per tour in a JSON
// file.
package leaderboard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"
)

// TopSize is the number of entries kept in each tour's top list.
const TopSize = 10

// Board holds the best lap of every player and the top list per tour.
type Board struct {
	Tours map[string]tourData `json:"tours"`

	path string
	now  func() time.Time
	mu   sync.Mutex
}

type tourData struct {
	Best  map[string]int64  `json:"best"`
	Names map[string]string `json:"names"`
	Top   []Entry           `json:"top"`
}

// Entry is one row of a top list.
type Entry struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	LapMS    int64  `json:"lap_ms"`
	Updated  int64  `json:"updated"`
}

// New loads the board at path. An empty path keeps records in memory only.
func New(path string) (*Board, error) {
	b := &Board{
		path:  path,
		now:   time.Now,
		Tours: make(map[string]tourData),
	}
	if err := b.load(); err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return b, nil
}

func (b *Board) load() error {
	if b.path == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, b); err != nil {
		return err
	}
	if b.Tours == nil {
		b.Tours = make(map[string]tourData)
	}
	return nil
}

func (b *Board) saveLocked() error {
	if b.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, data, 0644)
}

// Record stores a finished lap. Only an improvement replaces the player's
// best. placement is the 1-based rank in the top list, or 0 when the lap
// did not improve or did not make the list.
func (b *Board) Record(tour, playerID, name string, lapMS int64) (placement int, prevBest int64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := b.Tours[tour]
	if data.Best == nil {
		data.Best = make(map[string]int64)
	}
	if data.Names == nil {
		data.Names = make(map[string]string)
	}
	data.Names[playerID] = name

	old, seen := data.Best[playerID]
	if seen {
		prevBest = old
	}
	improved := !seen || lapMS < old
	if improved {
		data.Best[playerID] = lapMS
	}
	data.Top = b.rebuildTop(data)
	b.Tours[tour] = data

	if err := b.saveLocked(); err != nil {
		return 0, prevBest, fmt.Errorf("failed to save leaderboard: %w", err)
	}
	if !improved {
		return 0, prevBest, nil
	}
	for i, entry := range data.Top {
		if entry.PlayerID == playerID {
			return i + 1, prevBest, nil
		}
	}
	return 0, prevBest, nil
}

// Best returns the player's best lap on a tour.
func (b *Board) Best(tour, playerID string) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	best, ok := b.Tours[tour].Best[playerID]
	return best, ok
}

// Top returns a copy of a tour's top list, fastest first.
func (b *Board) Top(tour string) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.Tours[tour]
	if !ok {
		return []Entry{}
	}
	return slices.Clone(data.Top)
}

// Reset drops one player's record, or the whole tour when playerID is empty.
func (b *Board) Reset(tour, playerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.Tours[tour]
	if !ok {
		return nil
	}
	if playerID == "" {
		delete(b.Tours, tour)
	} else {
		delete(data.Best, playerID)
		delete(data.Names, playerID)
		data.Top = b.rebuildTop(data)
		b.Tours[tour] = data
	}
	return b.saveLocked()
}

func (b *Board) rebuildTop(data tourData) []Entry {
	type kv struct {
		id string
		ms int64
	}
	list := make([]kv, 0, len(data.Best))
	for id, ms := range data.Best {
		list = append(list, kv{id: id, ms: ms})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].ms != list[j].ms {
			return list[i].ms < list[j].ms
		}
		return list[i].id < list[j].id
	})

	top := make([]Entry, 0, TopSize)
	updated := b.now().UnixMilli()
	for i, kv := range list {
		if i >= TopSize {
			break
		}
		top = append(top, Entry{
			PlayerID: kv.id,
			Name:     data.Names[kv.id],
			LapMS:    kv.ms,
			Updated:  updated,
		})
	}
	return top
}
