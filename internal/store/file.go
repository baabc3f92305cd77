package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gomoku/internal/game"
)

const (
	usersFile     = "users.json"
	gamesFile     = "games.json"
	liveGamesFile = "live_games.json"
)

// FileStore keeps accounts, history and live games as JSON documents in a
// directory. Every call reads or rewrites the whole document.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates dir and the three documents when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	fs := &FileStore{dir: dir}
	defaults := map[string]any{
		usersFile:     map[string]Account{},
		gamesFile:     []HistoryRecord{},
		liveGamesFile: map[string]game.Snapshot{},
	}
	for name, empty := range defaults {
		if _, err := os.Stat(fs.path(name)); errors.Is(err, os.ErrNotExist) {
			if err := fs.write(name, empty); err != nil {
				return nil, err
			}
		}
	}
	return fs, nil
}

func (f *FileStore) path(name string) string { return filepath.Join(f.dir, name) }

func (f *FileStore) read(name string, v any) error {
	data, err := os.ReadFile(f.path(name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// write replaces the document through a rename so readers never see a
// half-written file.
func (f *FileStore) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(f.dir, name+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	return os.Rename(tmp.Name(), f.path(name))
}

func (f *FileStore) users() (map[string]Account, error) {
	users := map[string]Account{}
	err := f.read(usersFile, &users)
	return users, err
}

func (f *FileStore) Get(_ context.Context, username string) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users, err := f.users()
	if err != nil {
		return Account{}, err
	}
	a, ok := users[username]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (f *FileStore) Put(_ context.Context, a Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	users, err := f.users()
	if err != nil {
		return err
	}
	users[a.Username] = a
	return f.write(usersFile, users)
}

func (f *FileStore) Delete(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	users, err := f.users()
	if err != nil {
		return err
	}
	if _, ok := users[username]; !ok {
		return ErrNotFound
	}
	delete(users, username)
	return f.write(usersFile, users)
}

func (f *FileStore) List(_ context.Context) ([]Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users, err := f.users()
	if err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(users))
	for _, a := range users {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *FileStore) games() ([]HistoryRecord, error) {
	var games []HistoryRecord
	err := f.read(gamesFile, &games)
	return games, err
}

func (f *FileStore) Append(_ context.Context, rec HistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	games, err := f.games()
	if err != nil {
		return err
	}
	return f.write(gamesFile, append(games, rec))
}

func (f *FileStore) ForPlayer(_ context.Context, username string) ([]HistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	games, err := f.games()
	if err != nil {
		return nil, err
	}
	var out []HistoryRecord
	for _, rec := range games {
		if involves(rec, username) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *FileStore) RenamePlayer(_ context.Context, from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	games, err := f.games()
	if err != nil {
		return err
	}
	changed := false
	for i := range games {
		if renameIn(&games[i], from, to) {
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.write(gamesFile, games)
}

// Live returns the live-games view of the same directory.
func (f *FileStore) Live() LiveSessionStore { return fileLive{f} }

type fileLive struct{ f *FileStore }

func (l fileLive) load() (map[string]game.Snapshot, error) {
	live := map[string]game.Snapshot{}
	err := l.f.read(liveGamesFile, &live)
	return live, err
}

func (l fileLive) Put(_ context.Context, snap game.Snapshot) error {
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	live, err := l.load()
	if err != nil {
		return err
	}
	live[snap.GameID] = snap
	return l.f.write(liveGamesFile, live)
}

func (l fileLive) Get(_ context.Context, gameID string) (game.Snapshot, error) {
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	live, err := l.load()
	if err != nil {
		return game.Snapshot{}, err
	}
	snap, ok := live[gameID]
	if !ok {
		return game.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (l fileLive) Delete(_ context.Context, gameID string) error {
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	live, err := l.load()
	if err != nil {
		return err
	}
	if _, ok := live[gameID]; !ok {
		return nil
	}
	delete(live, gameID)
	return l.f.write(liveGamesFile, live)
}

func (l fileLive) List(_ context.Context) ([]game.Snapshot, error) {
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	live, err := l.load()
	if err != nil {
		return nil, err
	}
	out := make([]game.Snapshot, 0, len(live))
	for _, snap := range live {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
