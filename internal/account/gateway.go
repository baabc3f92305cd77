// Package account owns credentials, the logged-in set and the credit
// ledger. Sessions never touch accounts directly; they go through Settle.
package account

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"gomoku/internal/reward"
	"gomoku/internal/store"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrAlreadyLoggedIn  = errors.New("user already logged in")
	ErrBadCredentials   = errors.New("incorrect username or password")
	ErrUsernameTaken    = errors.New("username already exists")
	ErrInvalidInput     = errors.New("username and password are required")
	ErrUnknownUser      = errors.New("user not found")
)

// LeaderboardSize is the number of entries get_leaderboard returns.
const LeaderboardSize = 100

// Gateway wraps the account and history stores. Read-modify-write cycles
// on accounts are serialised by mu.
type Gateway struct {
	mu       sync.Mutex
	accounts store.AccountStore
	history  store.HistoryStore

	onlineMu sync.RWMutex
	online   map[string]struct{}

	startingCredits int
	cost            int
	log             *zap.Logger
}

func NewGateway(accounts store.AccountStore, history store.HistoryStore, startingCredits int, log *zap.Logger) *Gateway {
	return &Gateway{
		accounts:        accounts,
		history:         history,
		online:          make(map[string]struct{}),
		startingCredits: startingCredits,
		cost:            bcrypt.DefaultCost,
		log:             log,
	}
}

// Signup creates an account with the starting balance.
func (g *Gateway) Signup(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	_, err = g.accounts.Get(ctx, username)
	switch {
	case err == nil:
		return ErrUsernameTaken
	case !errors.Is(err, store.ErrNotFound):
		return err
	}
	if err := g.accounts.Put(ctx, store.Account{
		Username:     username,
		PasswordHash: string(hash),
		Credits:      g.startingCredits,
	}); err != nil {
		return err
	}
	g.log.Info("account created", zap.String("username", username))
	return nil
}

// Login verifies credentials and marks the user online.
func (g *Gateway) Login(ctx context.Context, username, password string) (store.Account, error) {
	if username == "" || password == "" {
		return store.Account{}, ErrInvalidInput
	}
	if g.LoggedIn(username) {
		return store.Account{}, ErrAlreadyLoggedIn
	}
	a, err := g.accounts.Get(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return store.Account{}, ErrBadCredentials
	}
	if err != nil {
		return store.Account{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return store.Account{}, ErrBadCredentials
	}

	g.onlineMu.Lock()
	defer g.onlineMu.Unlock()
	if _, ok := g.online[username]; ok {
		return store.Account{}, ErrAlreadyLoggedIn
	}
	g.online[username] = struct{}{}
	return a, nil
}

// Logout marks the user offline.
func (g *Gateway) Logout(username string) error {
	g.onlineMu.Lock()
	defer g.onlineMu.Unlock()
	if _, ok := g.online[username]; !ok {
		return ErrNotAuthenticated
	}
	delete(g.online, username)
	return nil
}

func (g *Gateway) LoggedIn(username string) bool {
	g.onlineMu.RLock()
	defer g.onlineMu.RUnlock()
	_, ok := g.online[username]
	return ok
}

// Online is the number of logged-in users.
func (g *Gateway) Online() int {
	g.onlineMu.RLock()
	defer g.onlineMu.RUnlock()
	return len(g.online)
}

// Delete removes the account, anonymises its history and logs it out.
func (g *Gateway) Delete(ctx context.Context, username string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.history.RenamePlayer(ctx, username, store.DeletedAccount); err != nil {
		return fmt.Errorf("anonymise history: %w", err)
	}
	if err := g.accounts.Delete(ctx, username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownUser
		}
		return err
	}
	g.onlineMu.Lock()
	delete(g.online, username)
	g.onlineMu.Unlock()
	g.log.Info("account deleted", zap.String("username", username))
	return nil
}

func (g *Gateway) Stats(ctx context.Context, username string) (store.Account, error) {
	a, err := g.accounts.Get(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return store.Account{}, ErrUnknownUser
	}
	return a, err
}

// Leaderboard ranks by credits, then wins, then fewest losses.
func (g *Gateway) Leaderboard(ctx context.Context, limit int) ([]store.Account, error) {
	all, err := g.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Credits != b.Credits {
			return a.Credits > b.Credits
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.Losses < b.Losses
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (g *Gateway) History(ctx context.Context, username string) ([]store.HistoryRecord, error) {
	return g.history.ForPlayer(ctx, username)
}

// Settle moves credits from loser to winner and bumps the win and loss
// counters. A missing account counts as zero credits and is not written.
func (g *Gateway) Settle(ctx context.Context, winner, loser string, stones int) (map[string]int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	w, werr := g.accounts.Get(ctx, winner)
	if werr != nil && !errors.Is(werr, store.ErrNotFound) {
		return nil, werr
	}
	l, lerr := g.accounts.Get(ctx, loser)
	if lerr != nil && !errors.Is(lerr, store.ErrNotFound) {
		return nil, lerr
	}

	gain, loss := reward.Settle(w.Credits, l.Credits, stones)
	deltas := map[string]int{winner: gain, loser: loss}

	if werr == nil {
		w.Credits += gain
		w.Wins++
		if err := g.accounts.Put(ctx, w); err != nil {
			return deltas, fmt.Errorf("credit %s: %w", winner, err)
		}
	}
	if lerr == nil {
		l.Credits += loss
		l.Losses++
		if err := g.accounts.Put(ctx, l); err != nil {
			return deltas, fmt.Errorf("debit %s: %w", loser, err)
		}
	}
	return deltas, nil
}
