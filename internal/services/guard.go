package services

import (
	"sync"

	"github.com/google/uuid"
)

// MutationGuard tracks local writes whose echo is expected back from the
// remote change feed. Each write gets its own token, so overlapping writes
// are suppressed one echo each.
type MutationGuard struct {
	mu      sync.Mutex
	pending map[string][]string // rock id -> tokens, oldest first
}

func NewMutationGuard() *MutationGuard {
	return &MutationGuard{pending: make(map[string][]string)}
}

// Begin registers a write to rockID and returns its token.
func (g *MutationGuard) Begin(rockID string) string {
	token := uuid.NewString()
	g.mu.Lock()
	g.pending[rockID] = append(g.pending[rockID], token)
	g.mu.Unlock()
	return token
}

// Cancel drops a token whose write will not echo back.
func (g *MutationGuard) Cancel(rockID, token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tokens := g.pending[rockID]
	for i, t := range tokens {
		if t == token {
			tokens = append(tokens[:i:i], tokens[i+1:]...)
			break
		}
	}
	if len(tokens) == 0 {
		delete(g.pending, rockID)
		return
	}
	g.pending[rockID] = tokens
}

// Consume reports whether a change to rockID is the echo of a local write
// and, if so, retires the oldest token for it.
func (g *MutationGuard) Consume(rockID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	tokens := g.pending[rockID]
	if len(tokens) == 0 {
		return false
	}
	if len(tokens) == 1 {
		delete(g.pending, rockID)
	} else {
		g.pending[rockID] = tokens[1:]
	}
	return true
}

// Pending returns the number of outstanding tokens.
func (g *MutationGuard) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, tokens := range g.pending {
		n += len(tokens)
	}
	return n
}
