package control

import (
	"sync"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// Board implements domain.Surface by keeping the latest published snapshot
// for clients polling the control API.
type Board struct {
	mu     sync.RWMutex
	latest domain.Snapshot
	seq    uint64
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{}
}

// Publish stores s as the current snapshot.
func (b *Board) Publish(s domain.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s.Domains = append([]string(nil), s.Domains...)
	b.latest = s
	b.seq++
}

// Latest returns the most recent snapshot and how many have been published.
func (b *Board) Latest() (domain.Snapshot, uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := b.latest
	s.Domains = append([]string(nil), s.Domains...)
	return s, b.seq
}

// Ensure Board implements domain.Surface.
var _ domain.Surface = (*Board)(nil)
