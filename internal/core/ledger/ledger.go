// Package ledger remembers which (transaction, wallet) pairs were already
// alerted on, so a re-scanned block never produces a second notification.
//
// Entries are kept in insertion order, which is also time order. Eviction
// only happens once the ledger grows past its high-water mark: expired
// entries go first, then the oldest remaining ones.
package ledger

import (
	"container/list"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/walletwatch/internal/core/domain"
)

const (
	DefaultRetention = 24 * time.Hour
	DefaultHighWater = 10_000
)

// Config controls ledger bounds.
type Config struct {
	Retention time.Duration
	HighWater int
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu        sync.Mutex
	order     *list.List // of domain.SeenEntry, oldest at front
	index     map[string]*list.Element
	retention time.Duration
	highWater int
	now       func() time.Time
}

// New creates an empty ledger.
func New(cfg Config) *Ledger {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.HighWater <= 0 {
		cfg.HighWater = DefaultHighWater
	}
	return &Ledger{
		order:     list.New(),
		index:     make(map[string]*list.Element),
		retention: cfg.Retention,
		highWater: cfg.HighWater,
		now:       time.Now,
	}
}

// Key builds the dedup key for a transaction and wallet.
func Key(txHash, wallet string) string {
	return strings.ToLower(txHash) + ":" + strings.ToLower(wallet)
}

// IsSeen reports whether the pair was already marked.
func (l *Ledger) IsSeen(txHash, wallet string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.index[Key(txHash, wallet)]
	return ok
}

// MarkSeen records the pair. It returns false if the pair was already known,
// in which case the first timestamp is kept.
func (l *Ledger) MarkSeen(txHash, wallet string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := Key(txHash, wallet)
	if _, ok := l.index[key]; ok {
		return false
	}

	now := l.now()
	// Keep the list time-ordered even if the wall clock steps back.
	if back := l.order.Back(); back != nil {
		if last := back.Value.(domain.SeenEntry).SeenAt; now.Before(last) {
			now = last
		}
	}
	l.index[key] = l.order.PushBack(domain.SeenEntry{Key: key, SeenAt: now})

	if l.order.Len() > l.highWater {
		l.evictLocked(now)
	}
	return true
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}

// Entries returns a copy of all entries, oldest first.
func (l *Ledger) Entries() []domain.SeenEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.SeenEntry, 0, l.order.Len())
	for e := l.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(domain.SeenEntry))
	}
	return out
}

// Restore replaces the ledger content with persisted entries. Entries are
// re-sorted by time so eviction order stays correct whatever the input order.
func (l *Ledger) Restore(entries []domain.SeenEntry) {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b domain.SeenEntry) int {
		return a.SeenAt.Compare(b.SeenAt)
	})

	l.mu.Lock()
	defer l.mu.Unlock()

	l.order.Init()
	clear(l.index)
	for _, entry := range sorted {
		if entry.Key == "" {
			continue
		}
		entry.Key = strings.ToLower(entry.Key)
		if _, dup := l.index[entry.Key]; dup {
			continue
		}
		l.index[entry.Key] = l.order.PushBack(entry)
	}
	if l.order.Len() > l.highWater {
		l.evictLocked(l.now())
	}
}

// Prune drops every entry older than the retention window regardless of the
// high-water mark and returns how many were removed.
func (l *Ledger) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropExpiredLocked(l.now())
}

func (l *Ledger) evictLocked(now time.Time) {
	l.dropExpiredLocked(now)
	for l.order.Len() > l.highWater {
		l.removeLocked(l.order.Front())
	}
}

func (l *Ledger) dropExpiredLocked(now time.Time) int {
	cutoff := now.Add(-l.retention)
	removed := 0
	for front := l.order.Front(); front != nil; front = l.order.Front() {
		if !front.Value.(domain.SeenEntry).SeenAt.Before(cutoff) {
			break
		}
		l.removeLocked(front)
		removed++
	}
	return removed
}

func (l *Ledger) removeLocked(e *list.Element) {
	entry := l.order.Remove(e).(domain.SeenEntry)
	delete(l.index, entry.Key)
}
