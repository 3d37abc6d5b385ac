package filter

import (
	"slices"
	"sync"

	"github.com/vietddude/walletwatch/internal/core/domain"
)

// WatchList is the mutable, ordered set of watched wallets. Order is the
// insertion order, which is what list and remove-by-index refer to.
type WatchList struct {
	mu      sync.RWMutex
	wallets []domain.WatchedWallet
	index   map[string]int
}

// NewWatchList creates an empty watch list.
func NewWatchList() *WatchList {
	return &WatchList{
		index: make(map[string]int),
	}
}

// Contains checks if an address is watched.
func (f *WatchList) Contains(address string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, exists := f.index[domain.NormalizeAddress(address)]
	return exists
}

// Lookup returns the wallet for an address.
func (f *WatchList) Lookup(address string) (domain.WatchedWallet, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	i, ok := f.index[domain.NormalizeAddress(address)]
	if !ok {
		return domain.WatchedWallet{}, false
	}
	return f.wallets[i], true
}

// Add appends a wallet. It returns false if the address is already watched.
func (f *WatchList) Add(w domain.WatchedWallet) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := w.Key()
	if _, exists := f.index[key]; exists {
		return false
	}
	w.Address = key
	f.index[key] = len(f.wallets)
	f.wallets = append(f.wallets, w)
	return true
}

// RemoveAt removes the wallet at a zero-based position.
func (f *WatchList) RemoveAt(i int) (domain.WatchedWallet, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.wallets) {
		return domain.WatchedWallet{}, false
	}
	removed := f.wallets[i]
	f.wallets = slices.Delete(f.wallets, i, i+1)
	f.reindexLocked()
	return removed, true
}

// Remove removes a wallet by address.
func (f *WatchList) Remove(address string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.index[domain.NormalizeAddress(address)]
	if !ok {
		return false
	}
	f.wallets = slices.Delete(f.wallets, i, i+1)
	f.reindexLocked()
	return true
}

// Replace swaps the whole list, dropping duplicate addresses.
func (f *WatchList) Replace(wallets []domain.WatchedWallet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// wallets may share f.wallets' backing array.
	f.wallets = make([]domain.WatchedWallet, 0, len(wallets))
	clear(f.index)
	for _, w := range wallets {
		key := w.Key()
		if key == "" {
			continue
		}
		if _, dup := f.index[key]; dup {
			continue
		}
		w.Address = key
		f.index[key] = len(f.wallets)
		f.wallets = append(f.wallets, w)
	}
}

// Size returns the number of watched wallets.
func (f *WatchList) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.wallets)
}

// List returns a copy of the wallets in insertion order.
func (f *WatchList) List() []domain.WatchedWallet {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.wallets)
}

// ActiveAt returns the wallets being watched at the given block height,
// keyed by normalized address. The scanner takes one per block so that
// concurrent adds and removes never affect a block half way through.
func (f *WatchList) ActiveAt(height uint64) map[string]domain.WatchedWallet {
	f.mu.RLock()
	defer f.mu.RUnlock()
	result := make(map[string]domain.WatchedWallet, len(f.wallets))
	for _, w := range f.wallets {
		if w.StartBlock > height {
			continue
		}
		result[w.Address] = w
	}
	return result
}

// Addresses returns the list of all watched addresses.
func (f *WatchList) Addresses() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	result := make([]string, 0, len(f.wallets))
	for _, w := range f.wallets {
		result = append(result, w.Address)
	}
	return result
}

func (f *WatchList) reindexLocked() {
	clear(f.index)
	for i, w := range f.wallets {
		f.index[w.Address] = i
	}
}
