package filter

import (
	"github.com/vietddude/walletwatch/internal/core/domain"
)

// AssetSet indexes the static tracked assets by contract address. It is
// read-only after construction and needs no locking.
type AssetSet struct {
	all        []domain.TrackedAsset
	native     *domain.TrackedAsset
	byContract map[string]domain.TrackedAsset
}

// NewAssetSet builds the set.
func NewAssetSet(assets []domain.TrackedAsset) *AssetSet {
	s := &AssetSet{
		all:        make([]domain.TrackedAsset, 0, len(assets)),
		byContract: make(map[string]domain.TrackedAsset, len(assets)),
	}
	for _, a := range assets {
		a.Contract = domain.NormalizeAddress(a.Contract)
		s.all = append(s.all, a)
		if a.IsNative() {
			native := a
			s.native = &native
			continue
		}
		s.byContract[a.Contract] = a
	}
	return s
}

// Contains reports whether address is a tracked token contract.
func (s *AssetSet) Contains(address string) bool {
	_, ok := s.byContract[domain.NormalizeAddress(address)]
	return ok
}

// ByContract returns the token tracked at address.
func (s *AssetSet) ByContract(address string) (domain.TrackedAsset, bool) {
	a, ok := s.byContract[domain.NormalizeAddress(address)]
	return a, ok
}

// Native returns the native asset, if tracked.
func (s *AssetSet) Native() (domain.TrackedAsset, bool) {
	if s.native == nil {
		return domain.TrackedAsset{}, false
	}
	return *s.native, true
}

// Size returns the number of tracked token contracts.
func (s *AssetSet) Size() int {
	return len(s.byContract)
}

// All returns every tracked asset in configuration order.
func (s *AssetSet) All() []domain.TrackedAsset {
	out := make([]domain.TrackedAsset, len(s.all))
	copy(out, s.all)
	return out
}

// PriceIDs maps symbol to price feed id for assets that have one.
func (s *AssetSet) PriceIDs() map[string]string {
	ids := make(map[string]string)
	for _, a := range s.all {
		if a.PriceID != "" {
			ids[a.Symbol] = a.PriceID
		}
	}
	return ids
}
