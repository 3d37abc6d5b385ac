package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/indexing/health"
	"github.com/vietddude/walletwatch/internal/indexing/scanner"
)

type fakeService struct {
	wallets  []domain.WatchedWallet
	balances []domain.WalletBalances
}

func (f *fakeService) AddWallet(_ context.Context, address, name string) (domain.WatchedWallet, bool, error) {
	if !strings.HasPrefix(address, "0x") {
		return domain.WatchedWallet{}, false, domain.ErrInvalidAddress
	}
	for _, w := range f.wallets {
		if w.Address == address {
			return domain.WatchedWallet{}, false, nil
		}
	}
	w := domain.WatchedWallet{Address: address, Name: name}
	f.wallets = append(f.wallets, w)
	return w, true, nil
}

func (f *fakeService) RemoveWallet(_ context.Context, index int) (bool, domain.WatchedWallet) {
	if index < 1 || index > len(f.wallets) {
		return false, domain.WatchedWallet{}
	}
	w := f.wallets[index-1]
	f.wallets = append(f.wallets[:index-1], f.wallets[index:]...)
	return true, w
}

func (f *fakeService) ListWallets() []domain.WatchedWallet { return f.wallets }

func (f *fakeService) Balances(context.Context) ([]domain.WalletBalances, error) {
	return f.balances, nil
}

const testToken = "s3cret"

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doAuth(t, h, method, path, body, "Bearer "+testToken)
}

func doAuth(t *testing.T, h http.Handler, method, path, body, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWalletRoutes(t *testing.T) {
	svc := &fakeService{}
	h := NewServer(0, testToken, svc, nil).Handler()

	rec := do(t, h, http.MethodPost, "/wallets", `{"address":"0xaaa","name":"Main"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/wallets", `{"address":"0xaaa"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/wallets", `{"address":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/wallets", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/wallets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Wallets []walletView `json:"wallets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Wallets, 1)
	assert.Equal(t, 1, list.Wallets[0].Index)
	assert.Equal(t, "Main", list.Wallets[0].Name)
}

func TestRemoveWallet(t *testing.T) {
	svc := &fakeService{wallets: []domain.WatchedWallet{
		{Address: "0xaaa", Name: "A"},
		{Address: "0xbbb", Name: "B"},
	}}
	h := NewServer(0, testToken, svc, nil).Handler()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodDelete, "/wallets/0", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodDelete, "/wallets/x", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/wallets/3", "").Code)

	rec := do(t, h, http.MethodDelete, "/wallets/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "0xbbb")
	require.Len(t, svc.wallets, 1)
	assert.Equal(t, "0xaaa", svc.wallets[0].Address)
}

func TestBalances(t *testing.T) {
	svc := &fakeService{balances: []domain.WalletBalances{{
		Wallet:  domain.WatchedWallet{Address: "0xaaa", Name: "A"},
		Assets:  []domain.AssetBalance{{Symbol: "BNB", Amount: decimal.RequireFromString("1.5")}},
		Updated: "updated 12:00 UTC",
	}}}
	h := NewServer(0, testToken, svc, nil).Handler()

	rec := do(t, h, http.MethodGet, "/balances", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"symbol":"BNB"`)
	assert.Contains(t, rec.Body.String(), "updated 12:00 UTC")
}

func TestWalletRoutesRequireToken(t *testing.T) {
	svc := &fakeService{wallets: []domain.WatchedWallet{{Address: "0xaaa", Name: "A"}}}
	h := NewServer(0, testToken, svc, nil).Handler()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		auth   string
	}{
		{"missing header", http.MethodGet, "/wallets", "", ""},
		{"wrong token", http.MethodGet, "/wallets", "", "Bearer nope"},
		{"wrong scheme", http.MethodGet, "/wallets", "", "Basic " + testToken},
		{"add", http.MethodPost, "/wallets", `{"address":"0xbbb"}`, ""},
		{"remove", http.MethodDelete, "/wallets/1", "", "Bearer"},
		{"balances", http.MethodGet, "/balances", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doAuth(t, h, tt.method, tt.path, tt.body, tt.auth)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
	require.Len(t, svc.wallets, 1, "rejected requests must not touch the watch list")

	rec := doAuth(t, h, http.MethodGet, "/wallets", "", "Bearer "+testToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEmptyTokenRejectsWalletRoutes(t *testing.T) {
	h := NewServer(0, "", &fakeService{}, nil).Handler()

	assert.Equal(t, http.StatusUnauthorized, doAuth(t, h, http.MethodGet, "/wallets", "", "Bearer ").Code)
	assert.Equal(t, http.StatusUnauthorized, doAuth(t, h, http.MethodGet, "/wallets", "", "").Code)
}

type idleScanner struct{}

func (idleScanner) Status() scanner.Status { return scanner.Status{} }

func TestMetricsStayOpen(t *testing.T) {
	monitor := health.NewMonitor(idleScanner{}, nil, func() int { return 0 }, nil)
	h := NewServer(0, testToken, &fakeService{}, monitor).Handler()

	rec := doAuth(t, h, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
