package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/indexing/recovery"
)

func TestClassifyError(t *testing.T) {
	typeErr := json.Unmarshal([]byte(`"0x1"`), new(uint64))
	syntaxErr := json.Unmarshal([]byte(`{"status":`), new(map[string]any))

	tests := []struct {
		err    error
		expect ErrorAction
	}{
		{errors.New("429 Too Many Requests"), ActionBackoff},
		{errors.New("project rate limit exceeded"), ActionBackoff},
		{errors.New("quota exceeded"), ActionBackoff},
		{errors.New("daily request count exceeded"), ActionBackoff},
		{errors.New("403 Forbidden"), ActionBackoff},
		{errors.New("Invalid JSON-RPC request -32600"), ActionFatal},
		{errors.New("Method not found -32601"), ActionFatal},
		{errors.New("Parse error -32700"), ActionFatal},
		{ErrNotFound, ActionFatal},
		{fmt.Errorf("receipt 0xbad: %w", ErrMalformed), ActionFatal},
		{fmt.Errorf("receipt 0xbad: %w", typeErr), ActionFatal},
		{syntaxErr, ActionFatal},
		{errors.New("connection reset by peer"), ActionRetry},
		{context.DeadlineExceeded, ActionRetry},
		{errors.New("500 Internal Server Error"), ActionRetry},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.expect {
			t.Errorf("ClassifyError(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

// scriptedClient fails ChainHead with the queued errors, then succeeds.
type scriptedClient struct {
	errs  []error
	calls int
	delay time.Duration
}

func (s *scriptedClient) ChainHead(ctx context.Context) (uint64, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return 0, err
	}
	return 100, nil
}

func (s *scriptedClient) GetBlock(ctx context.Context, h uint64, withTxs bool) (*domain.Block, error) {
	s.calls++
	return nil, ErrNotFound
}

func (s *scriptedClient) GetTransactionReceipt(ctx context.Context, txHash string) (*domain.Receipt, error) {
	return nil, nil
}

func (s *scriptedClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	return big.NewInt(7), nil
}

func (s *scriptedClient) CallContractView(ctx context.Context, c string, sel []byte, args ...[]byte) ([]byte, error) {
	out := make([]byte, 32)
	out[31] = 9
	return out, nil
}

func newTestResilient(inner Client, timeout time.Duration) *Resilient {
	r := NewResilient(inner, domain.ChainIDBSC, timeout)
	r.retryDelay = time.Millisecond
	return r
}

func TestResilient_RetriesOnce(t *testing.T) {
	inner := &scriptedClient{errs: []error{errors.New("connection reset by peer")}}
	r := newTestResilient(inner, time.Second)

	head, err := r.ChainHead(context.Background())

	require.NoError(t, err)
	assert.EqualValues(t, 100, head)
	assert.Equal(t, 2, inner.calls)
}

func TestResilient_GivesUpAfterSecondFailure(t *testing.T) {
	inner := &scriptedClient{errs: []error{errors.New("eof"), errors.New("eof"), errors.New("eof")}}
	r := newTestResilient(inner, time.Second)

	_, err := r.ChainHead(context.Background())

	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestResilient_NoRetryOnFatalOrRateLimit(t *testing.T) {
	for _, e := range []error{errors.New("Method not found -32601"), errors.New("429 Too Many Requests")} {
		inner := &scriptedClient{errs: []error{e}}
		r := newTestResilient(inner, time.Second)

		_, err := r.ChainHead(context.Background())

		require.Error(t, err)
		assert.Equal(t, 1, inner.calls, "error %q", e)
	}
}

func TestResilient_NotFoundPassesThrough(t *testing.T) {
	inner := &scriptedClient{}
	r := newTestResilient(inner, time.Second)

	_, err := r.GetBlock(context.Background(), 1, true)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, inner.calls)
}

func TestResilient_TimeoutIsTransient(t *testing.T) {
	inner := &scriptedClient{delay: 50 * time.Millisecond}
	r := newTestResilient(inner, 5*time.Millisecond)

	_, err := r.ChainHead(context.Background())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, inner.calls)
}

func TestTokenBalance(t *testing.T) {
	bal, err := TokenBalance(context.Background(), &scriptedClient{}, "0x55d398326f99059ff775485246999027b3197955", "0xaaaa")

	require.NoError(t, err)
	assert.EqualValues(t, 9, bal.Int64())
}

func TestAddressArg(t *testing.T) {
	arg := AddressArg("0x00000000000000000000000000000000000000ff")

	require.Len(t, arg, 32)
	assert.Equal(t, byte(0xff), arg[31])
	assert.Equal(t, byte(0), arg[0])
}

func TestClassify(t *testing.T) {
	assert.Equal(t, recovery.CategoryRateLimited, Classify(errors.New("429 Too Many Requests")))
	assert.Equal(t, recovery.CategoryPermanent, Classify(ErrNotFound))
	assert.Equal(t, recovery.CategoryTransient, Classify(context.DeadlineExceeded))
}
