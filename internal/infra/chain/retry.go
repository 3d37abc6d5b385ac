package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/indexing/metrics"
	"github.com/vietddude/walletwatch/internal/indexing/recovery"
)

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionBackoff
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionBackoff:
		return "backoff"
	case ActionFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformed) {
		return ActionFatal
	}
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ActionFatal
	}

	s := err.Error()
	sLower := strings.ToLower(s)

	// -32700: Parse error, -32600: Invalid Request, -32601: Method not found, -32602: Invalid params
	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") ||
		strings.Contains(sLower, "method not found") || strings.Contains(sLower, "invalid argument") {
		return ActionFatal
	}

	// Provider is throttling us; hammering it again right away won't help.
	if strings.Contains(s, "429") || strings.Contains(sLower, "too many requests") ||
		strings.Contains(s, "403") || strings.Contains(sLower, "forbidden") ||
		strings.Contains(sLower, "quota") || strings.Contains(sLower, "plan limit") ||
		strings.Contains(sLower, "unauthorized") ||
		strings.Contains(sLower, "rate limit") ||
		strings.Contains(sLower, "count exceeded") {
		return ActionBackoff
	}

	// Default to Retry (Network, timeout, 5xx, etc)
	return ActionRetry
}

// Classify adapts ClassifyError to the recovery package's categories.
func Classify(err error) recovery.FailureCategory {
	switch ClassifyError(err) {
	case ActionBackoff:
		return recovery.CategoryRateLimited
	case ActionFatal:
		return recovery.CategoryPermanent
	default:
		return recovery.CategoryTransient
	}
}

// Resilient wraps a Client so that every call gets its own timeout and one
// retry on transient failure.
type Resilient struct {
	inner      Client
	chain      string
	timeout    time.Duration
	retryDelay time.Duration
}

var _ Client = (*Resilient)(nil)

// NewResilient wraps inner.
func NewResilient(inner Client, chainID domain.ChainID, timeout time.Duration) *Resilient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resilient{
		inner:      inner,
		chain:      string(chainID),
		timeout:    timeout,
		retryDelay: 500 * time.Millisecond,
	}
}

func (r *Resilient) do(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.retryDelay):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		start := time.Now()
		err = fn(callCtx)
		cancel()

		metrics.RPCCallsTotal.WithLabelValues(r.chain, method).Inc()
		metrics.RPCLatency.WithLabelValues(r.chain, method).Observe(time.Since(start).Seconds())
		if err == nil {
			return nil
		}

		action := ClassifyError(err)
		if !errors.Is(err, ErrNotFound) {
			metrics.RPCErrorsTotal.WithLabelValues(r.chain, method, action.String()).Inc()
		}
		if action != ActionRetry || ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%s: %w", method, err)
}

func (r *Resilient) ChainHead(ctx context.Context) (uint64, error) {
	var head uint64
	err := r.do(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var err error
		head, err = r.inner.ChainHead(ctx)
		return err
	})
	return head, err
}

func (r *Resilient) GetBlock(ctx context.Context, height uint64, withTxs bool) (*domain.Block, error) {
	var block *domain.Block
	err := r.do(ctx, "eth_getBlockByNumber", func(ctx context.Context) error {
		var err error
		block, err = r.inner.GetBlock(ctx, height, withTxs)
		return err
	})
	return block, err
}

func (r *Resilient) GetTransactionReceipt(ctx context.Context, txHash string) (*domain.Receipt, error) {
	var receipt *domain.Receipt
	err := r.do(ctx, "eth_getTransactionReceipt", func(ctx context.Context) error {
		var err error
		receipt, err = r.inner.GetTransactionReceipt(ctx, txHash)
		return err
	})
	return receipt, err
}

func (r *Resilient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	var balance *big.Int
	err := r.do(ctx, "eth_getBalance", func(ctx context.Context) error {
		var err error
		balance, err = r.inner.GetBalance(ctx, address)
		return err
	})
	return balance, err
}

func (r *Resilient) CallContractView(
	ctx context.Context,
	contract string,
	selector []byte,
	args ...[]byte,
) ([]byte, error) {
	var out []byte
	err := r.do(ctx, "eth_call", func(ctx context.Context) error {
		var err error
		out, err = r.inner.CallContractView(ctx, contract, selector, args...)
		return err
	})
	return out, err
}
