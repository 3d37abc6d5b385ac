// Package api serves the admin HTTP surface: wallet commands, balances,
// health and metrics.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/indexing/health"
)

// WalletService is the command surface the handlers call into.
type WalletService interface {
	AddWallet(ctx context.Context, address, name string) (domain.WatchedWallet, bool, error)
	RemoveWallet(ctx context.Context, index int) (bool, domain.WatchedWallet)
	ListWallets() []domain.WatchedWallet
	Balances(ctx context.Context) ([]domain.WalletBalances, error)
}

// Server provides the admin HTTP endpoints.
type Server struct {
	engine *gin.Engine
	server *http.Server
}

// NewServer creates a new admin server. monitor may be nil. Health and
// metrics stay open; the wallet routes require token.
func NewServer(port int, token string, svc WalletService, monitor *health.Monitor) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	if monitor != nil {
		health.Register(r, monitor)
	}
	if token == "" {
		slog.Warn("No server.api_token configured, wallet routes will reject every request")
	}
	RegisterRoutes(r.Group("/", RequireToken(token)), svc)

	return &Server{
		engine: r,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start starts the HTTP server. It returns nil after Stop.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// RequireToken rejects requests whose Authorization header does not carry
// token as a Bearer credential. An empty token rejects everything.
func RequireToken(token string) gin.HandlerFunc {
	want := []byte("Bearer " + token)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader("Authorization"))
		if token == "" || subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// RegisterRoutes registers the wallet routes.
func RegisterRoutes(r gin.IRoutes, svc WalletService) {
	h := &WalletHandler{svc: svc}
	r.GET("/wallets", h.List)
	r.POST("/wallets", h.Add)
	r.DELETE("/wallets/:index", h.Remove)
	r.GET("/balances", h.Balances)
}

type WalletHandler struct {
	svc WalletService
}

type addWalletRequest struct {
	Address string `json:"address" binding:"required"`
	Name    string `json:"name"`
}

type walletView struct {
	Index      int    `json:"index"`
	Address    string `json:"address"`
	Short      string `json:"short"`
	Name       string `json:"name"`
	StartBlock uint64 `json:"start_block,omitempty"`
}

func view(i int, w domain.WatchedWallet) walletView {
	return walletView{
		Index:      i,
		Address:    w.Address,
		Short:      domain.ShortAddress(w.Address),
		Name:       w.Name,
		StartBlock: w.StartBlock,
	}
}

func (h *WalletHandler) List(c *gin.Context) {
	wallets := h.svc.ListWallets()
	out := make([]walletView, 0, len(wallets))
	for i, w := range wallets {
		out = append(out, view(i+1, w))
	}
	c.JSON(http.StatusOK, gin.H{"wallets": out})
}

func (h *WalletHandler) Add(c *gin.Context) {
	var req addWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w, added, err := h.svc.AddWallet(c.Request.Context(), req.Address, req.Name)
	switch {
	case errors.Is(err, domain.ErrInvalidAddress):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	case !added:
		c.JSON(http.StatusConflict, gin.H{"added": false, "error": "wallet already watched"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"added": true, "wallet": view(len(h.svc.ListWallets()), w)})
}

func (h *WalletHandler) Remove(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a positive integer"})
		return
	}

	ok, removed := h.svc.RemoveWallet(c.Request.Context(), index)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"removed": false, "error": "no wallet at that index"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true, "wallet": view(index, removed)})
}

func (h *WalletHandler) Balances(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	report, err := h.svc.Balances(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": report})
}
