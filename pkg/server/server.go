package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/raiden-network/raiden-libs-go/pkg/config"
	"github.com/raiden-network/raiden-libs-go/pkg/persistence"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

/*
Server accepts signed protocol messages over HTTP and keeps them in a
message store.

Routes:
  POST /messages:
    - Body is the transport form of any registered message
    - Rejected when the chain id differs from the service chain
    - With RequireSignatures, the message must carry a signature and every
      signature present must recover to an address
    - Stored under "<type>:<keccak256 of the body>"; resubmission is a no-op
    - Response: { key, type, signers }

  GET /messages/{key}:
    - Returns the stored record, 404 when unknown

  GET /messages?type=FeeInfo:
    - Lists stored records of one type (all types when omitted) in receive order

  GET /health:
    - Reports store health
*/

var ErrChainMismatch = errors.New("store belongs to a different chain")

// Server handles HTTP requests for the message service
type Server struct {
	cfg        *config.ServiceConfig
	store      persistence.IMessageStore
	logger     *zap.Logger
	limiter    *rate.Limiter
	httpServer *http.Server
	now        func() time.Time

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a server for an already validated configuration
func NewServer(cfg *config.ServiceConfig, store persistence.IMessageStore, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /messages", s.handleSubmitMessage)
	mux.HandleFunc("GET /messages", s.handleListMessages)
	mux.HandleFunc("GET /messages/{key}", s.handleGetMessage)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.withRequestID(s.withLogging(s.withRateLimit(mux))),
		ReadHeaderTimeout: config.DefaultRequestTimeout,
	}

	return s
}

// CheckServiceState refuses a store that was written for another chain and
// records the current start.
func (s *Server) CheckServiceState() error {
	chainID := fmt.Sprintf("%d", s.cfg.ChainID)

	state, err := s.store.LoadServiceState()
	if err != nil {
		return fmt.Errorf("failed to load service state: %w", err)
	}
	if state != nil && state.ChainID != chainID {
		return fmt.Errorf("%w: store has chain %s, service runs on %s", ErrChainMismatch, state.ChainID, chainID)
	}

	return s.store.SaveServiceState(&persistence.ServiceState{
		ChainID:   chainID,
		StartTime: s.now().Unix(),
	})
}

// Start checks the store and starts serving in the background
func (s *Server) Start() error {
	if err := s.CheckServiceState(); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		s.logger.Sugar().Infow("Starting HTTP server",
			"address", ln.Addr().String(),
			"chain_id", s.cfg.ChainID,
			"chain_name", s.cfg.ChainName,
			"require_signatures", s.cfg.RequireSignatures,
		)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the address the server listens on once started
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
