// Package relayer implements app.Runner for the relayer process.
package relayer

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/crosslane/swapbridge/pkg/app/httpserver"
	"github.com/crosslane/swapbridge/pkg/config"
	"github.com/crosslane/swapbridge/pkg/escrow"
	"github.com/crosslane/swapbridge/pkg/orderstore"
	"github.com/crosslane/swapbridge/pkg/pgutil"
	"github.com/crosslane/swapbridge/pkg/relayer"
	"github.com/crosslane/swapbridge/pkg/resolver"
	"github.com/crosslane/swapbridge/pkg/target"
)

// TODO: take these from config
const (
	defaultGracefulShutdownTimeout = 30 * time.Second
	defaultHTTPMiddlewareTimeout   = 60 * time.Second
	defaultHTTPReadTimeout         = 15 * time.Second
	defaultHTTPWriteTimeout        = 15 * time.Second
	defaultHTTPIdleTimeout         = 60 * time.Second

	defaultLimitForListOrders = 100
)

// Store is the combined persistence surface the relayer process needs:
// the canonical order records plus the relay bookkeeping.
type Store interface {
	orderstore.Store
	orderstore.DeliveryStore
}

// Server holds configuration for the relayer process.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new relayer Server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run starts the escrow ledger, the relay engine, and the operational
// HTTP server. It blocks until an OS shutdown signal is received or a
// fatal server error occurs.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting swap bridge relayer")

	store, cleanupStore, err := s.openStore(logger)
	if err != nil {
		return err
	}
	if cleanupStore != nil {
		defer cleanupStore()
	}

	limits, err := cfg.Bridge.Limits()
	if err != nil {
		return fmt.Errorf("parse bridge limits: %w", err)
	}

	owner := common.HexToAddress(cfg.Escrow.Owner)
	var ledgerOpts []escrow.Option
	if cfg.Escrow.FeeCollector != "" {
		ledgerOpts = append(ledgerOpts, escrow.WithFeeCollector(common.HexToAddress(cfg.Escrow.FeeCollector)))
	}
	ledger := escrow.NewLedger(owner, limits, store, logger, ledgerOpts...)
	defer ledger.Close()

	for _, addr := range cfg.Escrow.Resolvers {
		if err := ledger.SetResolverAuthorization(owner, common.HexToAddress(addr), true); err != nil {
			return fmt.Errorf("authorize resolver %s: %w", addr, err)
		}
	}

	resolverSvc := resolver.NewService(store, ledger, logger)

	encoder := &target.Encoder{
		Destination:   cfg.Target.Destination,
		SourceChainID: cfg.Escrow.ChainID,
		GasBudget:     cfg.Target.GasBudget,
	}
	client := target.NewHTTPClient(cfg.Target.GatewayURL, cfg.Target.RequestTimeout, logger)

	engine := relayer.NewEngine(relayer.Config{
		Workers: cfg.Relay.Workers,
		Retry: relayer.RetryPolicy{
			MaxAttempts: cfg.Relay.MaxAttempts,
			BaseDelay:   cfg.Relay.RetryBaseDelay,
			MaxDelay:    cfg.Relay.RetryMaxDelay,
		},
		DeliveryDeadline:  cfg.Relay.DeliveryDeadline,
		ReconcileInterval: cfg.Relay.ReconcileInterval,
	}, ledger, encoder, client, store, logger)

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start relay engine: %w", err)
	}
	defer engine.Stop()

	router := s.newRouter(resolverSvc, store, engine, logger)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := newHTTPServer(serverAddr, router)

	return httpserver.ServeAndWait(ctx, logger, httpServer, defaultGracefulShutdownTimeout)
}

// openStore selects the order store backend. PostgreSQL when the
// database section is enabled, in-memory otherwise.
func (s *Server) openStore(logger *zap.Logger) (Store, func(), error) {
	if !s.cfg.Database.Enabled {
		logger.Info("Database disabled, using in-memory order store")
		return orderstore.NewMemory(), nil, nil
	}

	db, err := pgutil.ConnectDB(&s.cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect order store db: %w", err)
	}
	logger.Info("Database connection established")
	cleanup := func() { _ = db.Close() }
	return orderstore.NewPG(db), cleanup, nil
}

func (s *Server) newRouter(svc *resolver.Service, store Store, engine *relayer.Engine, logger *zap.Logger) http.Handler {
	cfg := s.cfg

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultHTTPMiddlewareTimeout))

	// NOTE: chi's middleware.Logger logs to stdlib.
	// Keep it temporarily if access logs are useful; replace with zap-based middleware later.
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !engine.IsReady() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})

	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled", zap.String("path", "/metrics"))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/orders", handleListOrders(store, logger))
		r.Get("/orders/{id}", handleGetOrder(svc, logger))
		r.Get("/orders/{id}/ready", handleGetOrderReady(svc, logger))
		r.Get("/stats", handleGetStats(svc, logger))
	})

	return r
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  defaultHTTPReadTimeout,
		WriteTimeout: defaultHTTPWriteTimeout,
		IdleTimeout:  defaultHTTPIdleTimeout,
	}
}
