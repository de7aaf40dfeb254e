package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/mcclellann/lendbook/pkg/accrual"
	"github.com/mcclellann/lendbook/pkg/config"
	"github.com/mcclellann/lendbook/pkg/events"
	"github.com/mcclellann/lendbook/pkg/ledger"
	"github.com/mcclellann/lendbook/pkg/metrics"
	"github.com/mcclellann/lendbook/pkg/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the ledger instance.
type Server struct {
	ledger   *ledger.Ledger
	storage  store.Storage // Keep a reference to the storage to close it
	validate *validator.Validate
	logger   *log.Logger
}

func NewServer(l *ledger.Ledger, s store.Storage, logger *log.Logger) *Server {
	return &Server{
		ledger:   l,
		storage:  s,
		validate: newValidator(),
		logger:   logger,
	}
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/counterparties", s.listCounterpartiesHandler).Methods("GET")
	router.HandleFunc("/counterparties", s.createCounterpartyHandler).Methods("POST")
	router.HandleFunc("/counterparties/{id}", s.getCounterpartyHandler).Methods("GET")
	router.HandleFunc("/counterparties/{id}/summary", s.counterpartySummaryHandler).Methods("GET")
	router.HandleFunc("/counterparties/{id}/payments", s.collectPaymentHandler).Methods("POST")

	router.HandleFunc("/instruments", s.createInstrumentHandler).Methods("POST")
	router.HandleFunc("/instruments/{id}", s.getInstrumentHandler).Methods("GET")
	router.HandleFunc("/instruments/{id}", s.deleteInstrumentHandler).Methods("DELETE")
	router.HandleFunc("/instruments/{id}/lock", s.lockHandler(true)).Methods("POST")
	router.HandleFunc("/instruments/{id}/unlock", s.lockHandler(false)).Methods("POST")
	router.HandleFunc("/instruments/{id}/close", s.closeInstrumentHandler).Methods("POST")
	router.HandleFunc("/instruments/{id}/payments", s.recordPaymentHandler).Methods("POST")
	router.HandleFunc("/instruments/{id}/refunds", s.recordRefundHandler).Methods("POST")

	router.HandleFunc("/transactions/{id}", s.updateTransactionHandler).Methods("PUT")
	router.HandleFunc("/transactions/{id}", s.deleteTransactionHandler).Methods("DELETE")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return router
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func openStore(cfg config.Database) (*store.SQLStore, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return store.NewSQLiteStore(cfg.DSN)
	case config.DriverPostgres:
		return store.NewPostgresStore(cfg.DSN)
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func logClosed(logger *log.Logger) events.Handler {
	return func(ctx context.Context, event any) error {
		e, ok := events.Value(event).(events.InstrumentClosed)
		if !ok {
			return nil
		}
		logger.Printf("Instrument %s closed (manual=%t)", e.InstrumentID, e.Manual)
		return nil
	}
}

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatalf("Failed to load timezone: %v", err)
	}

	sqlStore, err := openStore(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to initialize %s store: %v", cfg.Database.Driver, err)
	}
	defer sqlStore.Close()

	metrics.Init()
	bus := events.NewInMemoryBus()
	bus.Subscribe(events.InstrumentClosedType, logClosed(logger))

	l := ledger.NewLedger(sqlStore, accrual.NewCalculator(accrual.SystemClock{Location: loc}), bus, ledger.Options{
		CreditExcessToAdvance: cfg.Ledger.CreditExcessToAdvance,
		Logger:                logger,
	})
	server := NewServer(l, sqlStore, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Closes settled instruments and refreshes cached counterparty totals in the background
	go l.RunSweeps(ctx, cfg.SweepInterval)

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(server.routes(), logger)}
	go func() {
		logger.Printf("Server starting on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown: %v", err)
	}
}
