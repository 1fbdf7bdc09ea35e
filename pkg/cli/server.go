package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mchmarny/peptopt/pkg/data"
	"github.com/mchmarny/peptopt/pkg/metrics"
	"github.com/mchmarny/peptopt/pkg/optimize"
	"github.com/mchmarny/peptopt/pkg/peptide"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 60
	serverMaxHeaderBytes      = 20
	serverMaxBodyBytes        = 1 << 20
)

const (
	portFlag    = "port"
	addressFlag = "address"
)

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start the HTTP optimization API",
		Action:  cmdStartServer,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  portFlag,
				Usage: "Port on which the server will listen (default: server.port from config)",
			},
			&cli.StringFlag{
				Name:  addressFlag,
				Usage: "Address on which the server will listen (default: all interfaces)",
			},
		},
	}
}

func cmdStartServer(ctx context.Context, c *cli.Command) error {
	cfg := getConfig(c)

	srvConf := cfg.Conf.Server
	if c.IsSet(portFlag) {
		srvConf.Port = c.Int(portFlag)
	}
	if c.IsSet(addressFlag) {
		srvConf.Address = c.String(addressFlag)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opt, models, err := newOptimizer(ctx, cfg, optimize.WithMetrics(metrics.New(reg)))
	if err != nil {
		return err
	}

	// corrupt artifacts fail startup instead of the first request
	if err := models.Preload(ctx); err != nil {
		return fmt.Errorf("loading models: %w", err)
	}

	api := &apiServer{optimizer: opt, db: cfg.DB, topK: cfg.Conf.TopK}
	s := &http.Server{
		Addr:           srvConf.Addr(),
		Handler:        makeRouter(api, reg),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("server started", "address", s.Addr)

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("starting server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

type apiServer struct {
	optimizer *optimize.Optimizer
	db        *sql.DB
	topK      int
}

func makeRouter(api *apiServer, g prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", homeHandler)
	mux.HandleFunc("POST /optimize", api.optimizeHandler)
	mux.HandleFunc("GET /runs", api.runsHandler)
	mux.HandleFunc("GET /runs/{id}", api.runHandler)
	mux.Handle("GET /metrics", metrics.Handler(g))

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func homeHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Peptide optimization API is running.",
		"version": version,
	})
}

type optimizeRequest struct {
	Disease          string  `json:"disease"`
	StartingSequence *string `json:"starting_sequence"`
	TopK             *int    `json:"top_k"`
}

func (a *apiServer) optimizeHandler(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, serverMaxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ind, err := peptide.ParseIndication(req.Disease)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	seq := ind.DefaultSequence()
	if req.StartingSequence != nil {
		seq = *req.StartingSequence
	}
	topK := a.topK
	if req.TopK != nil {
		topK = *req.TopK
	}

	res, err := a.optimizer.Optimize(r.Context(), optimize.Request{
		Indication:       string(ind),
		StartingSequence: seq,
		TopK:             topK,
	})
	if err != nil {
		if errors.Is(err, optimize.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("optimization failed", "indication", ind, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if a.db != nil {
		if _, err := saveRun(a.db, res); err != nil {
			slog.Error("failed to save run", "error", err)
		}
	}

	slog.Debug("optimize request", "indication", ind, "mode", res.Mode, "returned", len(res.Candidates))
	writeJSON(w, http.StatusOK, res)
}

func (a *apiServer) runsHandler(w http.ResponseWriter, r *http.Request) {
	limit := historyLimitDefault
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %s", v))
			return
		}
		limit = n
	}

	var ind string
	if v := r.URL.Query().Get("disease"); v != "" {
		parsed, err := peptide.ParseIndication(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ind = string(parsed)
	}

	list, err := data.ListRuns(a.db, ind, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (a *apiServer) runHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid run id: %s", r.PathValue("id")))
		return
	}

	res, err := loadRun(a.db, id)
	if err != nil {
		if errors.Is(err, data.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}
