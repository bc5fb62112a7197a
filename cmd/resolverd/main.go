// resolverd is the sports resolution daemon. It serves the full pipeline
// over HTTP: resolutions on POST /resolve, live pipeline progress on /ws,
// Prometheus metrics on /metrics, and breaker/provider state on /status.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/arbiterlab/sportsresolve/pkg/advisor"
	"github.com/arbiterlab/sportsresolve/pkg/fetch"
	"github.com/arbiterlab/sportsresolve/pkg/metrics"
	"github.com/arbiterlab/sportsresolve/pkg/providers"
	"github.com/arbiterlab/sportsresolve/pkg/resolve"
	"github.com/arbiterlab/sportsresolve/pkg/streaming"
	"github.com/arbiterlab/sportsresolve/tools"
)

var (
	addr    = flag.String("addr", "", "HTTP listen address (or RESOLVER_ADDR env, default :8087)")
	timeout = flag.Duration("timeout", 15*time.Second, "Per-provider request timeout")
	pretty  = flag.Bool("pretty", false, "Human-readable console logging")
)

func main() {
	godotenv.Load()
	flag.Parse()
	setupLogging(*pretty)

	listen := *addr
	if listen == "" {
		listen = os.Getenv("RESOLVER_ADDR")
	}
	if listen == "" {
		listen = ":8087"
	}

	srv := newServer()

	mux := http.NewServeMux()
	mux.HandleFunc("/resolve", srv.handleResolve)
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/status", srv.handleStatus)
	mux.Handle("/metrics", promhttp.HandlerFor(srv.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", srv.hub.ServeWS)

	httpServer := &http.Server{
		Addr:         listen,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", listen).Msg("resolverd listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown did not drain cleanly")
	}
	log.Info().Msg("goodbye")
}

func setupLogging(pretty bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if strings.EqualFold(os.Getenv("DEBUG"), "true") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

type server struct {
	engine  *resolve.Engine
	client  *fetch.Client
	reg     *providers.Registry
	metrics *metrics.ResolverMetrics
	hub     *streaming.Hub
	llm     string
	started time.Time
}

func newServer() *server {
	s := &server{
		metrics: metrics.Default(),
		hub:     streaming.NewHub(),
		started: time.Now(),
	}
	s.hub.OnClientCount(s.metrics.SetWSClients)
	go s.hub.Run()

	s.client = fetch.New(
		fetch.WithTimeout(*timeout),
		fetch.WithStateChangeHook(func(host, from, to string) {
			s.metrics.RecordBreakerTransition(host, to)
			log.Warn().Str("host", host).Str("from", from).Str("to", to).Msg("circuit breaker transition")
		}),
	)
	s.reg = providers.NewRegistry()

	opts := []resolve.Option{resolve.WithMetrics(s.metrics)}
	if cfg, ok := tools.FromEnv(); ok {
		opts = append(opts, resolve.WithAdvisor(advisor.New(tools.New(cfg)), cfg.Provider))
		s.llm = cfg.Provider
		log.Info().Str("provider", cfg.Provider).Str("model", cfg.Model).Msg("advisory model enabled")
	} else {
		log.Info().Msg("no advisory model configured, running deterministic only")
	}
	s.engine = resolve.NewEngine(s.reg, s.client, opts...)

	s.engine.OnStageComplete = func(sr *resolve.StageResult) {
		s.hub.BroadcastStage(sr.RequestID, sr.Stage, sr)
	}
	s.engine.OnError = func(err error) {
		s.hub.BroadcastError("", err)
	}
	return s
}

type resolveRequest struct {
	Query string `json:"query"`
}

func (s *server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "POST a JSON body: {\"query\": \"...\"}")
		return
	}
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		httpError(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	res, err := s.engine.Resolve(r.Context(), req.Query)
	if err != nil {
		log.Error().Err(err).Msg("resolution failed")
		httpError(w, http.StatusInternalServerError, "resolution failed")
		return
	}

	s.hub.BroadcastResolution(res.Evidence.Metadata.ResolutionID.String(), map[string]any{
		"resolution": res.Resolution,
		"confidence": res.Confidence,
		"reasoning":  res.Reasoning,
		"sources":    res.Sources,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"providers":      s.reg.ConfigurationState(),
		"breakers":       s.client.BreakerSnapshot(),
		"llm_provider":   s.llm,
		"ws_clients":     s.hub.ClientCount(),
	})
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
