// Package main implements orkad, a thin demo host for the core data plane:
// it wires an ingest pipeline into a world builder, rebuilds a search index
// on demand, fans live changes out through a watch hub, and exposes
// Prometheus gauges for the result. It is explicitly unspecified surface —
// the core packages (internal/ingest, internal/world, internal/index,
// internal/hub) have no HTTP dependency of their own.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/dreamware/orka/internal/config"
	"github.com/dreamware/orka/internal/delta"
	"github.com/dreamware/orka/internal/hub"
	"github.com/dreamware/orka/internal/index"
	"github.com/dreamware/orka/internal/ingest"
	"github.com/dreamware/orka/internal/metrics"
	"github.com/dreamware/orka/internal/project"
	"github.com/dreamware/orka/internal/shard"
	"github.com/dreamware/orka/internal/transport"
	"github.com/dreamware/orka/internal/world"
)

// selfCheckInterval is how often orkad scrapes its own /metrics endpoint to
// confirm the exposition format stays parseable and log the current gauge
// values, independent of whatever external scraper is (or isn't) configured.
const selfCheckInterval = 30 * time.Second

func main() {
	addr := getenv("ORKAD_ADDR", ":8090")
	configPath := os.Getenv("ORKAD_CONFIG")

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			logger.Error("failed to load config, using defaults", "err", err)
		} else {
			cfg = loaded
		}
	}
	if lvl, err := parseLevel(cfg.LogLevel); err == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	}

	srv := newServer(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ingest", srv.handleIngest)
	mux.HandleFunc("/snapshot", srv.handleSnapshot)
	mux.HandleFunc("/search", srv.handleSearch)
	mux.HandleFunc("/watch", srv.handleWatch)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(srv.registry, promhttp.HandlerOpts{}))

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("orkad listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "err", err)
			os.Exit(1)
		}
	}()

	go runSelfCheck(ctx, addr, logger)

	<-ctx.Done()

	logger.Info("shutting down")
	srv.hub.Shutdown()
	srv.sender.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}
	logger.Info("orkad stopped")
}

// podGVK is the one resource kind this demo host ingests; a real deployment
// would run one pipeline per configured kind.
var podGVK = schema.GroupVersionKind{Group: "", Version: "v1", Kind: "Pod"}

// server holds the demo host's wiring: one ingest pipeline feeding one
// world builder, a planner/projector pair for building the index on
// demand, the watch hub, and the Prometheus registry backing /metrics.
type server struct {
	logger   *slog.Logger
	cfg      config.Config
	planner  shard.Planner
	proj     *project.Projector
	pathIDs  map[string]uint32
	builder  *world.Builder
	sender   *ingest.Sender
	backend  *ingest.Backend
	hub      *hub.WatchHub
	registry *prometheus.Registry
	gauges   *metrics.Gauges
	bridge   *upstreamBridge
}

func newServer(cfg config.Config, logger *slog.Logger) *server {
	pathIDs := make(map[string]uint32, len(cfg.ProjectedPaths))
	specs := make([]project.PathSpec, 0, len(cfg.ProjectedPaths))
	for _, p := range cfg.ProjectedPaths {
		pathIDs[p.Name] = p.PathID
		specs = append(specs, project.PathSpec{PathID: p.PathID, Expr: p.Expr})
	}
	proj, err := project.New(specs)
	if err != nil {
		logger.Error("invalid projected paths, proceeding without projection", "err", err)
		proj = nil
	}

	builder := world.NewBuilder(proj)
	sender, backend := ingest.Spawn(context.Background(), cfg.IngestCapacity, builder, logger)

	bridge := newUpstreamBridge()
	watchHub := hub.New(bridge, logger, cfg.BroadcastCapacity)

	registry := prometheus.NewRegistry()
	gauges := metrics.NewGauges(registry)

	return &server{
		logger:   logger,
		cfg:      cfg,
		planner:  shard.NewModulo(int(cfg.Shards)),
		proj:     proj,
		pathIDs:  pathIDs,
		builder:  builder,
		sender:   sender,
		backend:  backend,
		hub:      watchHub,
		registry: registry,
		gauges:   gauges,
		bridge:   bridge,
	}
}

// ingestRequest is the wire shape /ingest accepts: a single delta.
type ingestRequest struct {
	Uid       string         `json:"uid"`
	Kind      string         `json:"kind"` // "applied" | "deleted"
	Namespace string         `json:"namespace,omitempty"`
	Raw       map[string]any `json:"raw,omitempty"`
}

func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	uid, err := resolveUid(req.Uid)
	if err != nil {
		http.Error(w, "bad uid", http.StatusBadRequest)
		return
	}

	var d delta.Delta
	switch req.Kind {
	case "deleted":
		d = delta.NewDeleted(uid)
	default:
		d = delta.NewApplied(uid, &unstructured.Unstructured{Object: req.Raw})
	}

	if err := s.sender.Send(r.Context(), d); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.bridge.forward(podSelector(req.Namespace), d)

	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := s.backend.Current()
	idx := index.Build(&snap, podGVK, s.planner, s.pathIDs)
	s.gauges.Set(idx.Bytes(), idx.Docs())

	body, err := snap.DebugJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	snap := s.backend.Current()
	idx := index.Build(&snap, podGVK, s.planner, s.pathIDs)
	s.gauges.Set(idx.Bytes(), idx.Docs())

	q := r.URL.Query().Get("q")
	limit := 50
	hits, dbg := idx.SearchWithDebug(q, limit)

	results := make([]world.LiteObj, 0, len(hits))
	for _, h := range hits {
		results = append(results, snap.Items[h.Doc])
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Items []world.LiteObj   `json:"items"`
		Debug index.SearchDebug `json:"debug"`
		Epoch uint64            `json:"epoch"`
	}{Items: results, Debug: dbg, Epoch: snap.Epoch})
}

func (s *server) handleWatch(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	sel := hub.Selector{GVK: podGVK, Namespace: r.URL.Query().Get("namespace")}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for _, obj := range s.hub.Snapshot(sel.Key()) {
		enc.Encode(hub.LiteEvent{Kind: delta.Applied, Obj: obj})
	}
	flusher.Flush()

	events := s.hub.Subscribe(r.Context(), sel)
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := enc.Encode(evt); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func podSelector(namespace string) hub.Selector {
	return hub.Selector{GVK: podGVK, Namespace: namespace}
}

func resolveUid(s string) (delta.Uid, error) {
	if s == "" {
		return delta.NewUid(), nil
	}
	return delta.ParseUid(s)
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(s))
	return lvl, err
}

// runSelfCheck periodically scrapes this process's own /metrics endpoint
// and logs the parsed gauges, until ctx is canceled. It exists to catch a
// broken exposition format (a bad metric name, an unparseable value) from
// inside the process that would otherwise only surface once an external
// scraper noticed the endpoint was unhealthy.
func runSelfCheck(ctx context.Context, addr string, logger *slog.Logger) {
	url := "http://127.0.0.1" + addr + "/metrics"
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		url = addr
	}

	ticker := time.NewTicker(selfCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			body, err := transport.GetText(ctx, url)
			if err != nil {
				logger.Warn("metrics self-check scrape failed", "component", "selfcheck", "err", err)
				continue
			}
			gauges, err := metrics.ParseGauges(bytes.NewReader(body))
			if err != nil {
				logger.Warn("metrics self-check parse failed", "component", "selfcheck", "err", err)
				continue
			}
			logger.Info("metrics self-check", "component", "selfcheck", "gauges", gauges)
		case <-ctx.Done():
			return
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
