package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/schaermu/vtagsync/internal/config"
	"github.com/schaermu/vtagsync/internal/git"
	"github.com/schaermu/vtagsync/internal/metrics"
	"github.com/schaermu/vtagsync/internal/reconcile"
	"github.com/schaermu/vtagsync/internal/tagset"
)

const tagRefPrefix = "refs/tags/"

// GitHubPushEvent represents the relevant fields from a GitHub push webhook
type GitHubPushEvent struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	Deleted    bool   `json:"deleted"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// Server reconciles floating tags whenever a release tag is pushed
type Server struct {
	cfg         *config.Config
	git         git.Client
	logger      *slog.Logger
	secret      []byte
	baseCtx     context.Context
	syncMu      sync.Mutex // guards syncRunning and syncPending
	syncRunning bool       // whether a run is currently in progress
	syncPending bool       // whether another run is needed after the current one
	debounce    *debouncer
}

// debouncer implements debouncing for webhook events
type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	delay    time.Duration
	callback func()
}

// NewServer creates a new webhook server
func NewServer(cfg *config.Config, client git.Client, logger *slog.Logger) (*Server, error) {
	// Load webhook secret from file
	secret, err := os.ReadFile(cfg.Serve.GitHubWebhookSecretFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook secret: %w", err)
	}

	// Trim any whitespace/newlines from secret
	secret = []byte(strings.TrimSpace(string(secret)))
	if len(secret) == 0 {
		return nil, fmt.Errorf("webhook secret file %s is empty", cfg.Serve.GitHubWebhookSecretFile)
	}

	return &Server{
		cfg:      cfg,
		git:      client,
		logger:   logger,
		secret:   secret,
		baseCtx:  context.Background(),
		debounce: &debouncer{delay: 2 * time.Second}, // 2 second debounce
	}, nil
}

// Handler returns the HTTP routes served by the daemon
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebhook)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintln(w, "ok")
	})
	mux.Handle(s.cfg.Serve.MetricsPath, metrics.Handler())
	return mux
}

// Start performs an initial reconciliation and then serves on l until ctx is done.
func (s *Server) Start(ctx context.Context, l net.Listener) error {
	s.baseCtx = ctx

	s.logger.Info("performing initial reconciliation before starting webhook server")
	s.performSync(ctx)

	server := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Serve until the context is cancelled or the listener fails
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("webhook server starting", "addr", l.Addr().String())
		if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down webhook server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// handleWebhook handles incoming GitHub webhook requests
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	// Only accept POST requests
	if r.Method != http.MethodPost {
		s.logger.Warn("rejecting non-POST request", "method", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Check content type
	contentType := r.Header.Get("Content-Type")
	if contentType != "application/json" {
		s.logger.Warn("rejecting request with invalid content type", "content_type", contentType)
		http.Error(w, "Invalid content type", http.StatusBadRequest)
		return
	}

	// Read body
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MB limit
	if err != nil {
		s.logger.Error("failed to read request body", "error", err)
		http.Error(w, "Failed to read body", http.StatusInternalServerError)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	// Verify signature
	if !s.verifySignature(body, r.Header.Get("X-Hub-Signature-256")) {
		s.logger.Warn("rejecting request with invalid signature")
		http.Error(w, "Invalid signature", http.StatusForbidden)
		return
	}

	// Parse event type
	eventType := r.Header.Get("X-GitHub-Event")
	s.logger.Info("received webhook", "event", eventType)

	// Only push events change tags; ping is GitHub's hook check
	switch eventType {
	case "ping":
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "pong\n")
		return
	case "push":
	default:
		s.logger.Info("ignoring event type", "event", eventType)
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "Event type ignored\n")
		return
	}

	// Parse push event
	var event GitHubPushEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.logger.Error("failed to parse webhook payload", "error", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	// Check if repository is allowed
	if !s.isRepoAllowed(event.Repository.FullName) {
		s.logger.Info("ignoring push for other repository", "repo", event.Repository.FullName)
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "Repository not configured for sync\n")
		return
	}

	// Check if ref is a release tag
	if !isReleaseTagRef(event.Ref) {
		s.logger.Info("ignoring ref", "ref", event.Ref)
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "Ref does not trigger sync\n")
		return
	}

	s.logger.Info("webhook accepted",
		"ref", event.Ref,
		"commit", event.After,
		"deleted", event.Deleted,
		"repo", event.Repository.FullName)

	// Trigger debounced sync
	s.debounce.trigger(func() {
		s.performSync(s.baseCtx)
	})

	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "Sync triggered\n")
}

// verifySignature verifies the GitHub webhook signature
func (s *Server) verifySignature(body []byte, signature string) bool {
	// GitHub signature format: sha256=<hex>
	hexSig, ok := strings.CutPrefix(signature, "sha256=")
	if !ok || hexSig == "" {
		return false
	}

	// Compute expected signature
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	// Constant-time comparison
	return hmac.Equal([]byte(hexSig), []byte(expected))
}

// isRepoAllowed reports whether the event belongs to the configured GitHub repository.
// Without repo.github every repository is accepted.
func (s *Server) isRepoAllowed(fullName string) bool {
	if s.cfg.Repo.GitHub == "" {
		return true
	}
	return strings.EqualFold(fullName, s.cfg.Repo.GitHub)
}

// isReleaseTagRef reports whether ref is a tag other than a floating tag.
// Floating tag pushes are our own writes and must not trigger a run.
func isReleaseTagRef(ref string) bool {
	name, ok := strings.CutPrefix(ref, tagRefPrefix)
	if !ok || name == "" {
		return false
	}
	_, floating := tagset.ParseFloating(name)
	return !floating
}

// performSync runs a reconciliation with single-flight semantics.
// If a run is already in progress, at most one additional run is queued;
// further concurrent requests are dropped.
func (s *Server) performSync(ctx context.Context) {
	s.syncMu.Lock()
	if s.syncRunning {
		s.syncPending = true
		s.syncMu.Unlock()
		s.logger.Info("reconciliation already in progress, queuing pending re-run")
		return
	}
	s.syncRunning = true
	s.syncMu.Unlock()

	for {
		s.runOnce(ctx)

		// Atomically check whether another run was requested while we were
		// running. If not, release the running slot and stop; if yes, clear
		// the flag and loop to service that one pending request.
		s.syncMu.Lock()
		if !s.syncPending {
			s.syncRunning = false
			s.syncMu.Unlock()
			break
		}
		s.syncPending = false
		s.syncMu.Unlock()

		s.logger.Info("re-running reconciliation due to pending request")
	}
}

// runOnce refreshes tags when the client supports it and runs the engine once.
func (s *Server) runOnce(ctx context.Context) {
	logger := s.logger.With("run_id", uuid.NewString())
	start := time.Now()

	if f, ok := s.git.(git.Fetcher); ok {
		if err := f.FetchTags(ctx); err != nil {
			logger.Error("failed to refresh tags", "error", err)
			metrics.Observe(nil, time.Since(start))
			return
		}
	}

	engine := reconcile.NewEngine(s.git,
		reconcile.WithLogger(logger),
		reconcile.WithPublish(s.cfg.Publish))

	res, err := engine.Run(ctx)
	metrics.Observe(res, time.Since(start))
	if err != nil {
		logger.Error("reconciliation failed", "error", err)
		return
	}

	if res.Succeeded {
		logger.Info("reconciliation completed", "reason", res.Reason, "changed", res.Data.Len())
	} else {
		logger.Error("reconciliation failed", "reason", res.Reason, "message", res.Message)
	}
}

// trigger schedules the callback to run after the debounce delay
func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		cb := d.callback
		d.mu.Unlock()

		if cb != nil {
			cb()
		}
	})
}
