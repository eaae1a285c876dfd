// Package webhook exposes the HTTP ingress for push notifications from the
// merchant payments API and fans deposit events out to enrolled operators.
package webhook

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"merchantbot/internal/directory"
	"merchantbot/internal/domain"
	"merchantbot/internal/metrics"
	"merchantbot/internal/router"
)

const (
	secretHeader    = "X-API-Key"
	depositEvent    = "new_deposit"
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Config configures the webhook ingress server.
type Config struct {
	Host          string
	Port          int
	Path          string // webhook URL path (default: /webhook)
	Secret        string // shared secret expected in the X-API-Key header
	ServeMetrics  bool
	MetricsPath   string
	Directory     *directory.Directory
	Bus           domain.MessageBus
	NotifyChannel string // channel name notifications are routed to
	Logger        *slog.Logger
}

// Server is the webhook HTTP ingress.
type Server struct {
	host          string
	port          int
	path          string
	secret        string
	dir           *directory.Directory
	bus           domain.MessageBus
	notifyChannel string
	logger        *slog.Logger
	server        *http.Server
}

// depositPayload is the push body for a deposit notification. Amount is
// sent as either a JSON number or a string depending on the API version.
type depositPayload struct {
	Message          string `json:"message"`
	Address          string `json:"address"`
	Amount           any    `json:"amount"`
	NewStatus        string `json:"new_status"`
	MerchantAPIToken string `json:"merchant_api_token"`
}

func (p depositPayload) amountText() string {
	switch a := p.Amount.(type) {
	case nil:
		return "—"
	case string:
		return a
	default:
		return fmt.Sprint(a)
	}
}

// New creates a webhook server.
func New(cfg Config) *Server {
	if cfg.Path == "" {
		cfg.Path = "/webhook"
	}
	if cfg.NotifyChannel == "" {
		cfg.NotifyChannel = "telegram"
	}
	s := &Server{
		host:          cfg.Host,
		port:          cfg.Port,
		path:          cfg.Path,
		secret:        cfg.Secret,
		dir:           cfg.Directory,
		bus:           cfg.Bus,
		notifyChannel: cfg.NotifyChannel,
		logger:        cfg.Logger,
	}

	r := chi.NewRouter()
	r.Post(cfg.Path, s.handleWebhook)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if cfg.ServeMetrics {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Get(path, metrics.Collector.Handler())
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("webhook server starting", "addr", s.server.Addr, "path", s.path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	// Hostile input must fail the request, never the process.
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("webhook handler panic", "panic", rec)
			http.Error(w, "Error", http.StatusBadRequest)
		}
	}()

	// Constant response either way: no hints about which check failed.
	if !s.authenticated(r) {
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var payload depositPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "Error", http.StatusBadRequest)
		return
	}

	metrics.WebhookRequests.Inc()
	s.logger.Info("webhook received", "message", payload.Message)

	// Unrecognized event kinds are accepted and ignored.
	if payload.Message == depositEvent {
		s.notifyDeposit(payload)
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Success"))
}

func (s *Server) authenticated(r *http.Request) bool {
	key := r.Header.Get(secretHeader)
	if key == "" || s.secret == "" {
		return false
	}
	return hmac.Equal([]byte(key), []byte(s.secret))
}

// notifyDeposit fans one deposit event out to every identity enrolled under
// the credential. Recipients are independent: a delivery failure is logged
// and never blocks the remaining sends; the fan-out completes before the
// HTTP response is written.
func (s *Server) notifyDeposit(payload depositPayload) {
	identities := s.dir.IdentitiesFor(payload.MerchantAPIToken)
	if len(identities) == 0 {
		// Configuration gap, not a webhook failure.
		s.logger.Warn("deposit for unenrolled credential ignored")
		return
	}

	text := router.FormatDepositNotification(payload.Address, payload.amountText(), payload.NewStatus)

	delivered := 0
	for _, identity := range identities {
		err := s.bus.SendOutbound(domain.OutboundMessage{
			Channel: s.notifyChannel,
			ChatID:  identity,
			Content: text,
		})
		if err != nil {
			metrics.NotificationsFailed.Inc()
			s.logger.Warn("deposit notification delivery failed", "identity", identity, "err", err)
			continue
		}
		metrics.NotificationsSent.Inc()
		delivered++
	}
	s.logger.Info("deposit notifications sent", "recipients", len(identities), "delivered", delivered)
}
