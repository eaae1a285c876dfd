package webhook

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"merchantbot/internal/directory"
	"merchantbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakeBus records outbound sends and can fail specific recipients.
type fakeBus struct {
	sent    []domain.OutboundMessage
	failFor map[string]bool
}

func (f *fakeBus) Publish(ev domain.InboundEvent)               {}
func (f *fakeBus) Subscribe() <-chan domain.InboundEvent        { return nil }
func (f *fakeBus) OnOutbound(string, func(domain.OutboundMessage) error) {}
func (f *fakeBus) Close()                                       {}

func (f *fakeBus) SendOutbound(msg domain.OutboundMessage) error {
	f.sent = append(f.sent, msg)
	if f.failFor[msg.ChatID] {
		return errors.New("delivery failed")
	}
	return nil
}

func newTestServer(bus domain.MessageBus) *Server {
	return New(Config{
		Host:   "127.0.0.1",
		Port:   0,
		Secret: "hook-secret",
		Directory: directory.New(map[string][]string{
			"cred-1": {"100", "200"},
		}),
		Bus:    bus,
		Logger: testLogger(),
	})
}

func doRequest(s *Server, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if secret != "" {
		req.Header.Set("X-API-Key", secret)
	}
	rr := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rr, req)
	return rr
}

func TestWebhook_MissingSecret(t *testing.T) {
	bus := &fakeBus{}
	s := newTestServer(bus)

	rr := doRequest(s, "", `{"message":"new_deposit","merchant_api_token":"cred-1"}`)
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rr.Code)
	}
	if len(bus.sent) != 0 {
		t.Errorf("no fan-out expected, got %d sends", len(bus.sent))
	}
}

func TestWebhook_WrongSecret(t *testing.T) {
	bus := &fakeBus{}
	s := newTestServer(bus)

	rr := doRequest(s, "wrong", `{"message":"new_deposit","merchant_api_token":"cred-1"}`)
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rr.Code)
	}
	if len(bus.sent) != 0 {
		t.Errorf("no fan-out expected, got %d sends", len(bus.sent))
	}
}

func TestWebhook_MalformedBody(t *testing.T) {
	bus := &fakeBus{}
	s := newTestServer(bus)

	rr := doRequest(s, "hook-secret", "not json")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestWebhook_OtherEventKindIgnored(t *testing.T) {
	bus := &fakeBus{}
	s := newTestServer(bus)

	rr := doRequest(s, "hook-secret", `{"message":"payment_expired","merchant_api_token":"cred-1"}`)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 for unrecognized event, got %d", rr.Code)
	}
	if len(bus.sent) != 0 {
		t.Errorf("no fan-out expected, got %d sends", len(bus.sent))
	}
}

func TestWebhook_DepositFansOutToAllIdentities(t *testing.T) {
	bus := &fakeBus{}
	s := newTestServer(bus)

	body := `{"message":"new_deposit","address":"TKTgEtjonYPdCWDs7bUb9dUUwYikceDabx","amount":15.5,"new_status":"paid","merchant_api_token":"cred-1"}`
	rr := doRequest(s, "hook-secret", body)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if len(bus.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(bus.sent))
	}
	if bus.sent[0].ChatID != "100" || bus.sent[1].ChatID != "200" {
		t.Errorf("unexpected recipients: %v, %v", bus.sent[0].ChatID, bus.sent[1].ChatID)
	}
	if !strings.Contains(bus.sent[0].Content, "15.5") {
		t.Errorf("expected amount in notification, got %q", bus.sent[0].Content)
	}
}

func TestWebhook_DeliveryFailureIsIsolated(t *testing.T) {
	bus := &fakeBus{failFor: map[string]bool{"100": true}}
	s := newTestServer(bus)

	body := `{"message":"new_deposit","address":"T1","amount":"2","new_status":"paid","merchant_api_token":"cred-1"}`
	rr := doRequest(s, "hook-secret", body)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 despite one failed delivery, got %d", rr.Code)
	}
	if len(bus.sent) != 2 {
		t.Errorf("failed delivery to one must not block the other, got %d attempts", len(bus.sent))
	}
}

func TestWebhook_UnenrolledCredentialIsNoop(t *testing.T) {
	bus := &fakeBus{}
	s := newTestServer(bus)

	rr := doRequest(s, "hook-secret", `{"message":"new_deposit","merchant_api_token":"unknown"}`)
	if rr.Code != http.StatusOK {
		t.Errorf("unenrolled credential is a config gap, not an error: got %d", rr.Code)
	}
	if len(bus.sent) != 0 {
		t.Errorf("no fan-out expected, got %d sends", len(bus.sent))
	}
}

func TestWebhook_Healthz(t *testing.T) {
	s := newTestServer(&fakeBus{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}
