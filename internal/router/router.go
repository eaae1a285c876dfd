// Package router dispatches inbound chat events: it resolves authorization,
// consults the conversation state machine, runs the matching action against
// the merchant API and issues the chat response.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"merchantbot/internal/callback"
	"merchantbot/internal/directory"
	"merchantbot/internal/domain"
	"merchantbot/internal/merchant"
	"merchantbot/internal/metrics"
	"merchantbot/internal/state"
)

const (
	msgUnavailable   = "The service is temporarily unavailable. Try again later."
	msgNotAuthorized = "No API credential is linked to your account."

	defaultInfoTimeout = 5 * time.Second
	historyLimit       = 10
)

// tronAddressRe matches a TRON base58 address: prefix T plus 33 characters
// from the base58 alphabet (no 0, I, O, l).
var tronAddressRe = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)

// ValidAddress reports whether s is a well-formed withdrawal destination
// address. A mismatch never reaches the remote API.
func ValidAddress(s string) bool {
	return tronAddressRe.MatchString(s)
}

// Router is the per-event dispatch layer.
type Router struct {
	api         domain.MerchantAPI
	msgr        domain.Messenger
	dir         *directory.Directory
	states      state.Store
	logger      *slog.Logger
	infoTimeout time.Duration
}

// Config wires the router's collaborators.
type Config struct {
	API       domain.MerchantAPI
	Messenger domain.Messenger
	Directory *directory.Directory
	States    state.Store
	Logger    *slog.Logger
	// InfoTimeout bounds the low-latency account summary lookup
	// (default 5s; other calls use the client default).
	InfoTimeout time.Duration
}

// New creates a Router.
func New(cfg Config) *Router {
	if cfg.InfoTimeout <= 0 {
		cfg.InfoTimeout = defaultInfoTimeout
	}
	return &Router{
		api:         cfg.API,
		msgr:        cfg.Messenger,
		dir:         cfg.Directory,
		states:      cfg.States,
		logger:      cfg.Logger,
		infoTimeout: cfg.InfoTimeout,
	}
}

// Handle processes one inbound event. It never panics out: an unexpected
// bug fails the single action, not the process.
func (r *Router) Handle(ctx context.Context, ev domain.InboundEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("action panic",
				"kind", ev.Kind,
				"chat_id", ev.ChatID,
				"panic", rec,
			)
		}
	}()

	metrics.ActionsTotal.Inc()

	switch ev.Kind {
	case domain.KindCommand:
		if ev.Text == "start" {
			r.handleStart(ctx, ev)
		}
	case domain.KindCallback:
		r.handleCallback(ctx, ev)
	case domain.KindText:
		r.handleText(ctx, ev)
	}
}

// authorize resolves the sender's API credential. When none exists it sends
// the not-authorized message, acknowledges a pending callback, and reports
// false; conversation state is left untouched.
func (r *Router) authorize(ctx context.Context, ev domain.InboundEvent) (string, bool) {
	credential, ok := r.dir.CredentialFor(ev.SenderID)
	if ok {
		return credential, true
	}

	r.logger.Warn("unauthorized chat identity", "sender_id", ev.SenderID, "kind", ev.Kind)
	if ev.CallbackID != "" {
		_ = r.msgr.AnswerCallback(ctx, ev.CallbackID, msgNotAuthorized)
	} else {
		r.send(ctx, ev.ChatID, msgNotAuthorized, nil)
	}
	return "", false
}

func (r *Router) handleStart(ctx context.Context, ev domain.InboundEvent) {
	credential, ok := r.authorize(ctx, ev)
	if !ok {
		return
	}
	text, err := r.accountSummary(ctx, credential)
	if err != nil {
		r.send(ctx, ev.ChatID, summaryErrorText(err), mainMenu())
		return
	}
	r.send(ctx, ev.ChatID, text, mainMenu())
}

func (r *Router) handleCallback(ctx context.Context, ev domain.InboundEvent) {
	name, _ := callback.Unpack(ev.CallbackData)

	// delete_message is the one unprivileged action.
	if name == callback.DeleteMessage {
		_ = r.msgr.AnswerCallback(ctx, ev.CallbackID, "")
		r.delete(ctx, ev.ChatID, ev.MessageID)
		return
	}

	credential, ok := r.authorize(ctx, ev)
	if !ok {
		return
	}

	switch name {
	case callback.Balance:
		r.refreshSummary(ctx, ev, credential)
	case callback.PaymentsLast:
		r.showHistory(ctx, ev, credential)
	case callback.CheckPayment:
		r.promptPaymentQuery(ctx, ev)
	case callback.Withdraw:
		r.promptWithdraw(ctx, ev)
	case callback.Cancel:
		r.cancel(ctx, ev, credential)
	default:
		_ = r.msgr.AnswerCallback(ctx, ev.CallbackID, "")
		r.logger.Debug("unknown callback ignored", "data", ev.CallbackData, "chat_id", ev.ChatID)
	}
}

func (r *Router) handleText(ctx context.Context, ev domain.InboundEvent) {
	st, err := r.states.Get(ctx, ev.SenderID)
	if err != nil {
		r.logger.Error("state lookup failed", "sender_id", ev.SenderID, "err", err)
		st = state.Idle
	}

	switch st {
	case state.AwaitingPaymentQuery:
		credential, ok := r.authorize(ctx, ev)
		if !ok {
			return
		}
		r.lookupPayment(ctx, ev, credential)
	case state.AwaitingWithdrawAddress:
		credential, ok := r.authorize(ctx, ev)
		if !ok {
			return
		}
		r.submitWithdrawal(ctx, ev, credential)
	default:
		// Free text outside a flow is ignored.
	}
}

// refreshSummary re-fetches the account summary and edits the menu message
// in place. An edit rejection (e.g. unchanged content) is not an error.
func (r *Router) refreshSummary(ctx context.Context, ev domain.InboundEvent, credential string) {
	text, err := r.accountSummary(ctx, credential)
	if err != nil {
		_ = r.msgr.AnswerCallback(ctx, ev.CallbackID, "")
		r.send(ctx, ev.ChatID, summaryErrorText(err), mainMenu())
		return
	}
	if err := r.msgr.Edit(ctx, ev.ChatID, ev.MessageID, text, mainMenu()); err != nil {
		r.logger.Debug("summary edit skipped", "chat_id", ev.ChatID, "err", err)
	}
	_ = r.msgr.AnswerCallback(ctx, ev.CallbackID, "Data refreshed.")
}

func (r *Router) showHistory(ctx context.Context, ev domain.InboundEvent, credential string) {
	_ = r.msgr.AnswerCallback(ctx, ev.CallbackID, "")

	q := url.Values{}
	q.Set("limit", fmt.Sprint(historyLimit))
	q.Set("with_closed", "false")
	payload, err := r.api.Get(ctx, "payments/history", credential, q)
	if err != nil {
		var apiErr *merchant.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			r.send(ctx, ev.ChatID, fmt.Sprintf("Request failed: %d\nResponse:\n%s", apiErr.Status, apiErr.PayloadText()), nil)
		} else {
			r.send(ctx, ev.ChatID, msgUnavailable, nil)
		}
		return
	}

	text, found := FormatHistory(payload)
	if !found {
		r.send(ctx, ev.ChatID, "No payments found.", nil)
		return
	}
	r.send(ctx, ev.ChatID, text, cancelKeyboard())
	r.delete(ctx, ev.ChatID, ev.MessageID)
}

func (r *Router) promptPaymentQuery(ctx context.Context, ev domain.InboundEvent) {
	_ = r.msgr.AnswerCallback(ctx, ev.CallbackID, "")
	if err := r.states.Set(ctx, ev.SenderID, state.AwaitingPaymentQuery); err != nil {
		r.logger.Error("state set failed", "sender_id", ev.SenderID, "err", err)
		return
	}
	r.send(ctx, ev.ChatID,
		"Send a <b>payment ID</b> or a <b>TRON address</b>.\n"+
			"Example: <code>7747b8f0-6970-4f38-bcfd-95e6560e49db</code>",
		cancelKeyboard())
	r.delete(ctx, ev.ChatID, ev.MessageID)
}

func (r *Router) promptWithdraw(ctx context.Context, ev domain.InboundEvent) {
	_ = r.msgr.AnswerCallback(ctx, ev.CallbackID, "")
	if err := r.states.Set(ctx, ev.SenderID, state.AwaitingWithdrawAddress); err != nil {
		r.logger.Error("state set failed", "sender_id", ev.SenderID, "err", err)
		return
	}
	r.send(ctx, ev.ChatID,
		"Enter the <b>destination address</b> for the USDT TRC-20 withdrawal (TRON address).",
		cancelKeyboard())
	r.delete(ctx, ev.ChatID, ev.MessageID)
}

// cancel clears the conversation state and re-renders the account summary.
func (r *Router) cancel(ctx context.Context, ev domain.InboundEvent, credential string) {
	_ = r.msgr.AnswerCallback(ctx, ev.CallbackID, "")
	if err := r.states.Clear(ctx, ev.SenderID); err != nil {
		r.logger.Error("state clear failed", "sender_id", ev.SenderID, "err", err)
	}

	text, err := r.accountSummary(ctx, credential)
	if err != nil {
		r.send(ctx, ev.ChatID, summaryErrorText(err), mainMenu())
		return
	}
	r.send(ctx, ev.ChatID, text, mainMenu())
	r.delete(ctx, ev.ChatID, ev.MessageID)
}

func (r *Router) lookupPayment(ctx context.Context, ev domain.InboundEvent, credential string) {
	// The query may contain a customer address; take it out of the chat.
	r.delete(ctx, ev.ChatID, ev.MessageID)

	value := strings.TrimSpace(ev.Text)
	if value == "" {
		r.send(ctx, ev.ChatID, "Send the ID or address in a single message.", hideKeyboard())
		return
	}

	payload, err := r.api.Get(ctx, "payments/"+url.PathEscape(value), credential, nil)
	if err != nil {
		var apiErr *merchant.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			r.send(ctx, ev.ChatID, fmt.Sprintf("Payment <b>%s</b> not found. Try again.", htmlEscape(value)), cancelKeyboard())
			return // state kept: the operator may retry
		}
		r.send(ctx, ev.ChatID, msgUnavailable, cancelKeyboard())
		r.clearState(ctx, ev.SenderID)
		return
	}

	r.send(ctx, ev.ChatID, FormatPaymentDetails(payload), hideKeyboard())
	r.clearState(ctx, ev.SenderID)
}

func (r *Router) submitWithdrawal(ctx context.Context, ev domain.InboundEvent, credential string) {
	toAddress := strings.TrimSpace(ev.Text)

	if !ValidAddress(toAddress) {
		r.send(ctx, ev.ChatID,
			"Invalid TRON address.\n"+
				"Expected format: <b>TKTgEtjonYPdCWDs7bUb9dUUwYikceDabx</b>\n"+
				"Send the address again.",
			cancelKeyboard())
		return // state kept: the operator corrects and retries
	}

	payload, err := r.api.Post(ctx, "merchant/balance/withdraw", credential,
		map[string]string{"to_address": toAddress})
	if err != nil {
		var apiErr *merchant.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			r.send(ctx, ev.ChatID, fmt.Sprintf("Request failed: %d\nResponse:\n%s", apiErr.Status, apiErr.PayloadText()), cancelKeyboard())
		} else {
			r.send(ctx, ev.ChatID, msgUnavailable, cancelKeyboard())
		}
		r.clearState(ctx, ev.SenderID)
		return
	}

	r.send(ctx, ev.ChatID, withdrawalOutcomeText(payload, toAddress), hideKeyboard())
	r.clearState(ctx, ev.SenderID)
	r.delete(ctx, ev.ChatID, ev.MessageID)
}

// withdrawalOutcomeText distinguishes the three withdrawal decisions:
// explicit success ("success": true), the below-minimum status, and
// everything else as a generic failure.
func withdrawalOutcomeText(payload any, toAddress string) string {
	const failText = "❌ Withdrawal could not be completed. Contact support."

	m, ok := payload.(map[string]any)
	if !ok {
		return failText
	}
	if success, _ := m["success"].(bool); success {
		return fmt.Sprintf("✅ Withdrawal created. Expect the transfer to %s <b>(within an hour)</b>.", toAddress)
	}
	if status, _ := m["status"].(string); status == "under_minimum_withdrawal_amount" {
		return "❕ The amount is below the minimum withdrawal threshold. Withdraw once the balance exceeds it."
	}
	return failText
}

// accountSummary fetches merchant info under the short info timeout and
// renders the summary text.
func (r *Router) accountSummary(ctx context.Context, credential string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.infoTimeout)
	defer cancel()

	payload, err := r.api.Get(ctx, "merchant/info", credential, nil)
	if err != nil {
		return "", err
	}
	return FormatSummary(payload), nil
}

// summaryErrorText maps a summary fetch error to the operator-facing text:
// 4xx is a specific request failure, everything else is generic-unavailable.
func summaryErrorText(err error) string {
	var apiErr *merchant.APIError
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		return "Request failed."
	}
	return msgUnavailable
}

func (r *Router) clearState(ctx context.Context, identity string) {
	if err := r.states.Clear(ctx, identity); err != nil {
		r.logger.Error("state clear failed", "sender_id", identity, "err", err)
	}
}

func (r *Router) send(ctx context.Context, chatID, text string, kb domain.Keyboard) {
	if _, err := r.msgr.Send(ctx, chatID, text, kb); err != nil {
		r.logger.Warn("send failed", "chat_id", chatID, "err", err)
	}
}

func (r *Router) delete(ctx context.Context, chatID string, messageID int) {
	if messageID == 0 {
		return
	}
	if err := r.msgr.Delete(ctx, chatID, messageID); err != nil {
		r.logger.Debug("delete skipped", "chat_id", chatID, "message_id", messageID, "err", err)
	}
}
