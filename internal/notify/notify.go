// Package notify holds the outbound SMS and user-notification collaborators.
// Callers treat every send as best-effort.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/playmate/server/internal/model"
	"github.com/playmate/server/internal/observability/logging"
)

// SMSSender delivers one-time codes
type SMSSender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// Notifier tells users about interest activity
type Notifier interface {
	InterestReceived(ctx context.Context, receiver, sender model.User) error
	InterestAccepted(ctx context.Context, sender, receiver model.User) error
}

// LogSMS is an SMSSender that only logs; the code itself is never logged.
type LogSMS struct {
	logger *slog.Logger
}

func NewLogSMS(logger *slog.Logger) *LogSMS { return &LogSMS{logger: logger} }

func (s *LogSMS) SendOTP(ctx context.Context, phone, code string) error {
	s.logger.InfoContext(ctx, "otp sms (log only)", logging.Phone(phone))
	return nil
}

// WebhookSMS posts {"to","message"} JSON to an SMS gateway
type WebhookSMS struct {
	url    string
	client *http.Client
}

func NewWebhookSMS(url string, timeout time.Duration) *WebhookSMS {
	return &WebhookSMS{url: url, client: &http.Client{Timeout: timeout}}
}

type smsPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (s *WebhookSMS) SendOTP(ctx context.Context, phone, code string) error {
	body, err := json.Marshal(smsPayload{
		To:      phone,
		Message: fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code),
	})
	if err != nil {
		return fmt.Errorf("encode sms payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier logs interest notifications
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier { return &LogNotifier{logger: logger} }

func (n *LogNotifier) InterestReceived(ctx context.Context, receiver, sender model.User) error {
	n.logger.InfoContext(ctx, "notify interest received",
		slog.String("receiver_id", receiver.ID.String()),
		slog.String("sender_id", sender.ID.String()),
	)
	return nil
}

func (n *LogNotifier) InterestAccepted(ctx context.Context, sender, receiver model.User) error {
	n.logger.InfoContext(ctx, "notify interest accepted",
		slog.String("sender_id", sender.ID.String()),
		slog.String("receiver_id", receiver.ID.String()),
	)
	return nil
}
