package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/lifeshare/bloodlink-api/pkg/config"
)

// Sender delivers a text message to a phone number. Implementations are
// best-effort; callers must treat failures as non-fatal.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// Client talks to the Twilio Messages REST endpoint. When no account SID is
// configured the client is a logging no-op so development environments never
// attempt outbound delivery.
type Client struct {
	cfg    config.SMSConfig
	http   *http.Client
	logger *zap.Logger
}

// NewClient constructs an SMS client from config.
func NewClient(cfg config.SMSConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Enabled reports whether outbound delivery is configured.
func (c *Client) Enabled() bool {
	return c.cfg.AccountSID != "" && c.cfg.AuthToken != "" && c.cfg.FromNumber != ""
}

// Send posts one message. Returns an error for the caller to log; nothing here
// is retried or escalated.
func (c *Client) Send(ctx context.Context, to, body string) error {
	if !c.Enabled() {
		c.logger.Debug("sms disabled, dropping message", zap.String("to", to))
		return nil
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(c.cfg.APIBaseURL, "/"), c.cfg.AccountSID)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.cfg.FromNumber)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, string(raw))
	}

	c.logger.Info("sms sent", zap.String("to", to))
	return nil
}
