// Package whatsapp sends outbound messages through a gowa-compatible
// WhatsApp gateway. The automation executor is its only caller.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"crmflow_backend/platform/config"
	"crmflow_backend/platform/logger"
	"crmflow_backend/platform/phone"
)

// SendResult reports the outcome of a delivery attempt. Provider-side
// failures come back in ProviderError rather than as a Go error so the
// executor can record them in the execution log without aborting the run.
type SendResult struct {
	Delivered     bool
	ProviderError string
}

type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	http     *http.Client
	log      *logger.Logger
}

type gowaRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// NewClient builds a gateway client from config. Returns nil when no
// gateway URL is configured; a nil client reports every send as a
// provider failure instead of panicking.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if cfg.GetWhatsAppURL() == "" {
		return nil
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetWhatsAppURL(), "/"),
		apiKey:   cfg.GetWhatsAppKey(),
		deviceID: cfg.GetWhatsAppDeviceID(),
		http:     &http.Client{Timeout: cfg.GetWhatsAppTimeout()},
		log:      log,
	}
}

// SendMessage delivers a rendered message to the lead's phone number.
// The returned error covers only local failures (payload marshalling,
// request construction); everything on the provider side lands in the
// SendResult.
func (c *Client) SendMessage(ctx context.Context, phoneNumber string, message string) (SendResult, error) {
	if c == nil {
		return SendResult{ProviderError: "whatsapp gateway not configured"}, nil
	}

	normalized := strings.TrimPrefix(phone.NormalizeE164(phoneNumber), "+")
	if normalized == "" {
		return SendResult{ProviderError: "lead has no usable phone number"}, nil
	}

	payload := gowaRequest{
		Phone:   normalized,
		Message: message,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return SendResult{}, fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/send/message", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return SendResult{}, err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return SendResult{ProviderError: fmt.Sprintf("whatsapp request failed: %v", err)}, nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return SendResult{
			ProviderError: fmt.Sprintf("whatsapp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
		}, nil
	}

	c.log.Info("whatsapp sent via gowa", "phone", normalized)
	return SendResult{Delivered: true}, nil
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}
