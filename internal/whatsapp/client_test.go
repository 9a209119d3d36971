package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crmflow_backend/platform/logger"
)

type testWhatsAppConfig struct {
	url      string
	key      string
	deviceID string
}

func (c testWhatsAppConfig) GetWhatsAppURL() string            { return c.url }
func (c testWhatsAppConfig) GetWhatsAppKey() string            { return c.key }
func (c testWhatsAppConfig) GetWhatsAppDeviceID() string       { return c.deviceID }
func (c testWhatsAppConfig) GetWhatsAppTimeout() time.Duration { return 5 * time.Second }

func TestNilClientReportsProviderFailure(t *testing.T) {
	client := NewClient(testWhatsAppConfig{}, logger.New("test"))
	if client != nil {
		t.Fatal("no gateway url must yield a nil client")
	}

	result, err := client.SendMessage(context.Background(), "+5511999999999", "hello")
	if err != nil {
		t.Fatalf("nil client must not error: %v", err)
	}
	if result.Delivered {
		t.Fatal("nil client cannot deliver")
	}
	if result.ProviderError == "" {
		t.Fatal("expected a provider error explaining the missing gateway")
	}
}

func TestSendMessagePostsNormalizedPayload(t *testing.T) {
	var got gowaRequest
	var auth, device string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send/message" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		device = r.Header.Get("X-Device-Id")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(testWhatsAppConfig{url: srv.URL + "/", key: "user:pass", deviceID: "dev-1"}, logger.New("test"))

	result, err := client.SendMessage(context.Background(), "+55 11 99999-9999", "Oi Maria")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !result.Delivered {
		t.Fatalf("expected delivery, got provider error %q", result.ProviderError)
	}
	if got.Phone != "5511999999999" {
		t.Fatalf("phone must be normalized without the plus sign, got %q", got.Phone)
	}
	if got.Message != "Oi Maria" {
		t.Fatalf("unexpected message %q", got.Message)
	}
	if !strings.HasPrefix(auth, "Basic ") {
		t.Fatalf("expected basic auth header, got %q", auth)
	}
	if device != "dev-1" {
		t.Fatalf("expected device header, got %q", device)
	}
}

func TestSendMessageGatewayErrorLandsInResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "device offline", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(testWhatsAppConfig{url: srv.URL}, logger.New("test"))

	result, err := client.SendMessage(context.Background(), "+5511999999999", "hello")
	if err != nil {
		t.Fatalf("gateway failures must not surface as errors: %v", err)
	}
	if result.Delivered {
		t.Fatal("a 502 is not a delivery")
	}
	if !strings.Contains(result.ProviderError, "502") || !strings.Contains(result.ProviderError, "device offline") {
		t.Fatalf("provider error must carry status and body, got %q", result.ProviderError)
	}
}

func TestSendMessageUnreachableGatewayLandsInResult(t *testing.T) {
	client := NewClient(testWhatsAppConfig{url: "http://127.0.0.1:1"}, logger.New("test"))

	result, err := client.SendMessage(context.Background(), "+5511999999999", "hello")
	if err != nil {
		t.Fatalf("transport failures must not surface as errors: %v", err)
	}
	if result.Delivered || result.ProviderError == "" {
		t.Fatalf("expected a provider error, got %+v", result)
	}
}

func TestFormatAuthHeaderKeepsExistingBasicPrefix(t *testing.T) {
	if got := formatAuthHeader("Basic abc123"); got != "Basic abc123" {
		t.Fatalf("pre-encoded credentials must pass through, got %q", got)
	}
	if got := formatAuthHeader("user:pass"); !strings.HasPrefix(got, "Basic ") || got == "Basic user:pass" {
		t.Fatalf("raw credentials must be base64 encoded, got %q", got)
	}
}
