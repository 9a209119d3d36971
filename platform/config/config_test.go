package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/crmflow")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr)
	}
	if cfg.AsynqQueueName != "automation" || cfg.AsynqConcurrency != 10 {
		t.Fatalf("unexpected asynq defaults %q/%d", cfg.AsynqQueueName, cfg.AsynqConcurrency)
	}
	if cfg.InactivitySweepInterval != time.Minute {
		t.Fatalf("unexpected sweep interval %s", cfg.InactivitySweepInterval)
	}
	if cfg.SendRetryMaxAttempts != 3 || cfg.SendRetryBackoff != 30*time.Second {
		t.Fatalf("unexpected retry defaults %d/%s", cfg.SendRetryMaxAttempts, cfg.SendRetryBackoff)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "secret")

	if _, err := Load(); err == nil {
		t.Fatal("missing database url must fail")
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/crmflow")
	t.Setenv("JWT_ACCESS_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("missing jwt secret must fail")
	}
}

func TestLoadWildcardOriginImpliesAllowAll(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.CORSAllowAll {
		t.Fatal("a wildcard origin must enable allow-all")
	}
}

func TestLoadRejectsWildcardWithCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")

	if _, err := Load(); err == nil {
		t.Fatal("wildcard origins with credentials must be rejected")
	}
}

func TestLoadEmailEnabledNeedsHostAndFromAddress(t *testing.T) {
	setRequired(t)
	t.Setenv("EMAIL_ENABLED", "true")
	t.Setenv("SMTP_HOST", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EmailEnabled {
		t.Fatal("email cannot be enabled without an SMTP host")
	}

	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("EMAIL_FROM_ADDRESS", "")
	if _, err := Load(); err == nil {
		t.Fatal("enabled email without a from address must fail")
	}

	t.Setenv("EMAIL_FROM_ADDRESS", "noreply@example.com")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.EmailEnabled {
		t.Fatal("email must be enabled with host and from address set")
	}
}

func TestLoadParsesCSVOrigins(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ORIGINS", "https://app.example.com, https://admin.example.com ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.CORSOrigins)
	}
	if cfg.CORSOrigins[1] != "https://admin.example.com" {
		t.Fatalf("origins must be trimmed, got %q", cfg.CORSOrigins[1])
	}
}
