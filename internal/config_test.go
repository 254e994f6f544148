package internal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/docket/internal/apperr"
	pkgconfig "github.com/starford/docket/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestApplicationConfig_LogFormat(t *testing.T) {
	cfg := ApplicationConfig{HTTP: HTTPConfig{Port: 80}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty format should default: %v", err)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Errorf("format = %q, want %q", cfg.LogFormat, LogFormatJSON)
	}
	cfg.LogFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown log format should fail")
	}
}

func TestInboxConfig_PathRequiredWhenEnabled(t *testing.T) {
	cfg := InboxConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled inbox needs no path: %v", err)
	}
	cfg.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("enabled inbox without path should fail")
	}
}

func TestPreviewConfig_Bounds(t *testing.T) {
	cfg := PreviewConfig{CacheSize: 0, Chars: 10}
	if err := cfg.Validate(); err == nil {
		t.Error("zero cache size should fail")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("DOCKET_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `app:
  log_level: debug
  log_format: text
  http:
    port: 9090
store:
  path: /tmp/docs.db
  lock_timeout: 500ms
inbox:
  enabled: true
  path: /tmp/inbox
auth:
  mode: token
  token: ${DOCKET_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogFormat != LogFormatText {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
	if cfg.Store.LockTimeout != 500*time.Millisecond || !cfg.Store.CreateIfMissing {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Auth.Token != "s3cret" {
		t.Errorf("token = %q, want expanded env value", cfg.Auth.Token)
	}
	if cfg.Preview.CacheSize != 256 {
		t.Errorf("preview defaults lost: %+v", cfg.Preview)
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	logger := NewLogger(ApplicationConfig{LogFormat: LogFormatJSON}, os.Stderr)
	cfg := StoreConfig{Path: filepath.Join(t.TempDir(), "new.db")}

	if _, err := OpenStore(ctx, cfg, logger); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("OpenStore without create = %v, want ErrNotExist", err)
	}

	cfg.CreateIfMissing = true
	st, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer st.Close()

	if _, err := OpenStore(ctx, StoreConfig{Path: cfg.Path, LockTimeout: 50 * time.Millisecond}, logger); !errors.Is(err, apperr.ErrLocked) {
		t.Errorf("second OpenStore = %v, want ErrLocked", err)
	}
}
