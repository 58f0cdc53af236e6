package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KLINE_LIMIT", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("SIGNAL_INTERVAL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.KlineLimit != 500 {
		t.Errorf("KlineLimit = %d, want 500", cfg.KlineLimit)
	}
	if cfg.SignalInterval != 20*time.Minute {
		t.Errorf("SignalInterval = %v, want 20m", cfg.SignalInterval)
	}
	if cfg.DBDriver != "postgres" {
		t.Errorf("DBDriver = %q, want postgres", cfg.DBDriver)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SIGNAL_INTERVAL", "90")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("QUOTE_ASSET", "busd")
	t.Setenv("SIGNAL_RUN_ON_START", "no")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SignalInterval != 90*time.Second {
		t.Errorf("SignalInterval = %v, want 90s", cfg.SignalInterval)
	}
	if cfg.QuoteAsset != "BUSD" {
		t.Errorf("QuoteAsset = %q, want BUSD", cfg.QuoteAsset)
	}
	if cfg.SignalRunOnStart {
		t.Error("SignalRunOnStart = true, want false")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"KLINE_LIMIT", "5000"},
		{"DB_DRIVER", "mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s should fail", tt.key, tt.value)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{MainBotToken: "x"}
	if err := cfg.Validate(NeedMainBot); err != nil {
		t.Errorf("Validate(NeedMainBot) error = %v", err)
	}

	err := cfg.Validate(NeedAdminBot, NeedOpenAI)
	if err == nil {
		t.Fatal("Validate() expected an error")
	}
	for _, want := range []string{"ADMIN_BOT_TOKEN", "ADMIN_TELEGRAM_ID", "OPENAI_API_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q does not mention %s", err, want)
		}
	}
}
