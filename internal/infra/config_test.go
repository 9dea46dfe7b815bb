package infra

import "testing"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "")
	t.Setenv("ANTHROPIC_MODEL", "")
	t.Setenv("DISPATCH_CRON", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "8080")
	}
	if cfg.SlackBaseURL != "https://slack.com/api" {
		t.Fatalf("SlackBaseURL mismatch: got %q", cfg.SlackBaseURL)
	}
	if cfg.AnthropicModel != "claude-haiku-4-5-20251001" {
		t.Fatalf("AnthropicModel mismatch: got %q", cfg.AnthropicModel)
	}
	if cfg.DispatchCron != "external" {
		t.Fatalf("DispatchCron mismatch: got %q", cfg.DispatchCron)
	}
	if cfg.AnthropicMaxTokens != 2000 {
		t.Fatalf("AnthropicMaxTokens mismatch: got %d", cfg.AnthropicMaxTokens)
	}
}

func TestLoadConfigRequiresSupabaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SUPABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig should fail without SUPABASE_URL")
	}
}

func TestLoadConfigRequiresSlackToken(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SLACK_BOT_TOKEN", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig should fail without SLACK_BOT_TOKEN")
	}
}

func TestLoadConfigHonorsExplicitTimeouts(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HTTP_READ_TIMEOUT_SECONDS", "5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if got := cfg.HTTPReadTimeout.Seconds(); got != 5 {
		t.Fatalf("HTTPReadTimeout = %vs, want 5s", got)
	}
}
