package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Agent.WebDriverURL != "http://localhost:9515" {
		t.Errorf("unexpected webdriver url: %s", cfg.Agent.WebDriverURL)
	}
	if cfg.Downloader.Dir != "downloads" {
		t.Errorf("unexpected download dir: %s", cfg.Downloader.Dir)
	}
	if len(cfg.Agent.Locators.PromptInput.Selectors) == 0 {
		t.Error("default locators must be filled in")
	}
}

func TestLoad_OverridesKeepUnsetDefaults(t *testing.T) {
	raw := `
agent:
  target_url: https://generator.example
  locators:
    prompt_input:
      name: prompt box
      selectors:
        - "#prompt"
scheduler:
  entries:
    - session_id: 6f1c9aef-0000-0000-0000-000000000001
      cron: "0 9 * * *"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Agent.TargetURL != "https://generator.example" {
		t.Errorf("unexpected target url: %s", cfg.Agent.TargetURL)
	}
	if got := cfg.Agent.Locators.PromptInput.Selectors; len(got) != 1 || got[0] != "#prompt" {
		t.Errorf("locator override lost: %v", got)
	}
	// Незатронутые локаторы получают значения по умолчанию
	if len(cfg.Agent.Locators.GenerateButton.Selectors) == 0 {
		t.Error("untouched locators must fall back to defaults")
	}
	if len(cfg.Scheduler.Entries) != 1 || cfg.Scheduler.Entries[0].Cron != "0 9 * * *" {
		t.Errorf("unexpected schedule entries: %v", cfg.Scheduler.Entries)
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
