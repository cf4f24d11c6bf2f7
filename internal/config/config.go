// Package config загружает YAML-конфигурацию сервисов.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/veresk/storyforge/internal/page"
)

// Config — конфигурация агента, загрузчика и планировщика.
// Один файл на все сервисы, каждый читает свою секцию.
type Config struct {
	Agent struct {
		// WebDriverURL — адрес WebDriver-сервера.
		WebDriverURL string `yaml:"webdriver_url"`

		// TargetURL — адрес внешнего генерационного интерфейса.
		TargetURL string `yaml:"target_url"`

		// PollIntervalMs — интервал fallback-опроса состояния страницы.
		PollIntervalMs int `yaml:"poll_interval_ms"`

		// AffordanceWaitMs — бюджет ожидания элементов управления.
		AffordanceWaitMs int `yaml:"affordance_wait_ms"`

		// Locators — переопределения селекторов. Пустые локаторы
		// заменяются значениями по умолчанию.
		Locators page.Locators `yaml:"locators"`
	} `yaml:"agent"`

	Downloader struct {
		// Dir — каталог для скачанных файлов.
		Dir string `yaml:"dir"`
	} `yaml:"downloader"`

	Scheduler struct {
		// Entries — расписания повторных запусков сохранённых сессий.
		Entries []ScheduleEntry `yaml:"entries"`
	} `yaml:"scheduler"`
}

// ScheduleEntry — одно расписание: cron-выражение и сессия для запуска.
type ScheduleEntry struct {
	SessionID string `yaml:"session_id"`
	Cron      string `yaml:"cron"`
}

// Load читает конфигурацию из файла. Пустой путь даёт конфигурацию
// по умолчанию.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Agent.WebDriverURL == "" {
		c.Agent.WebDriverURL = "http://localhost:9515"
	}
	if c.Agent.PollIntervalMs <= 0 {
		c.Agent.PollIntervalMs = 500
	}
	if c.Agent.AffordanceWaitMs <= 0 {
		c.Agent.AffordanceWaitMs = 10_000
	}
	if c.Downloader.Dir == "" {
		c.Downloader.Dir = "downloads"
	}

	defaults := page.DefaultLocators()
	fillLocator(&c.Agent.Locators.PromptInput, defaults.PromptInput)
	fillLocator(&c.Agent.Locators.AttachButton, defaults.AttachButton)
	fillLocator(&c.Agent.Locators.FileInput, defaults.FileInput)
	fillLocator(&c.Agent.Locators.ChainButton, defaults.ChainButton)
	fillLocator(&c.Agent.Locators.GenerateButton, defaults.GenerateButton)
	fillLocator(&c.Agent.Locators.ArtifactImage, defaults.ArtifactImage)
	fillLocator(&c.Agent.Locators.OverlayDismiss, defaults.OverlayDismiss)
}

func fillLocator(dst *page.Locator, def page.Locator) {
	if len(dst.Selectors) == 0 {
		*dst = def
	} else if dst.Name == "" {
		dst.Name = def.Name
	}
}

// PollInterval возвращает интервал опроса страницы.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Agent.PollIntervalMs) * time.Millisecond
}

// AffordanceWait возвращает бюджет ожидания элементов управления.
func (c *Config) AffordanceWait() time.Duration {
	return time.Duration(c.Agent.AffordanceWaitMs) * time.Millisecond
}
