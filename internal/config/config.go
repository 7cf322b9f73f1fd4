package config

import (
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone     = "UTC"
	configPathEnv       = "PROP_DASHBOARDS_CONFIG"
	serverAddrEnv       = "PROP_DASHBOARDS_ADDR"
	publicURLEnv        = "PROP_DASHBOARDS_PUBLIC_URL"
	logLevelEnv         = "LOG_LEVEL"
	dataDirEnv          = "DATA_DIR"
	weekEnv             = "CURRENT_WEEK"
	databaseDSNEnv      = "DATABASE_DSN"
	telegramTokenEnv    = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv   = "TELEGRAM_CHAT_ID"
	natsURLEnv          = "NATS_URL"
	captionAPIKeyEnv    = "CHATGPT_API_KEY"
	captionModelEnv     = "CHATGPT_MODEL"
	renderScaleEnv      = "RENDER_SCALE"
	renderOutputDirEnv  = "RENDER_OUTPUT_DIR"
	defaultCategoryID   = "prop-trading"
	defaultWorkerCount  = 4
	defaultRenderWidth  = 1560
	defaultRenderHeight = 850
)

// Config holds high-level settings required across the application.
type Config struct {
	Server     ServerConfig              `yaml:"server"`
	Logging    LoggingConfig             `yaml:"logging"`
	Data       DataConfig                `yaml:"data"`
	Week       string                    `yaml:"week"`
	Categories map[string]CategoryConfig `yaml:"categories"`
	Render     RenderConfig              `yaml:"render"`
	Database   DatabaseConfig            `yaml:"database"`
	Telegram   TelegramConfig            `yaml:"telegram"`
	NATS       NATSConfig                `yaml:"nats"`
	Caption    CaptionConfig             `yaml:"caption"`
	Scheduler  SchedulerConfig           `yaml:"scheduler"`
}

// ServerConfig describes the web UI listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// PublicURL is the base the capture step fetches dashboard pages from.
	PublicURL string `yaml:"publicUrl"`
}

// LoggingConfig selects the slog level and output format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DataConfig points at the directory holding weekly CSV snapshots.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// CategoryConfig maps a ranking family to its snapshot file.
type CategoryConfig struct {
	Name        string `yaml:"name"`
	CSVFile     string `yaml:"csvFile"`
	Format      string `yaml:"format"`
	Visitors    int64  `yaml:"visitors"`
	Competitors string `yaml:"competitors"`
}

// RenderConfig controls the PNG pipeline.
type RenderConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Scale     int    `yaml:"scale"`
	OutputDir string `yaml:"outputDir"`
	Workers   int    `yaml:"workers"`
}

// DatabaseConfig describes Postgres connection details. Empty DSN disables history.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// TelegramConfig wires all data required to send images.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// NATSConfig describes the JetStream event sink. Empty URL disables it.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Stream  string `yaml:"stream"`
	Subject string `yaml:"subject"`
}

// CaptionConfig defines how to contact an OpenAI-compatible chat API.
type CaptionConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// SchedulerConfig defines when the weekly batch should run.
type SchedulerConfig struct {
	Weekday  string         `yaml:"weekday"`
	Hour     int            `yaml:"hour"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// Day parses Weekday, defaulting to Monday.
func (s SchedulerConfig) Day() time.Weekday {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(s.Weekday)) {
			return d
		}
	}
	return time.Monday
}

// Category returns the configured category by id.
func (c Config) Category(id string) (CategoryConfig, bool) {
	cat, ok := c.Categories[id]
	return cat, ok
}

// CategoryIDs lists configured categories in a stable order.
func (c Config) CategoryIDs() []string {
	ids := make([]string, 0, len(c.Categories))
	for id := range c.Categories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultCategory is the category used when a request names none.
func (c Config) DefaultCategory() string {
	if _, ok := c.Categories[defaultCategoryID]; ok {
		return defaultCategoryID
	}
	if ids := c.CategoryIDs(); len(ids) > 0 {
		return ids[0]
	}
	return defaultCategoryID
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg, err := Parse(raw)
			if err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	cfg.bindTimezone()

	return cfg
}

// Parse decodes a YAML document without applying defaults.
func Parse(raw []byte) (Config, error) {
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, err
	}
	return fileCfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(serverAddrEnv); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(publicURLEnv); v != "" {
		c.Server.PublicURL = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(dataDirEnv); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv(weekEnv); v != "" {
		c.Week = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv(natsURLEnv); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv(captionAPIKeyEnv); v != "" {
		c.Caption.APIKey = v
	}
	if v := os.Getenv(captionModelEnv); v != "" {
		c.Caption.Model = v
	}
	if v := os.Getenv(renderScaleEnv); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Render.Scale = n
		}
	}
	if v := os.Getenv(renderOutputDirEnv); v != "" {
		c.Render.OutputDir = v
	}
}

func (c *Config) normalize() {
	if len(c.Categories) == 0 {
		c.Categories = defaultConfig().Categories
	}
	if c.Render.Width <= 0 {
		c.Render.Width = defaultRenderWidth
	}
	if c.Render.Height <= 0 {
		c.Render.Height = defaultRenderHeight
	}
	if c.Render.Scale <= 0 {
		c.Render.Scale = 1
	}
	if c.Render.Workers <= 0 {
		c.Render.Workers = defaultWorkerCount
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://localhost" + c.Server.Addr
	}
	c.Server.PublicURL = strings.TrimSuffix(c.Server.PublicURL, "/")
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.PublicURL != "" {
		base.Server.PublicURL = override.Server.PublicURL
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}
	if override.Data.Dir != "" {
		base.Data.Dir = override.Data.Dir
	}
	if override.Week != "" {
		base.Week = override.Week
	}
	if len(override.Categories) > 0 {
		base.Categories = override.Categories
	}

	if override.Render.Width > 0 {
		base.Render.Width = override.Render.Width
	}
	if override.Render.Height > 0 {
		base.Render.Height = override.Render.Height
	}
	if override.Render.Scale > 0 {
		base.Render.Scale = override.Render.Scale
	}
	if override.Render.OutputDir != "" {
		base.Render.OutputDir = override.Render.OutputDir
	}
	if override.Render.Workers > 0 {
		base.Render.Workers = override.Render.Workers
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.ChatID != "" {
		base.Telegram.ChatID = override.Telegram.ChatID
	}

	if override.NATS.URL != "" {
		base.NATS.URL = override.NATS.URL
	}
	if override.NATS.Stream != "" {
		base.NATS.Stream = override.NATS.Stream
	}
	if override.NATS.Subject != "" {
		base.NATS.Subject = override.NATS.Subject
	}

	if override.Caption.Endpoint != "" {
		base.Caption.Endpoint = override.Caption.Endpoint
	}
	if override.Caption.Model != "" {
		base.Caption.Model = override.Caption.Model
	}
	if override.Caption.APIKey != "" {
		base.Caption.APIKey = override.Caption.APIKey
	}
	if override.Caption.SystemPrompt != "" {
		base.Caption.SystemPrompt = override.Caption.SystemPrompt
	}

	if override.Scheduler.Weekday != "" {
		base.Scheduler.Weekday = override.Scheduler.Weekday
	}
	if override.Scheduler.Hour > 0 {
		base.Scheduler.Hour = override.Scheduler.Hour
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Server:  ServerConfig{Addr: ":3000"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Data:    DataConfig{Dir: "data/weekly"},
		Week:    "Aug 1 - Aug 7",
		Categories: map[string]CategoryConfig{
			"prop-trading": {
				Name:        "Prop Trading",
				CSVFile:     "prop-trading.csv",
				Visitors:    105844,
				Competitors: "names",
			},
			"futures": {
				Name:        "Futures",
				CSVFile:     "futures.csv",
				Visitors:    108346,
				Competitors: "names",
			},
		},
		Render: RenderConfig{
			Width:     defaultRenderWidth,
			Height:    defaultRenderHeight,
			Scale:     2,
			OutputDir: "output/dashboards",
			Workers:   defaultWorkerCount,
		},
		NATS: NATSConfig{Stream: "dashboards", Subject: "dashboards.generated"},
		Caption: CaptionConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You write one-sentence social captions for weekly prop firm ranking report cards.",
		},
		Scheduler: SchedulerConfig{Weekday: "Monday", Hour: 9, Timezone: defaultTimezone, location: tz},
	}
}
