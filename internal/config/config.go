package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone         = "UTC"
	defaultScheduleTimezone = "America/Sao_Paulo"
	defaultCity             = "São Paulo"
	defaultCronExpression   = "0 8 * * *"
	configPathEnv           = "DAILY_BRIEFING_CONFIG"
	dotEnvPathEnv           = "DAILY_BRIEFING_DOTENV"
	userTimezoneEnv         = "USER_TZ"
	weatherCityEnv          = "WEATHER_CITY"
	cronScheduleEnv         = "CRON_SCHEDULE"
	googleClientIDEnv       = "GOOGLE_CLIENT_ID"
	googleClientSecretEnv   = "GOOGLE_CLIENT_SECRET"
	googleRefreshTokenEnv   = "GOOGLE_REFRESH_TOKEN"
	googleCalendarIDEnv     = "GOOGLE_CALENDAR_ID"
	telegramTokenEnv        = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv       = "TELEGRAM_CHAT_ID"
	openAIAPIKeyEnv         = "OPENAI_API_KEY"
	openAIModelEnv          = "OPENAI_MODEL"
	logLevelEnv             = "LOG_LEVEL"
	logFormatEnv            = "LOG_FORMAT"
	databaseDriverEnv       = "DATABASE_DRIVER"
	databaseDSNEnv          = "DATABASE_DSN"
	httpAddrEnv             = "HTTP_ADDR"
	systemTimezoneEnv       = "TZ"
)

const defaultSummarizerPrompt = `Você escreve resumos matinais curtos em PT-BR.
Saída desejada (1–3 linhas, sem texto extra):
"Hoje você tem X compromissos. Máx Y°C, mín Z°C. Sugestão de prioridade: ...".
Se não houver compromissos, diga "Nenhum compromisso para hoje." e ainda inclua a temperatura.
Se algum dado faltar (ex.: clima), seja claro e breve.`

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Briefing      BriefingConfig     `yaml:"briefing"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Calendar      CalendarConfig     `yaml:"calendar"`
	Weather       WeatherConfig      `yaml:"weather"`
	Notifications NotificationConfig `yaml:"notifications"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Storage       StorageConfig      `yaml:"storage"`
	Server        ServerConfig       `yaml:"server"`
}

// LoggingConfig selects slog level and handler format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BriefingConfig holds the environment defaults the pipeline falls back to.
type BriefingConfig struct {
	Timezone       string `yaml:"timezone"`
	City           string `yaml:"city"`
	SystemTimezone string `yaml:"-"`
}

// SchedulerConfig defines when the briefing runs and with which input.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	City           string         `yaml:"city"`
	Send           *bool          `yaml:"send"`
	Channel        string         `yaml:"channel"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// CalendarConfig carries the OAuth refresh credentials for Google Calendar.
type CalendarConfig struct {
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
	RefreshToken string `yaml:"refreshToken"`
	CalendarID   string `yaml:"calendarId"`
	TokenURL     string `yaml:"tokenUrl"`
	APIBaseURL   string `yaml:"apiBaseUrl"`
}

// WeatherConfig points at the Open-Meteo geocoding and forecast APIs.
type WeatherConfig struct {
	GeocodingURL string `yaml:"geocodingUrl"`
	ForecastURL  string `yaml:"forecastUrl"`
	Language     string `yaml:"language"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken   string `yaml:"botToken"`
	ChatID     string `yaml:"chatId"`
	APIBaseURL string `yaml:"apiBaseUrl"`
	ParseMode  string `yaml:"parseMode"`
}

// Configured reports whether the primary channel has its credentials.
func (t TelegramConfig) Configured() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// StorageConfig selects the run-history database. An empty driver disables history.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit YAML path; an empty path falls back to DAILY_BRIEFING_CONFIG.
func LoadFrom(path string) Config {
	loadDotEnv()

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func loadDotEnv() {
	path := os.Getenv(dotEnvPathEnv)
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Printf("config: cannot load %s: %v", path, err)
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(userTimezoneEnv); v != "" {
		c.Briefing.Timezone = v
		c.Scheduler.Timezone = v
	}
	if v := os.Getenv(weatherCityEnv); v != "" {
		c.Briefing.City = v
		c.Scheduler.City = v
	}
	if v := os.Getenv(cronScheduleEnv); v != "" {
		c.Scheduler.CronExpression = v
	}

	if v := os.Getenv(googleClientIDEnv); v != "" {
		c.Calendar.ClientID = v
	}
	if v := os.Getenv(googleClientSecretEnv); v != "" {
		c.Calendar.ClientSecret = v
	}
	if v := os.Getenv(googleRefreshTokenEnv); v != "" {
		c.Calendar.RefreshToken = v
	}
	if v := os.Getenv(googleCalendarIDEnv); v != "" {
		c.Calendar.CalendarID = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}
	if v := os.Getenv(openAIModelEnv); v != "" {
		c.ChatGPT.Model = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(logFormatEnv); v != "" {
		c.Logging.Format = v
	}

	if v, ok := os.LookupEnv(databaseDriverEnv); ok {
		c.Storage.Driver = strings.TrimSpace(v)
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Storage.DSN = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.Server.Addr = v
	}

	c.Briefing.SystemTimezone = systemTimezone()
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultScheduleTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		tz = defaultTimezone
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.Timezone = tz
	c.Scheduler.location = loc
}

// systemTimezone returns the host zone name when it is a loadable IANA name.
func systemTimezone() string {
	name := strings.TrimPrefix(strings.TrimSpace(os.Getenv(systemTimezoneEnv)), ":")
	if name == "" || strings.HasPrefix(name, "/") {
		return ""
	}
	if _, err := time.LoadLocation(name); err != nil {
		return ""
	}
	return name
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Briefing.Timezone != "" {
		base.Briefing.Timezone = override.Briefing.Timezone
	}
	if override.Briefing.City != "" {
		base.Briefing.City = override.Briefing.City
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}
	if override.Scheduler.City != "" {
		base.Scheduler.City = override.Scheduler.City
	}
	if override.Scheduler.Send != nil {
		base.Scheduler.Send = override.Scheduler.Send
	}
	if override.Scheduler.Channel != "" {
		base.Scheduler.Channel = override.Scheduler.Channel
	}

	if override.Calendar.ClientID != "" {
		base.Calendar.ClientID = override.Calendar.ClientID
	}
	if override.Calendar.ClientSecret != "" {
		base.Calendar.ClientSecret = override.Calendar.ClientSecret
	}
	if override.Calendar.RefreshToken != "" {
		base.Calendar.RefreshToken = override.Calendar.RefreshToken
	}
	if override.Calendar.CalendarID != "" {
		base.Calendar.CalendarID = override.Calendar.CalendarID
	}
	if override.Calendar.TokenURL != "" {
		base.Calendar.TokenURL = override.Calendar.TokenURL
	}
	if override.Calendar.APIBaseURL != "" {
		base.Calendar.APIBaseURL = override.Calendar.APIBaseURL
	}

	if override.Weather.GeocodingURL != "" {
		base.Weather.GeocodingURL = override.Weather.GeocodingURL
	}
	if override.Weather.ForecastURL != "" {
		base.Weather.ForecastURL = override.Weather.ForecastURL
	}
	if override.Weather.Language != "" {
		base.Weather.Language = override.Weather.Language
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.APIBaseURL != "" {
		base.Notifications.Telegram.APIBaseURL = override.Notifications.Telegram.APIBaseURL
	}
	if override.Notifications.Telegram.ParseMode != "" {
		base.Notifications.Telegram.ParseMode = override.Notifications.Telegram.ParseMode
	}

	if override.ChatGPT.Endpoint != "" {
		base.ChatGPT.Endpoint = override.ChatGPT.Endpoint
	}
	if override.ChatGPT.Model != "" {
		base.ChatGPT.Model = override.ChatGPT.Model
	}
	if override.ChatGPT.APIKey != "" {
		base.ChatGPT.APIKey = override.ChatGPT.APIKey
	}
	if override.ChatGPT.SystemPrompt != "" {
		base.ChatGPT.SystemPrompt = override.ChatGPT.SystemPrompt
	}

	if override.Storage.Driver != "" {
		base.Storage.Driver = override.Storage.Driver
	}
	if override.Storage.DSN != "" {
		base.Storage.DSN = override.Storage.DSN
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	return base
}

// SendEnabled reports whether scheduled runs deliver; they do unless configured otherwise.
func (s SchedulerConfig) SendEnabled() bool {
	if s.Send == nil {
		return true
	}
	return *s.Send
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultScheduleTimezone)
	if tz == nil {
		tz, _ = time.LoadLocation(defaultTimezone)
	}
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Briefing: BriefingConfig{City: defaultCity},
		Scheduler: SchedulerConfig{
			CronExpression: defaultCronExpression,
			Timezone:       defaultScheduleTimezone,
			City:           defaultCity,
			Channel:        "telegram",
			location:       tz,
		},
		Calendar: CalendarConfig{
			CalendarID: "primary",
			TokenURL:   "https://oauth2.googleapis.com/token",
			APIBaseURL: "https://www.googleapis.com/calendar/v3",
		},
		Weather: WeatherConfig{
			GeocodingURL: "https://geocoding-api.open-meteo.com/v1/search",
			ForecastURL:  "https://api.open-meteo.com/v1/forecast",
			Language:     "pt",
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{
				APIBaseURL: "https://api.telegram.org",
				ParseMode:  "Markdown",
			},
		},
		ChatGPT: ChatGPTConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: defaultSummarizerPrompt,
		},
		Storage: StorageConfig{Driver: "sqlite3", DSN: ":memory:"},
		Server:  ServerConfig{Addr: ":8080"},
	}
}
