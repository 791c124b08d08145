package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port         int           `yaml:"port" validate:"gt=0,lte=65535"`
	ReadTimeout  time.Duration `yaml:"readTimeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"writeTimeout" validate:"gte=0"`
}

type BusConfig struct {
	Stop         string `yaml:"stop" validate:"required"`
	Route        string `yaml:"route" validate:"required"`
	Direction    string `yaml:"direction" validate:"required"`
	LocationCode string `yaml:"locationCode" validate:"required"`
	Limit        int    `yaml:"limit" validate:"gt=0"`
}

type RailConfig struct {
	NYCStation    string `yaml:"nycStation" validate:"required"`
	NewarkStation string `yaml:"newarkStation" validate:"required"`
	Limit         int    `yaml:"limit" validate:"gt=0"`
	// DepartureVisionURL is the HTML board used when TrainData fails.
	DepartureVisionURL string `yaml:"departureVisionURL" validate:"omitempty,url"`
}

type SubwayConfig struct {
	FeedURL string        `yaml:"feedURL" validate:"required,url"`
	Stops   []string      `yaml:"stops" validate:"min=1,dive,required"`
	Buffer  time.Duration `yaml:"buffer" validate:"gte=0"`
	Limit   int           `yaml:"limit" validate:"gt=0"`
	Label   string        `yaml:"label"`
}

type Coordinates struct {
	Lat float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `yaml:"lon" validate:"gte=-180,lte=180"`
}

type WeatherConfig struct {
	BaseURL  string        `yaml:"baseURL" validate:"required,url"`
	CacheTTL time.Duration `yaml:"cacheTTL" validate:"gte=0"`
	Home     Coordinates   `yaml:"home"`
	Office   Coordinates   `yaml:"office"`
}

type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

type NATSConfig struct {
	URL     string `yaml:"url" validate:"omitempty,url"`
	Subject string `yaml:"subject" validate:"required_with=URL"`
}

type TelegramConfig struct {
	BaseURL string `yaml:"baseURL" validate:"required,url"`
}

// Secrets are read from the environment only.
type Secrets struct {
	NJTUsername    string
	NJTPassword    string
	NJTBusBaseURL  string
	NJTRailBaseURL string
	WeatherKey     string
	MTAAPIKey      string
	TelegramToken  string
	TelegramChatID string
}

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" validate:"required"`
	Timezone  string          `yaml:"timezone" validate:"required"`
	Bus       BusConfig       `yaml:"bus"`
	Rail      RailConfig      `yaml:"rail"`
	Subway    SubwayConfig    `yaml:"subway"`
	Weather   WeatherConfig   `yaml:"weather"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	NATS      NATSConfig      `yaml:"nats"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	// MetricsAddr starts a separate metrics listener when set. /metrics is
	// always served on the main router.
	MetricsAddr string `yaml:"metricsAddr"`

	Secrets  Secrets        `yaml:"-"`
	Location *time.Location `yaml:"-"`
}

// Default returns a configuration for the Fanwood 113 bus, Penn Station and
// the 59 St-Lexington Av downtown platforms.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Timezone: "America/New_York",
		Bus: BusConfig{
			Stop:         "28883",
			Route:        "113",
			Direction:    "New York",
			LocationCode: "28883",
			Limit:        3,
		},
		Rail: RailConfig{
			NYCStation:         "NY",
			NewarkStation:      "NP",
			Limit:              3,
			DepartureVisionURL: "https://www.njtransit.com/dv-to/New%20York%20Penn%20Station",
		},
		Subway: SubwayConfig{
			FeedURL: "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-nqrw",
			Stops:   []string{"R15S", "R16S", "R17S"},
			Buffer:  5 * time.Minute,
			Limit:   3,
			Label:   "59th & Lex",
		},
		Weather: WeatherConfig{
			BaseURL:  "https://api.openweathermap.org",
			CacheTTL: 5 * time.Minute,
			Home:     Coordinates{Lat: 40.64101, Lon: -74.38390},
			Office:   Coordinates{Lat: 40.7581, Lon: -73.9700},
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
		},
		NATS: NATSConfig{
			Subject: "commute.notifications",
		},
		Telegram: TelegramConfig{
			BaseURL: "https://api.telegram.org",
		},
	}
}

// Load reads path over Default, validates the result and pulls secrets from
// the environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	secrets, err := LoadSecrets()
	if err != nil {
		return nil, err
	}
	cfg.Secrets = secrets

	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	cfg.MetricsAddr = firstNonEmpty(os.Getenv("METRICS_ADDR"), cfg.MetricsAddr)

	return &cfg, nil
}

// Validate checks struct tags on the whole tree.
func (c Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadSecrets reads the required credentials. MTA_API_KEY and the NATS URL
// are optional; the feed accepts anonymous requests.
func LoadSecrets() (Secrets, error) {
	var s Secrets
	required := []struct {
		key string
		dst *string
	}{
		{"NJT_USERNAME", &s.NJTUsername},
		{"NJT_PASSWORD", &s.NJTPassword},
		{"NJT_BUS_BASE_URL", &s.NJTBusBaseURL},
		{"NJT_RAIL_BASE_URL", &s.NJTRailBaseURL},
		{"WEATHER_KEY", &s.WeatherKey},
		{"TELEGRAM_TOKEN", &s.TelegramToken},
		{"TELEGRAM_CHAT_ID", &s.TelegramChatID},
	}
	for _, r := range required {
		v, err := FromEnvironment(r.key)
		if err != nil {
			return Secrets{}, err
		}
		*r.dst = v
	}

	key, err := FromEnvironment("MTA_API_KEY")
	var missing MissingEnvironmentKey
	if err != nil && !errors.As(err, &missing) {
		return Secrets{}, err
	}
	s.MTAAPIKey = key

	s.NJTBusBaseURL = strings.TrimRight(s.NJTBusBaseURL, "/")
	s.NJTRailBaseURL = strings.TrimRight(s.NJTRailBaseURL, "/")
	return s, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
