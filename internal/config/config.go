package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/hylla/draip/internal/domain"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Engine   EngineConfig   `toml:"engine"`
	Places   PlacesConfig   `toml:"places"`
	Trip     TripConfig     `toml:"trip"`
	Profile  ProfileConfig  `toml:"profile"`
	Advisor  AdvisorConfig  `toml:"advisor"`
	Server   ServerConfig   `toml:"server"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type EngineConfig struct {
	WeatherRefresh       Duration `toml:"weather_refresh"`
	EvaluationInterval   Duration `toml:"evaluation_interval"`
	FirstEvaluationDelay Duration `toml:"first_evaluation_delay"`
	AdvisorTimeout       Duration `toml:"advisor_timeout"`
	TopK                 int      `toml:"top_k"`
	FatigueThreshold     float64  `toml:"fatigue_threshold"`
	LateThresholdHours   int      `toml:"late_threshold_hours"`
	CrowdThreshold       float64  `toml:"crowd_threshold"`
}

type PlacesConfig struct {
	RadiusM  int      `toml:"radius_m"`
	CacheTTL Duration `toml:"cache_ttl"`
}

// TripConfig selects the trip fixture. City, Lat, and Lon override the
// fixture's location when City is set.
type TripConfig struct {
	Fixture string  `toml:"fixture"`
	City    string  `toml:"city"`
	Lat     float64 `toml:"lat"`
	Lon     float64 `toml:"lon"`
}

type ProfileConfig struct {
	TravelStyles   []string          `toml:"travel_styles"`
	BudgetPerDay   float64           `toml:"budget_per_day"`
	TransportModes []string          `toml:"transport_modes"`
	MaxWalkingKm   float64           `toml:"max_walking_km"`
	MaxDrivingKm   float64           `toml:"max_driving_km"`
	Preferences    PreferencesConfig `toml:"preferences"`
}

type PreferencesConfig struct {
	Museums   float64 `toml:"museums"`
	Food      float64 `toml:"food"`
	Nature    float64 `toml:"nature"`
	Shopping  float64 `toml:"shopping"`
	Nightlife float64 `toml:"nightlife"`
}

// AdvisorConfig configures the optional OpenAI-compatible plan advisor. The
// API key is read from the environment variable named by APIKeyEnv.
type AdvisorConfig struct {
	Enabled   bool     `toml:"enabled"`
	BaseURL   string   `toml:"base_url"`
	Model     string   `toml:"model"`
	APIKeyEnv string   `toml:"api_key_env"`
	Timeout   Duration `toml:"timeout"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

// Duration is a time.Duration written as a Go duration string ("5m").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func Default(dbPath string) Config {
	profile := domain.DefaultProfile()
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".draip/log",
			},
		},
		Engine: EngineConfig{
			WeatherRefresh:       Duration(5 * time.Minute),
			EvaluationInterval:   Duration(3 * time.Minute),
			FirstEvaluationDelay: Duration(time.Minute),
			AdvisorTimeout:       Duration(20 * time.Second),
			TopK:                 15,
			FatigueThreshold:     70,
			LateThresholdHours:   2,
			CrowdThreshold:       0.85,
		},
		Places: PlacesConfig{
			RadiusM:  3000,
			CacheTTL: Duration(30 * time.Minute),
		},
		Profile: profileConfigFrom(profile),
		Advisor: AdvisorConfig{
			Enabled:   false,
			BaseURL:   "https://api.openai.com",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
			Timeout:   Duration(20 * time.Second),
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
	}
}

func profileConfigFrom(p domain.UserProfile) ProfileConfig {
	out := ProfileConfig{
		BudgetPerDay: p.BudgetPerDay,
		MaxWalkingKm: p.MaxWalkingKm,
		MaxDrivingKm: p.MaxDrivingKm,
		Preferences: PreferencesConfig{
			Museums:   p.Preferences.Museums,
			Food:      p.Preferences.Food,
			Nature:    p.Preferences.Nature,
			Shopping:  p.Preferences.Shopping,
			Nightlife: p.Preferences.Nightlife,
		},
	}
	for _, s := range p.TravelStyles {
		out.TravelStyles = append(out.TravelStyles, string(s))
	}
	for _, m := range p.TransportModes {
		out.TransportModes = append(out.TransportModes, string(m))
	}
	return out
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	for name, d := range map[string]Duration{
		"engine.weather_refresh":        c.Engine.WeatherRefresh,
		"engine.evaluation_interval":    c.Engine.EvaluationInterval,
		"engine.first_evaluation_delay": c.Engine.FirstEvaluationDelay,
		"engine.advisor_timeout":        c.Engine.AdvisorTimeout,
		"places.cache_ttl":              c.Places.CacheTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if c.Engine.TopK <= 0 {
		return errors.New("engine.top_k must be > 0")
	}
	if c.Engine.FatigueThreshold <= 0 || c.Engine.FatigueThreshold > 100 {
		return fmt.Errorf("engine.fatigue_threshold must be within (0,100]: %v", c.Engine.FatigueThreshold)
	}
	if c.Engine.LateThresholdHours <= 0 {
		return errors.New("engine.late_threshold_hours must be > 0")
	}
	if c.Engine.CrowdThreshold <= 0 || c.Engine.CrowdThreshold > 1 {
		return fmt.Errorf("engine.crowd_threshold must be within (0,1]: %v", c.Engine.CrowdThreshold)
	}

	if c.Places.RadiusM <= 0 {
		return errors.New("places.radius_m must be > 0")
	}

	if strings.TrimSpace(c.Trip.City) != "" && (math.Abs(c.Trip.Lat) > 90 || math.Abs(c.Trip.Lon) > 180) {
		return fmt.Errorf("trip location %v,%v is out of range", c.Trip.Lat, c.Trip.Lon)
	}

	if _, err := c.UserProfile(); err != nil {
		return fmt.Errorf("profile: %w", err)
	}

	if c.Advisor.Enabled {
		if strings.TrimSpace(c.Advisor.BaseURL) == "" {
			return errors.New("advisor.base_url is required when the advisor is enabled")
		}
		if strings.TrimSpace(c.Advisor.Model) == "" {
			return errors.New("advisor.model is required when the advisor is enabled")
		}
		if c.Advisor.Timeout <= 0 {
			return errors.New("advisor.timeout must be > 0")
		}
	}

	if strings.Trim(strings.TrimSpace(c.Server.APIEndpoint), "/") == strings.Trim(strings.TrimSpace(c.Server.MCPEndpoint), "/") &&
		strings.TrimSpace(c.Server.APIEndpoint) != "" {
		return errors.New("server.api_endpoint and server.mcp_endpoint must differ")
	}

	return nil
}

// UserProfile converts the [profile] section into a validated domain profile.
func (c Config) UserProfile() (domain.UserProfile, error) {
	p := domain.UserProfile{
		BudgetPerDay: c.Profile.BudgetPerDay,
		MaxWalkingKm: c.Profile.MaxWalkingKm,
		MaxDrivingKm: c.Profile.MaxDrivingKm,
		Preferences: domain.Preferences{
			Museums:   c.Profile.Preferences.Museums,
			Food:      c.Profile.Preferences.Food,
			Nature:    c.Profile.Preferences.Nature,
			Shopping:  c.Profile.Preferences.Shopping,
			Nightlife: c.Profile.Preferences.Nightlife,
		},
	}
	for _, s := range c.Profile.TravelStyles {
		p.TravelStyles = append(p.TravelStyles, domain.TravelStyle(s))
	}
	for _, m := range c.Profile.TransportModes {
		p.TransportModes = append(p.TransportModes, domain.TransportMode(m))
	}
	return domain.NewUserProfile(p)
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
