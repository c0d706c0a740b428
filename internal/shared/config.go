package shared

import (
	"bytes"
	"crypto/rand"
	_ "embed"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Matching    MatchingConfig    `toml:"matching"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// SpotifyConfig contains Spotify API credentials and the tokens saved after authorization.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token,omitempty"`
	RefreshToken string    `toml:"refresh_token,omitempty"`
	TokenType    string    `toml:"token_type,omitempty"`
	Expiry       time.Time `toml:"expiry,omitempty"`
}

// Map returns the credentials in the form expected by services.NewSpotifyService.
func (c SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"redirect_uri":  c.RedirectURI,
		"access_token":  c.AccessToken,
		"refresh_token": c.RefreshToken,
	}
}

// Token rebuilds the saved [oauth2.Token], or nil when no access token was saved.
func (c SpotifyConfig) Token() *oauth2.Token {
	if c.AccessToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

// Update copies token into the config. A refresh that omits the refresh token keeps the old one.
func (c *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}

	c.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.RefreshToken = token.RefreshToken
	}
	c.TokenType = token.TokenType
	c.Expiry = token.Expiry
	return nil
}

// YouTubeConfig contains YouTube Music API credentials.
type YouTubeConfig struct {
	APIKey      string `toml:"api_key"`
	ProxyURL    string `toml:"proxy_url"`
	HeadersPath string `toml:"headers_path"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// MatchingConfig tunes the matching engine.
//
// Direction overrides are keyed by destination platform: [matching.spotify] applies when
// matching YouTube videos into Spotify tracks. Zero values keep the built-in defaults.
type MatchingConfig struct {
	CacheSize      int             `toml:"cache_size"`
	TimeoutSeconds int             `toml:"timeout_seconds"`
	Spotify        DirectionConfig `toml:"spotify"`
	YouTube        DirectionConfig `toml:"youtube"`
}

// DirectionConfig overrides one direction's thresholds, weights and timings.
type DirectionConfig struct {
	MinTitle       float64 `toml:"min_title"`
	Accept         float64 `toml:"accept"`
	EarlyExit      float64 `toml:"early_exit"`
	TitleWeight    float64 `toml:"title_weight"`
	ArtistWeight   float64 `toml:"artist_weight"`
	DurationWeight float64 `toml:"duration_weight"`

	QueryDelayMS       int `toml:"query_delay_ms"`
	BackoffMS          int `toml:"backoff_ms"`
	RateLimitBackoffMS int `toml:"rate_limit_backoff_ms"`
	MaxQueries         int `toml:"max_queries"`
}

// For returns the overrides for a destination platform.
func (m MatchingConfig) For(destination string) DirectionConfig {
	switch destination {
	case "spotify":
		return m.Spotify
	case "youtube":
		return m.YouTube
	default:
		return DirectionConfig{}
	}
}

// Timeout is the overall deadline of one conversion, zero meaning none.
func (m MatchingConfig) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return &config, nil
}

// SaveConfig writes config to path, replacing the file.
//
// The file holds OAuth tokens, so it is only readable by the owner.
func SaveConfig(path string, config *Config) error {
	if config == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateState returns a random URL-safe OAuth state value.
func GenerateState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
