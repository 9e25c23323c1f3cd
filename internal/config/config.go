package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        int
	LogLevel    string
	DataDir     string
	MappingFile string
	DatabaseURL string
	APIToken    string
	CORSOrigins []string
	HTTPTimeout time.Duration

	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	TaxonomyFile    string

	HubSpotAPIKey       string
	HubSpotBaseURL      string
	HubSpotPainProperty string
	AgentName           string

	ApolloAPIKey  string
	ApolloBaseURL string

	ResendAPIKey  string
	ResendBaseURL string
	FromEmail     string
	MeetingLinkES string
	MeetingLinkEN string

	NatsURL   string
	NatsToken string
}

func Load() Config {
	dataDir := envStr("DATA_DIR", "data")
	return Config{
		Port:        envInt("PORT", 5003),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		DataDir:     dataDir,
		MappingFile: envStr("MAPPING_FILE", filepath.Join(dataDir, "conversation_mappings.json")),
		DatabaseURL: envStr("DATABASE_URL", ""),
		APIToken:    envStr("API_TOKEN", ""),
		CORSOrigins: envList("CORS_ORIGINS", []string{"*"}),
		HTTPTimeout: envDuration("HTTP_TIMEOUT", 30*time.Second),

		OpenAIAPIKey:    envStr("OPENAI_API_KEY", ""),
		OpenAIModel:     envStr("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		TaxonomyFile:    envStr("TAXONOMY_FILE", ""),

		HubSpotAPIKey:       envStr("HUBSPOT_API_KEY", ""),
		HubSpotBaseURL:      envStr("HUBSPOT_BASE_URL", ""),
		HubSpotPainProperty: envStr("HUBSPOT_PAIN_PROPERTY", "dolores_de_venta"),
		AgentName:           envStr("AGENT_NAME", "Wayne (SDR Triario)"),

		ApolloAPIKey:  envStr("APOLLO_API_KEY", ""),
		ApolloBaseURL: envStr("APOLLO_BASE_URL", ""),

		ResendAPIKey:  envStr("RESEND_API_KEY", ""),
		ResendBaseURL: envStr("RESEND_BASE_URL", ""),
		FromEmail:     envStr("FROM_EMAIL", ""),
		MeetingLinkES: envStr("MEETING_LINK_ES", ""),
		MeetingLinkEN: envStr("MEETING_LINK_EN", ""),

		NatsURL:   envStr("NATS_URL", ""),
		NatsToken: envStr("NATS_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration accepts Go durations ("45s") or plain seconds ("45").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
