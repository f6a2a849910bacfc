// Package config loads the daemon's configuration from the environment.
// Grounded on the teacher's internal/app/config.go: the flat
// getEnv/getEnvInt64/parseCSV idiom is kept and extended with
// getEnvFloat64, getEnvDuration and getEnvBool for the orchestrator's and
// textbrain's additional knob types, and the single flat Config struct is
// replaced with the nested sections SPEC_FULL.md §6 names (auth, server,
// database, searcher, torrent_client, textbrain, orchestrator,
// external_catalogs).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// AuthConfig is required: Method must be "none" or "api_key".
type AuthConfig struct {
	Method string
	APIKey string
}

type ServerConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string // empty = allow all
}

// DatabaseConfig names the backing store. Path is carried from
// SPEC_FULL.md §6 verbatim as the configuration key name; this daemon
// interprets it as the MongoDB database name (see DESIGN.md's Open
// Question decisions) rather than a file path, since the persisted state
// layout is implemented over MongoDB collections, not an embedded file.
type DatabaseConfig struct {
	URI  string
	Path string
}

// IndexerConfig is one configured Torznab/Newznab backend, §11 DOMAIN STACK.
type IndexerConfig struct {
	Name              string
	Endpoint          string
	APIKey            string
	RequestsPerMinute int
}

type SearcherConfig struct {
	Backend  string
	Indexers []IndexerConfig
}

type TorrentClientConfig struct {
	Backend         string // "qbittorrent" or "librqbit" (embedded anacrolix)
	DownloadPath    string
	EnableDHT       bool
	ListenPort      int
	PersistencePath string
}

type LLMConfig struct {
	Provider string // anthropic | openai | ollama | custom
	Model    string
	APIKey   string
	APIBase  string
}

type TextBrainConfig struct {
	Mode                 string
	ConfidenceThreshold  float64
	MaxQueries           int
	AutoApproveThreshold float64
	LLM                  *LLMConfig
}

type OrchestratorConfig struct {
	Enabled                 bool
	AcquisitionPollInterval time.Duration
	DownloadPollInterval    time.Duration
	AutoApproveThreshold    float64
	MaxConcurrentDownloads  int
	StallTimeoutRound1      time.Duration
	StallTimeoutRound2      time.Duration
	StallTimeoutRound3      time.Duration
	MaxFailoverCandidates   int
}

type ExternalCatalogsConfig struct {
	MusicBrainzBaseURL string
	TMDBAPIKey         string
}

// CatalogCacheConfig tunes internal/catalog's stale-while-revalidate
// window; optional, ambient to the domain stack's caching concern.
type CatalogCacheConfig struct {
	RedisAddr       string
	CacheTTL        time.Duration
	StaleTTL        time.Duration
	CacheMaxEntries int
}

// MediaServerConfig configures the optional post-placement library
// refresh webhook (domain.MediaServerConfig), §11 DOMAIN STACK.
type MediaServerConfig struct {
	Enabled bool
	URL     string
	APIKey  string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Config is the daemon's fully resolved configuration.
type Config struct {
	Auth             AuthConfig
	Server           ServerConfig
	Database         DatabaseConfig
	Searcher         SearcherConfig
	TorrentClient    TorrentClientConfig
	TextBrain        TextBrainConfig
	Orchestrator     OrchestratorConfig
	ExternalCatalogs ExternalCatalogsConfig
	CatalogCache     CatalogCacheConfig
	MediaServer      MediaServerConfig
	Logging          LoggingConfig
}

// Load reads Config from the environment, applying SPEC_FULL.md §6's
// defaults (server.host=0.0.0.0, server.port=8080, database.path=
// quentin.db) and this daemon's own reasonable defaults for the rest.
func Load() Config {
	return Config{
		Auth: AuthConfig{
			Method: strings.ToLower(getEnv("QUENTIN_AUTH_METHOD", "none")),
			APIKey: getEnv("QUENTIN_AUTH_API_KEY", ""),
		},
		Server: ServerConfig{
			Host:               getEnv("QUENTIN_SERVER_HOST", "0.0.0.0"),
			Port:               int(getEnvInt64("QUENTIN_SERVER_PORT", 8080)),
			CORSAllowedOrigins: parseCSV(getEnv("QUENTIN_CORS_ALLOWED_ORIGINS", "")),
		},
		Database: DatabaseConfig{
			URI:  getEnv("QUENTIN_MONGO_URI", "mongodb://localhost:27017"),
			Path: getEnv("QUENTIN_DATABASE_PATH", "quentin.db"),
		},
		Searcher: SearcherConfig{
			Backend:  getEnv("QUENTIN_SEARCHER_BACKEND", "torznab"),
			Indexers: parseIndexers(getEnv("QUENTIN_SEARCHER_INDEXERS", "")),
		},
		TorrentClient: TorrentClientConfig{
			Backend:         getEnv("QUENTIN_TORRENT_CLIENT_BACKEND", "librqbit"),
			DownloadPath:    getEnv("QUENTIN_TORRENT_DOWNLOAD_PATH", "data/downloads"),
			EnableDHT:       getEnvBool("QUENTIN_TORRENT_ENABLE_DHT", true),
			ListenPort:      int(getEnvInt64("QUENTIN_TORRENT_LISTEN_PORT", 0)),
			PersistencePath: getEnv("QUENTIN_TORRENT_PERSISTENCE_PATH", ""),
		},
		TextBrain: TextBrainConfig{
			Mode:                 getEnv("QUENTIN_TEXTBRAIN_MODE", "dumb_only"),
			ConfidenceThreshold:  getEnvFloat64("QUENTIN_TEXTBRAIN_CONFIDENCE_THRESHOLD", 0.8),
			MaxQueries:           int(getEnvInt64("QUENTIN_TEXTBRAIN_MAX_QUERIES", 3)),
			AutoApproveThreshold: getEnvFloat64("QUENTIN_TEXTBRAIN_AUTO_APPROVE_THRESHOLD", 0.8),
			LLM:                  parseLLMConfig(),
		},
		Orchestrator: OrchestratorConfig{
			Enabled:                 getEnvBool("QUENTIN_ORCHESTRATOR_ENABLED", true),
			AcquisitionPollInterval: getEnvDuration("QUENTIN_ORCHESTRATOR_ACQUISITION_POLL_INTERVAL", 5*time.Second),
			DownloadPollInterval:    getEnvDuration("QUENTIN_ORCHESTRATOR_DOWNLOAD_POLL_INTERVAL", 10*time.Second),
			AutoApproveThreshold:    getEnvFloat64("QUENTIN_ORCHESTRATOR_AUTO_APPROVE_THRESHOLD", 0.8),
			MaxConcurrentDownloads:  int(getEnvInt64("QUENTIN_ORCHESTRATOR_MAX_CONCURRENT_DOWNLOADS", 3)),
			StallTimeoutRound1:      getEnvDuration("QUENTIN_ORCHESTRATOR_STALL_TIMEOUT_ROUND1", 10*time.Minute),
			StallTimeoutRound2:      getEnvDuration("QUENTIN_ORCHESTRATOR_STALL_TIMEOUT_ROUND2", 20*time.Minute),
			StallTimeoutRound3:      getEnvDuration("QUENTIN_ORCHESTRATOR_STALL_TIMEOUT_ROUND3", 40*time.Minute),
			MaxFailoverCandidates:   int(getEnvInt64("QUENTIN_ORCHESTRATOR_MAX_FAILOVER_CANDIDATES", 5)),
		},
		ExternalCatalogs: ExternalCatalogsConfig{
			MusicBrainzBaseURL: getEnv("QUENTIN_MUSICBRAINZ_BASE_URL", "https://musicbrainz.org/ws/2"),
			TMDBAPIKey:         getEnv("QUENTIN_TMDB_API_KEY", ""),
		},
		CatalogCache: CatalogCacheConfig{
			RedisAddr:       getEnv("QUENTIN_REDIS_ADDR", ""),
			CacheTTL:        getEnvDuration("QUENTIN_CATALOG_CACHE_TTL", 10*time.Minute),
			StaleTTL:        getEnvDuration("QUENTIN_CATALOG_STALE_TTL", 30*time.Minute),
			CacheMaxEntries: int(getEnvInt64("QUENTIN_CATALOG_CACHE_MAX_ENTRIES", 512)),
		},
		MediaServer: MediaServerConfig{
			Enabled: getEnvBool("QUENTIN_MEDIA_SERVER_ENABLED", false),
			URL:     getEnv("QUENTIN_MEDIA_SERVER_URL", ""),
			APIKey:  getEnv("QUENTIN_MEDIA_SERVER_API_KEY", ""),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(getEnv("QUENTIN_LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("QUENTIN_LOG_FORMAT", "text")),
		},
	}
}

// parseIndexers decodes QUENTIN_SEARCHER_INDEXERS, a semicolon-separated
// list of "name|endpoint|apikey|rpm" quadruplets. Malformed entries are
// skipped rather than failing startup, matching the teacher's
// tolerant-parse idiom (parseCSV drops empty fields silently too).
func parseIndexers(raw string) []IndexerConfig {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []IndexerConfig
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) < 2 {
			continue
		}
		cfg := IndexerConfig{Name: strings.TrimSpace(parts[0]), Endpoint: strings.TrimSpace(parts[1])}
		if len(parts) > 2 {
			cfg.APIKey = strings.TrimSpace(parts[2])
		}
		if len(parts) > 3 {
			if rpm, err := strconv.Atoi(strings.TrimSpace(parts[3])); err == nil {
				cfg.RequestsPerMinute = rpm
			}
		}
		out = append(out, cfg)
	}
	return out
}

func parseLLMConfig() *LLMConfig {
	provider := strings.TrimSpace(os.Getenv("QUENTIN_LLM_PROVIDER"))
	if provider == "" {
		return nil
	}
	return &LLMConfig{
		Provider: provider,
		Model:    getEnv("QUENTIN_LLM_MODEL", ""),
		APIKey:   getEnv("QUENTIN_LLM_API_KEY", ""),
		APIBase:  getEnv("QUENTIN_LLM_API_BASE", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat64(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
