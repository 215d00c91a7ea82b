package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers accepted by BOOKING_STORAGE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config captures the settings of the booking service.
type Config struct {
	HTTPPort    int
	LogLevel    string
	CORSOrigins []string
	Timezone    *time.Location

	StorageDriver    string
	SQLiteDSN        string
	PostgresDSN      string
	PostgresMaxConns int32

	SessionSecret     string
	SessionTTL        time.Duration
	SharedTokenSecret string
	SharedTokenTTL    time.Duration
	SharedLoginURL    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	MongoURI      string
	MongoDatabase string

	SyncRatePerMinute  int
	SyncBurst          int
	LoginRatePerMinute int
	LoginBurst         int
	SnapshotCacheTTL   time.Duration

	ReminderInterval      time.Duration
	ExpiryCheckInterval   time.Duration
	PurgeInterval         time.Duration
	SessionPruneInterval  time.Duration
	ReminderThreshold     time.Duration
	NotificationRetention time.Duration
}

// settings maps every environment variable to its dotted path in the YAML file.
var settings = map[string]string{
	"BOOKING_HTTP_PORT":              "http.port",
	"BOOKING_LOG_LEVEL":              "log.level",
	"BOOKING_CORS_ORIGINS":           "http.cors_origins",
	"BOOKING_TIMEZONE":               "timezone",
	"BOOKING_STORAGE_DRIVER":         "storage.driver",
	"BOOKING_SQLITE_DSN":             "storage.sqlite_dsn",
	"BOOKING_POSTGRES_DSN":           "storage.postgres_dsn",
	"BOOKING_POSTGRES_MAX_CONNS":     "storage.postgres_max_conns",
	"BOOKING_SESSION_SECRET":         "auth.session_secret",
	"BOOKING_SESSION_TTL":            "auth.session_ttl",
	"BOOKING_SHARED_TOKEN_SECRET":    "auth.shared_token_secret",
	"BOOKING_SHARED_TOKEN_TTL":       "auth.shared_token_ttl",
	"BOOKING_SHARED_LOGIN_URL":       "auth.shared_login_url",
	"BOOKING_REDIS_ADDR":             "redis.addr",
	"BOOKING_REDIS_PASSWORD":         "redis.password",
	"BOOKING_REDIS_DB":               "redis.db",
	"BOOKING_KAFKA_BROKERS":          "kafka.brokers",
	"BOOKING_KAFKA_TOPIC":            "kafka.topic",
	"BOOKING_KAFKA_GROUP_ID":         "kafka.group_id",
	"BOOKING_MONGO_URI":              "mongo.uri",
	"BOOKING_MONGO_DATABASE":         "mongo.database",
	"BOOKING_SYNC_RATE_PER_MINUTE":   "sync.rate_per_minute",
	"BOOKING_SYNC_BURST":             "sync.burst",
	"BOOKING_LOGIN_RATE_PER_MINUTE":  "auth.login_rate_per_minute",
	"BOOKING_LOGIN_BURST":            "auth.login_burst",
	"BOOKING_SNAPSHOT_CACHE_TTL":     "sync.cache_ttl",
	"BOOKING_REMINDER_INTERVAL":      "worker.reminder_interval",
	"BOOKING_EXPIRY_CHECK_INTERVAL":  "worker.expiry_check_interval",
	"BOOKING_PURGE_INTERVAL":         "worker.purge_interval",
	"BOOKING_SESSION_PRUNE_INTERVAL": "worker.session_prune_interval",
	"BOOKING_REMINDER_THRESHOLD":     "worker.reminder_threshold",
	"BOOKING_NOTIFICATION_RETENTION": "worker.notification_retention",
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("impossibile leggere il file %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from BOOKING_CONFIG_FILE (if set) and the
// process environment.
func Load() (Config, error) {
	return LoadFile(os.Getenv("BOOKING_CONFIG_FILE"))
}

// LoadFile applies the YAML file at path first and lets environment
// variables override it. Missing and invalid keys are aggregated.
func LoadFile(path string) (Config, error) {
	file, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) string {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
		return file[settings[key]]
	}

	cfg := Config{
		HTTPPort:              8080,
		LogLevel:              "info",
		Timezone:              time.UTC,
		StorageDriver:         DriverSQLite,
		SQLiteDSN:             "file:booking.db",
		SessionTTL:            24 * time.Hour,
		SharedTokenTTL:        30 * 24 * time.Hour,
		MongoDatabase:         "booking_manager",
		SyncRatePerMinute:     60,
		SyncBurst:             10,
		LoginRatePerMinute:    10,
		LoginBurst:            5,
		SnapshotCacheTTL:      30 * time.Second,
		ReminderInterval:      15 * time.Minute,
		ExpiryCheckInterval:   time.Hour,
		PurgeInterval:         24 * time.Hour,
		SessionPruneInterval:  time.Hour,
		ReminderThreshold:     2 * time.Hour,
		NotificationRetention: 30 * 24 * time.Hour,
	}

	p := parser{lookup: lookup}

	p.positiveInt("BOOKING_HTTP_PORT", &cfg.HTTPPort)
	p.str("BOOKING_LOG_LEVEL", &cfg.LogLevel)
	p.list("BOOKING_CORS_ORIGINS", &cfg.CORSOrigins)
	if name := lookup("BOOKING_TIMEZONE"); name != "" {
		if loc, err := time.LoadLocation(name); err != nil {
			p.invalid = append(p.invalid, "BOOKING_TIMEZONE")
		} else {
			cfg.Timezone = loc
		}
	}

	p.str("BOOKING_STORAGE_DRIVER", &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	switch cfg.StorageDriver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		p.invalid = append(p.invalid, "BOOKING_STORAGE_DRIVER")
	}
	p.str("BOOKING_SQLITE_DSN", &cfg.SQLiteDSN)
	p.str("BOOKING_POSTGRES_DSN", &cfg.PostgresDSN)
	if cfg.StorageDriver == DriverPostgres && cfg.PostgresDSN == "" {
		p.missing = append(p.missing, "BOOKING_POSTGRES_DSN")
	}
	var maxConns int
	p.nonNegativeInt("BOOKING_POSTGRES_MAX_CONNS", &maxConns)
	cfg.PostgresMaxConns = int32(maxConns)

	p.required("BOOKING_SESSION_SECRET", &cfg.SessionSecret)
	p.duration("BOOKING_SESSION_TTL", &cfg.SessionTTL)
	cfg.SharedTokenSecret = cfg.SessionSecret
	p.str("BOOKING_SHARED_TOKEN_SECRET", &cfg.SharedTokenSecret)
	p.duration("BOOKING_SHARED_TOKEN_TTL", &cfg.SharedTokenTTL)
	p.str("BOOKING_SHARED_LOGIN_URL", &cfg.SharedLoginURL)

	p.str("BOOKING_REDIS_ADDR", &cfg.RedisAddr)
	p.str("BOOKING_REDIS_PASSWORD", &cfg.RedisPassword)
	p.nonNegativeInt("BOOKING_REDIS_DB", &cfg.RedisDB)

	p.list("BOOKING_KAFKA_BROKERS", &cfg.KafkaBrokers)
	p.str("BOOKING_KAFKA_TOPIC", &cfg.KafkaTopic)
	p.str("BOOKING_KAFKA_GROUP_ID", &cfg.KafkaGroupID)

	p.str("BOOKING_MONGO_URI", &cfg.MongoURI)
	p.str("BOOKING_MONGO_DATABASE", &cfg.MongoDatabase)

	p.nonNegativeInt("BOOKING_SYNC_RATE_PER_MINUTE", &cfg.SyncRatePerMinute)
	p.positiveInt("BOOKING_SYNC_BURST", &cfg.SyncBurst)
	p.nonNegativeInt("BOOKING_LOGIN_RATE_PER_MINUTE", &cfg.LoginRatePerMinute)
	p.positiveInt("BOOKING_LOGIN_BURST", &cfg.LoginBurst)
	p.duration("BOOKING_SNAPSHOT_CACHE_TTL", &cfg.SnapshotCacheTTL)

	p.duration("BOOKING_REMINDER_INTERVAL", &cfg.ReminderInterval)
	p.duration("BOOKING_EXPIRY_CHECK_INTERVAL", &cfg.ExpiryCheckInterval)
	p.duration("BOOKING_PURGE_INTERVAL", &cfg.PurgeInterval)
	p.duration("BOOKING_SESSION_PRUNE_INTERVAL", &cfg.SessionPruneInterval)
	p.duration("BOOKING_REMINDER_THRESHOLD", &cfg.ReminderThreshold)
	p.duration("BOOKING_NOTIFICATION_RETENTION", &cfg.NotificationRetention)

	if len(p.missing) > 0 {
		return Config{}, fmt.Errorf("variabili di ambiente obbligatorie mancanti: %s", strings.Join(p.missing, ", "))
	}
	if len(p.invalid) > 0 {
		return Config{}, fmt.Errorf("valori di configurazione non validi: %s", strings.Join(p.invalid, ", "))
	}
	return cfg, nil
}

type parser struct {
	lookup  func(string) string
	missing []string
	invalid []string
}

func (p *parser) str(key string, dst *string) {
	if value := p.lookup(key); value != "" {
		*dst = value
	}
}

func (p *parser) required(key string, dst *string) {
	value := p.lookup(key)
	if value == "" {
		p.missing = append(p.missing, key)
		return
	}
	*dst = value
}

func (p *parser) list(key string, dst *[]string) {
	value := p.lookup(key)
	if value == "" {
		return
	}
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func (p *parser) positiveInt(key string, dst *int) {
	p.integer(key, dst, 1)
}

func (p *parser) nonNegativeInt(key string, dst *int) {
	p.integer(key, dst, 0)
}

func (p *parser) integer(key string, dst *int, floor int) {
	value := p.lookup(key)
	if value == "" {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < floor {
		p.invalid = append(p.invalid, key)
		return
	}
	*dst = n
}

func (p *parser) duration(key string, dst *time.Duration) {
	value := p.lookup(key)
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		p.invalid = append(p.invalid, key)
		return
	}
	*dst = d
}

// readFile flattens the YAML document at path into dotted keys. Lists are
// joined with commas so they parse like their environment counterparts.
func readFile(path string) (map[string]string, error) {
	flat := make(map[string]string)
	if strings.TrimSpace(path) == "" {
		return flat, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("impossibile leggere il file di configurazione: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("file di configurazione non valido: %w", err)
	}
	flatten("", doc, flat)
	return flat, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for key, value := range node {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flatten(path, v, out)
		case []any:
			items := make([]string, 0, len(v))
			for _, item := range v {
				items = append(items, fmt.Sprint(item))
			}
			out[path] = strings.Join(items, ",")
		case nil:
		default:
			out[path] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
}
