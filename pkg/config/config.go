package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Achievement AchievementConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Export      ExportConfig
	Tasks       TasksConfig
	Groups      GroupsConfig
	Mail        MailConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// AchievementConfig points at the document store holding score/playback
// collections written by the nightly batch.
type AchievementConfig struct {
	MongoURI           string
	Database           string
	ScoreCollection    string
	PlaybackCollection string
	RecordLimit        int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ExportConfig governs CSV/TSV rendering. CSVEncoding is the legacy code
// page customers' spreadsheet tooling expects; Timezone is the display
// timezone for date cells.
type ExportConfig struct {
	CSVEncoding string
	Timezone    string
}

// TasksConfig tunes the batch operation worker pool.
type TasksConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// GroupsConfig controls visibility-scope caching.
type GroupsConfig struct {
	VisibilityCacheTTL time.Duration
}

// MailConfig configures reminder email delivery. An empty SendGridKey
// suppresses delivery and logs instead.
type MailConfig struct {
	SendGridKey string
	FromName    string
	FromEmail   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Achievement = AchievementConfig{
		MongoURI:           v.GetString("ACHIEVEMENT_MONGO_URI"),
		Database:           v.GetString("ACHIEVEMENT_MONGO_DB"),
		ScoreCollection:    v.GetString("ACHIEVEMENT_SCORE_COLLECTION"),
		PlaybackCollection: v.GetString("ACHIEVEMENT_PLAYBACK_COLLECTION"),
		RecordLimit:        v.GetInt("ACHIEVEMENT_RECORD_LIMIT"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Export = ExportConfig{
		CSVEncoding: v.GetString("EXPORT_CSV_ENCODING"),
		Timezone:    v.GetString("EXPORT_TIMEZONE"),
	}

	cfg.Tasks = TasksConfig{
		Workers:    v.GetInt("TASK_WORKERS"),
		BufferSize: v.GetInt("TASK_BUFFER_SIZE"),
		MaxRetries: v.GetInt("TASK_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("TASK_RETRY_DELAY"), time.Second),
	}

	cfg.Groups = GroupsConfig{
		VisibilityCacheTTL: parseDuration(v.GetString("GROUP_VISIBILITY_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Mail = MailConfig{
		SendGridKey: v.GetString("SENDGRID_API_KEY"),
		FromName:    v.GetString("MAIL_FROM_NAME"),
		FromEmail:   v.GetString("MAIL_FROM_EMAIL"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "biz_ops")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ACHIEVEMENT_MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("ACHIEVEMENT_MONGO_DB", "biz_achievement")
	v.SetDefault("ACHIEVEMENT_SCORE_COLLECTION", "score")
	v.SetDefault("ACHIEVEMENT_PLAYBACK_COLLECTION", "playback")
	v.SetDefault("ACHIEVEMENT_RECORD_LIMIT", 100)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("EXPORT_CSV_ENCODING", "cp932")
	v.SetDefault("EXPORT_TIMEZONE", "Asia/Tokyo")

	v.SetDefault("TASK_WORKERS", 1)
	v.SetDefault("TASK_BUFFER_SIZE", 8)
	v.SetDefault("TASK_MAX_RETRIES", 1)
	v.SetDefault("TASK_RETRY_DELAY", "1s")

	v.SetDefault("GROUP_VISIBILITY_CACHE_TTL", "5m")

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "Learning Support")
	v.SetDefault("MAIL_FROM_EMAIL", "noreply@example.com")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
