package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds environment driven configuration values.
// It is built once at boot and treated as read-only afterwards.
type AppConfig struct {
	AppPort        string
	AllowedOrigins []string
	// Gateway behaviour
	FormURL       string
	PublicBaseURL string
	GateStart     time.Time
	GateValidDays int
	DisabledHTML  string
	// Artifacts
	LogoPath          string
	QRPath            string
	PDFPath           string
	QRForceRegenerate bool
	// Storage: "sqlite" (embedded file) or "mysql" (networked)
	DBDriver    string
	DBPath      string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis report cache; disabled when RedisHost is empty
	RedisHost      string
	RedisPort      int
	RedisDB        int
	RedisPassword  string
	ReportCacheTTL time.Duration
	// Gin framework configuration
	GinMode string
	GinPath string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// QRTargetURL is the URL encoded into the QR artifact.
func (c AppConfig) QRTargetURL() string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/formulario"
}

const defaultDisabledHTML = `<h1>⛔ QR deshabilitado</h1>
<p>Mantenimiento realizado.</p>`

// Load reads the application configuration. main calls it once and passes the result on.
// Precedence: defaults -> config/config.json -> environment variables.
func Load() (AppConfig, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return AppConfig{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := bindEnv(v); err != nil {
		return AppConfig{}, err
	}

	c, err := fromViper(v)
	if err != nil {
		return AppConfig{}, err
	}
	if err := c.Validate(); err != nil {
		return AppConfig{}, err
	}
	return c, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "5000")
	v.SetDefault("app.allowed_origins", []string{"*"})

	v.SetDefault("gate.form_url", "https://forms.gle/YPTJc1tGF3ZJ1gNK9")
	v.SetDefault("gate.public_base_url", "http://127.0.0.1:5000")
	v.SetDefault("gate.start", "2026-02-17")
	v.SetDefault("gate.valid_days", 7)
	v.SetDefault("gate.disabled_html", defaultDisabledHTML)

	v.SetDefault("artifacts.logo_path", "logo.png")
	v.SetDefault("artifacts.qr_path", "qr_maquina.png")
	v.SetDefault("artifacts.pdf_path", "reporte_qr.pdf")
	v.SetDefault("artifacts.qr_force_regenerate", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "registros.db")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.name", "qrgate")

	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.report_cache_ttl", "1m")

	v.SetDefault("gin.mode", "release")
	v.SetDefault("gin.log_path", "logs/go_gin.log")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
}

// envKeys maps the flat environment variable names onto nested config keys.
var envKeys = map[string]string{
	"app.port":                      "APP_PORT",
	"app.allowed_origins":           "CORS_ALLOWED_ORIGINS",
	"gate.form_url":                 "FORM_URL",
	"gate.public_base_url":          "PUBLIC_BASE_URL",
	"gate.start":                    "GATE_START",
	"gate.valid_days":               "GATE_VALID_DAYS",
	"gate.disabled_html":            "DISABLED_HTML",
	"artifacts.logo_path":           "LOGO_PATH",
	"artifacts.qr_path":             "QR_PATH",
	"artifacts.pdf_path":            "PDF_PATH",
	"artifacts.qr_force_regenerate": "QR_FORCE_REGENERATE",
	"database.driver":               "DB_DRIVER",
	"database.path":                 "DB_PATH",
	"database.uri":                  "DATABASE_URI",
	"database.host":                 "DB_HOST",
	"database.port":                 "DB_PORT",
	"database.user":                 "DB_USER",
	"database.password":             "DB_PASSWORD",
	"database.name":                 "DB_NAME",
	"redis.host":                    "REDIS_HOST",
	"redis.port":                    "REDIS_PORT",
	"redis.db":                      "REDIS_DB",
	"redis.password":                "REDIS_PASSWORD",
	"redis.report_cache_ttl":        "REPORT_CACHE_TTL",
	"gin.mode":                      "GIN_MODE",
	"gin.log_path":                  "GIN_PATH",
	"log.level":                     "LOG_LEVEL",
	"log.path":                      "LOG_PATH",
	"log.max_size_mb":               "LOG_MAX_SIZE_MB",
	"log.max_backups":               "LOG_MAX_BACKUPS",
	"log.max_age_days":              "LOG_MAX_AGE_DAYS",
	"log.compress":                  "LOG_COMPRESS",
}

func bindEnv(v *viper.Viper) error {
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	return nil
}

func fromViper(v *viper.Viper) (AppConfig, error) {
	start, err := ParseGateStart(v.GetString("gate.start"))
	if err != nil {
		return AppConfig{}, err
	}
	validDays, err := readInt(v, "gate.valid_days")
	if err != nil {
		return AppConfig{}, err
	}
	redisPort, err := readInt(v, "redis.port")
	if err != nil {
		return AppConfig{}, err
	}
	redisDB, err := readInt(v, "redis.db")
	if err != nil {
		return AppConfig{}, err
	}

	c := AppConfig{
		AppPort:        v.GetString("app.port"),
		AllowedOrigins: readList(v, "app.allowed_origins"),

		FormURL:       strings.TrimSpace(v.GetString("gate.form_url")),
		PublicBaseURL: strings.TrimSpace(v.GetString("gate.public_base_url")),
		GateStart:     start,
		GateValidDays: validDays,
		DisabledHTML:  v.GetString("gate.disabled_html"),

		LogoPath:          v.GetString("artifacts.logo_path"),
		QRPath:            v.GetString("artifacts.qr_path"),
		PDFPath:           v.GetString("artifacts.pdf_path"),
		QRForceRegenerate: v.GetBool("artifacts.qr_force_regenerate"),

		DBDriver:    strings.ToLower(v.GetString("database.driver")),
		DBPath:      v.GetString("database.path"),
		DatabaseURI: v.GetString("database.uri"),
		DBHost:      v.GetString("database.host"),
		DBPort:      v.GetString("database.port"),
		DBUser:      v.GetString("database.user"),
		DBPassword:  v.GetString("database.password"),
		DBName:      v.GetString("database.name"),

		RedisHost:      v.GetString("redis.host"),
		RedisPort:      redisPort,
		RedisDB:        redisDB,
		RedisPassword:  v.GetString("redis.password"),
		ReportCacheTTL: v.GetDuration("redis.report_cache_ttl"),

		GinMode: v.GetString("gin.mode"),
		GinPath: v.GetString("gin.log_path"),

		LogLevel:      v.GetString("log.level"),
		LogPath:       v.GetString("log.path"),
		LogMaxSizeMB:  v.GetInt("log.max_size_mb"),
		LogMaxBackups: v.GetInt("log.max_backups"),
		LogMaxAgeDays: v.GetInt("log.max_age_days"),
		LogCompress:   v.GetBool("log.compress"),
	}
	return c, nil
}

// readInt parses an integer setting strictly; viper's GetInt maps garbage to 0.
// An unset key reads as 0.
func readInt(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKeys[key], raw, err)
	}
	return n, nil
}

// readList accepts either a JSON array or a comma separated env value.
func readList(v *viper.Viper, key string) []string {
	items := []string{}
	for _, raw := range v.GetStringSlice(key) {
		for _, item := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				items = append(items, trimmed)
			}
		}
	}
	return items
}

// ParseGateStart accepts RFC3339 or a bare date; bare dates are midnight UTC.
func ParseGateStart(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid gate start %q: want RFC3339 or YYYY-MM-DD", s)
}

// Validate rejects configurations the gateway cannot serve.
// A missing form URL or logo asset aborts startup instead of failing the first request.
func (c AppConfig) Validate() error {
	if c.FormURL == "" {
		return errors.New("FORM_URL must be set")
	}
	if c.PublicBaseURL == "" {
		return errors.New("PUBLIC_BASE_URL must be set")
	}
	if c.GateValidDays < 0 {
		return fmt.Errorf("GATE_VALID_DAYS must not be negative, got %d", c.GateValidDays)
	}
	if c.LogoPath == "" {
		return errors.New("LOGO_PATH must be set")
	}
	if _, err := os.Stat(c.LogoPath); err != nil {
		return fmt.Errorf("logo asset %s: %w", c.LogoPath, err)
	}
	if c.QRPath == "" || c.PDFPath == "" {
		return errors.New("QR_PATH and PDF_PATH must be set")
	}
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return errors.New("DB_PATH must be set for the sqlite driver")
		}
	case "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	return nil
}
