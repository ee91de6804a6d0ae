package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Chrome   ChromeConfig
	Recorder RecorderConfig
	Snapshot SnapshotConfig
	Storage  StorageConfig
	Logger   LoggerConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Mode         string
	ReadTimeout  int
	WriteTimeout int
	// PublicURL is the base the review hand-off link is built on.
	PublicURL string
}

type DatabaseConfig struct {
	// Driver is "memory", "sqlite" or "mysql".
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Charset  string
	Path     string
}

type JWTConfig struct {
	Secret     string
	ExpireTime int
	// Username is the operator name accepted at login.
	Username string
	// PasswordHash is the bcrypt hash of the operator password. Empty disables auth.
	PasswordHash string
	TicketTTL    time.Duration
}

type ChromeConfig struct {
	HeadlessMode bool
	ExecPath     string
	Device       string
	StartURL     string
}

type RecorderConfig struct {
	StorageKey       string
	AlertsHonorPause bool
	InjectTimeout    time.Duration
	QueueSize        int
}

type SnapshotConfig struct {
	Timeout   time.Duration
	PerSecond float64
	Burst     int
}

type StorageConfig struct {
	TTL             time.Duration
	JanitorSchedule string
}

type LoggerConfig struct {
	Level      string
	Format     string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

// envBindings keeps the flat environment names deployments already use.
var envBindings = map[string]string{
	"server.port":                 "SERVER_PORT",
	"server.host":                 "SERVER_HOST",
	"server.mode":                 "SERVER_MODE",
	"server.read_timeout":         "SERVER_READ_TIMEOUT",
	"server.write_timeout":        "SERVER_WRITE_TIMEOUT",
	"server.public_url":           "SERVER_PUBLIC_URL",
	"database.driver":             "DB_DRIVER",
	"database.host":               "DB_HOST",
	"database.port":               "DB_PORT",
	"database.username":           "DB_USERNAME",
	"database.password":           "DB_PASSWORD",
	"database.name":               "DB_NAME",
	"database.charset":            "DB_CHARSET",
	"database.path":               "DB_PATH",
	"jwt.secret":                  "JWT_SECRET",
	"jwt.expire_time":             "JWT_EXPIRE_TIME",
	"jwt.username":                "JWT_USERNAME",
	"jwt.password_hash":           "JWT_PASSWORD_HASH",
	"jwt.ticket_ttl":              "JWT_TICKET_TTL",
	"chrome.headless":             "CHROME_HEADLESS",
	"chrome.exec_path":            "CHROME_EXEC_PATH",
	"chrome.device":               "CHROME_DEVICE",
	"chrome.start_url":            "CHROME_START_URL",
	"recorder.storage_key":        "RECORDER_STORAGE_KEY",
	"recorder.alerts_honor_pause": "RECORDER_ALERTS_HONOR_PAUSE",
	"recorder.inject_timeout":     "RECORDER_INJECT_TIMEOUT",
	"recorder.queue_size":         "RECORDER_QUEUE_SIZE",
	"snapshot.timeout":            "SNAPSHOT_TIMEOUT",
	"snapshot.per_second":         "SNAPSHOT_PER_SECOND",
	"snapshot.burst":              "SNAPSHOT_BURST",
	"storage.ttl":                 "STORAGE_TTL",
	"storage.janitor_schedule":    "STORAGE_JANITOR_SCHEDULE",
	"log.level":                   "LOG_LEVEL",
	"log.format":                  "LOG_FORMAT",
	"log.file":                    "LOG_FILE",
	"log.max_size":                "LOG_MAX_SIZE",
	"log.max_backups":             "LOG_MAX_BACKUPS",
	"log.max_age":                 "LOG_MAX_AGE",
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.public_url", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "recorder")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.path", "file:recorder?mode=memory&cache=shared")

	v.SetDefault("jwt.secret", "step-recorder-secret-key")
	v.SetDefault("jwt.expire_time", 24*3600)
	v.SetDefault("jwt.username", "operator")
	v.SetDefault("jwt.password_hash", "")
	v.SetDefault("jwt.ticket_ttl", "10m")

	v.SetDefault("chrome.headless", false)
	v.SetDefault("chrome.exec_path", "")
	v.SetDefault("chrome.device", "")
	v.SetDefault("chrome.start_url", "about:blank")

	v.SetDefault("recorder.storage_key", "recordedSteps")
	v.SetDefault("recorder.alerts_honor_pause", false)
	v.SetDefault("recorder.inject_timeout", "10s")
	v.SetDefault("recorder.queue_size", 256)

	v.SetDefault("snapshot.timeout", "5s")
	v.SetDefault("snapshot.per_second", 4.0)
	v.SetDefault("snapshot.burst", 4)

	v.SetDefault("storage.ttl", "1h")
	v.SetDefault("storage.janitor_schedule", "@every 5m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 7)
}

// LoadConfig reads defaults, then the optional file at path, then the environment.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:         v.GetString("server.port"),
			Host:         v.GetString("server.host"),
			Mode:         v.GetString("server.mode"),
			ReadTimeout:  v.GetInt("server.read_timeout"),
			WriteTimeout: v.GetInt("server.write_timeout"),
			PublicURL:    v.GetString("server.public_url"),
		},
		Database: DatabaseConfig{
			Driver:   v.GetString("database.driver"),
			Host:     v.GetString("database.host"),
			Port:     v.GetString("database.port"),
			Username: v.GetString("database.username"),
			Password: v.GetString("database.password"),
			Database: v.GetString("database.name"),
			Charset:  v.GetString("database.charset"),
			Path:     v.GetString("database.path"),
		},
		JWT: JWTConfig{
			Secret:       v.GetString("jwt.secret"),
			ExpireTime:   v.GetInt("jwt.expire_time"),
			Username:     v.GetString("jwt.username"),
			PasswordHash: v.GetString("jwt.password_hash"),
			TicketTTL:    v.GetDuration("jwt.ticket_ttl"),
		},
		Chrome: ChromeConfig{
			HeadlessMode: v.GetBool("chrome.headless"),
			ExecPath:     v.GetString("chrome.exec_path"),
			Device:       v.GetString("chrome.device"),
			StartURL:     v.GetString("chrome.start_url"),
		},
		Recorder: RecorderConfig{
			StorageKey:       v.GetString("recorder.storage_key"),
			AlertsHonorPause: v.GetBool("recorder.alerts_honor_pause"),
			InjectTimeout:    v.GetDuration("recorder.inject_timeout"),
			QueueSize:        v.GetInt("recorder.queue_size"),
		},
		Snapshot: SnapshotConfig{
			Timeout:   v.GetDuration("snapshot.timeout"),
			PerSecond: v.GetFloat64("snapshot.per_second"),
			Burst:     v.GetInt("snapshot.burst"),
		},
		Storage: StorageConfig{
			TTL:             v.GetDuration("storage.ttl"),
			JanitorSchedule: v.GetString("storage.janitor_schedule"),
		},
		Logger: LoggerConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			File:       v.GetString("log.file"),
			MaxSize:    v.GetInt("log.max_size"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAge:     v.GetInt("log.max_age"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Recorder.StorageKey == "" {
		return fmt.Errorf("recorder storage key must not be empty")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret must not be empty")
	}
	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.Charset,
	)
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// ReviewBaseURL is where the operator's browser reaches this server.
func (c *Config) ReviewBaseURL() string {
	if c.Server.PublicURL != "" {
		return c.Server.PublicURL
	}
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return "http://" + host + ":" + c.Server.Port
}
