package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Режимы проверки токена на рукопожатии.
const (
	AuthModeJWT    = "jwt"
	AuthModeMoodle = "moodle"
)

// Config содержит параметры запуска сервиса очередей.
type Config struct {
	HTTPAddr    string
	CORSOrigins []string

	DB     DBConfig
	TestDB DBConfig

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	SnapshotCacheTTL time.Duration

	AuthMode          string
	JWTAccessSecret   []byte
	MoodleSiteInfoURL string

	// QueueIdleTimeout: через сколько очередь без наблюдателей выгружается из памяти.
	QueueIdleTimeout time.Duration
	// EvictionSpec: cron-расписание (с секундами) проверки простаивающих очередей.
	EvictionSpec string

	SessionSendBuffer int
	WSReadLimit       int64
	WSPongWait        time.Duration
	WSWriteWait       time.Duration
}

// DBConfig описывает подключение к Postgres.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// DSN собирает строку подключения для gorm postgres-драйвера.
func (d DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// Empty сообщает, что хост базы не задан.
func (d DBConfig) Empty() bool {
	return d.Host == ""
}

// Default возвращает конфигурацию со значениями по умолчанию.
func Default() Config {
	return Config{
		HTTPAddr:          ":8080",
		CORSOrigins:       []string{"*"},
		RedisAddr:         "localhost:6379",
		SnapshotCacheTTL:  6 * time.Hour,
		AuthMode:          AuthModeJWT,
		QueueIdleTimeout:  15 * time.Minute,
		EvictionSpec:      "0 */1 * * * *",
		SessionSendBuffer: 64,
		WSReadLimit:       512,
		WSPongWait:        60 * time.Second,
		WSWriteWait:       10 * time.Second,
	}
}

// LoadDotEnv подключает .env, если окружение не выставлено заранее (ENV_CHEK).
func LoadDotEnv(paths ...string) error {
	if os.Getenv("ENV_CHEK") != "" {
		return nil
	}
	return godotenv.Load(paths...)
}

// FromEnv читает конфигурацию из переменных окружения и валидирует её.
func FromEnv() (Config, error) {
	c := Default()

	c.HTTPAddr = str("HTTP_ADDR", c.HTTPAddr)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = strings.Split(origins, ",")
	}

	c.DB = dbFromEnv("DB_")
	c.TestDB = TestDBFromEnv()

	c.RedisAddr = str("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = os.Getenv("REDIS_PASSWORD")
	c.AuthMode = str("AUTH_MODE", c.AuthMode)
	c.JWTAccessSecret = []byte(os.Getenv("JWT_ACCESS_SECRET"))
	c.MoodleSiteInfoURL = os.Getenv("MOODLE_SITE_INFO_URL")
	c.EvictionSpec = str("EVICTION_SPEC", c.EvictionSpec)

	var err error
	if c.RedisDB, err = integer("REDIS_DB", c.RedisDB); err != nil {
		return c, err
	}
	if c.SessionSendBuffer, err = integer("SESSION_SEND_BUFFER", c.SessionSendBuffer); err != nil {
		return c, err
	}
	readLimit, err := integer("WS_READ_LIMIT", int(c.WSReadLimit))
	if err != nil {
		return c, err
	}
	c.WSReadLimit = int64(readLimit)

	if c.SnapshotCacheTTL, err = duration("SNAPSHOT_CACHE_TTL", c.SnapshotCacheTTL); err != nil {
		return c, err
	}
	if c.QueueIdleTimeout, err = duration("QUEUE_IDLE_TIMEOUT", c.QueueIdleTimeout); err != nil {
		return c, err
	}
	if c.WSPongWait, err = duration("WS_PONG_WAIT", c.WSPongWait); err != nil {
		return c, err
	}
	if c.WSWriteWait, err = duration("WS_WRITE_WAIT", c.WSWriteWait); err != nil {
		return c, err
	}

	return c, c.Validate()
}

// Validate подставляет значения по умолчанию вместо нулевых и проверяет согласованность.
func (c *Config) Validate() error {
	defaults := Default()

	if c.HTTPAddr == "" {
		c.HTTPAddr = defaults.HTTPAddr
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = defaults.CORSOrigins
	}
	if c.SnapshotCacheTTL <= 0 {
		c.SnapshotCacheTTL = defaults.SnapshotCacheTTL
	}
	if c.QueueIdleTimeout <= 0 {
		c.QueueIdleTimeout = defaults.QueueIdleTimeout
	}
	if c.EvictionSpec == "" {
		c.EvictionSpec = defaults.EvictionSpec
	}
	if c.SessionSendBuffer <= 0 {
		c.SessionSendBuffer = defaults.SessionSendBuffer
	}
	if c.WSReadLimit <= 0 {
		c.WSReadLimit = defaults.WSReadLimit
	}
	if c.WSPongWait <= 0 {
		c.WSPongWait = defaults.WSPongWait
	}
	if c.WSWriteWait <= 0 {
		c.WSWriteWait = defaults.WSWriteWait
	}

	switch c.AuthMode {
	case AuthModeJWT:
		if len(c.JWTAccessSecret) == 0 {
			return fmt.Errorf("config: JWT_ACCESS_SECRET is required for auth mode %q", c.AuthMode)
		}
	case AuthModeMoodle:
	default:
		return fmt.Errorf("config: unknown auth mode %q", c.AuthMode)
	}

	if c.WSWriteWait >= c.WSPongWait {
		return fmt.Errorf("config: ws write wait (%v) must be shorter than pong wait (%v)", c.WSWriteWait, c.WSPongWait)
	}
	return nil
}

// PingPeriod: интервал ping-сообщений, чуть меньше ожидания pong.
func (c Config) PingPeriod() time.Duration {
	return c.WSPongWait * 9 / 10
}

// TestDBFromEnv читает параметры тестовой базы (TEST_DB_*). Интеграционные
// тесты пропускаются, если TEST_DB_HOST не задан.
func TestDBFromEnv() DBConfig {
	return dbFromEnv("TEST_DB_")
}

func dbFromEnv(prefix string) DBConfig {
	return DBConfig{
		Host:     os.Getenv(prefix + "HOST"),
		Port:     os.Getenv(prefix + "PORT"),
		User:     os.Getenv(prefix + "USER"),
		Password: os.Getenv(prefix + "PASSWORD"),
		Name:     os.Getenv(prefix + "NAME"),
	}
}

func str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func integer(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
