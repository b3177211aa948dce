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

	"github.com/hzfeng/papertrade/internal/domain"
)

// Config holds all runtime configuration for the paper trading engine.
// Monetary amounts are stored in cents.
type Config struct {
	Port     int
	LogLevel string

	InitialCash   int64
	FeeRateBps    int64
	MinFee        int64
	MinOrderValue int64
	LotSize       int64

	MonitorInterval time.Duration
	QuoteTTL        time.Duration
	Feed            string
	FeedTimeout     time.Duration

	ExchangeTZ string
	Holidays   []string
	SettleAt   time.Duration

	DatabaseURL    string
	WebhookTimeout time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// fileConfig mirrors Config for the optional YAML file. Pointer fields
// distinguish "absent" from zero values; monetary amounts are yuan.
type fileConfig struct {
	Port            *int     `yaml:"port"`
	LogLevel        *string  `yaml:"log_level"`
	InitialCash     *float64 `yaml:"initial_cash"`
	FeeRateBps      *int64   `yaml:"fee_rate_bps"`
	MinFee          *float64 `yaml:"min_fee"`
	MinOrderValue   *float64 `yaml:"min_order_value"`
	LotSize         *int64   `yaml:"lot_size"`
	MonitorInterval *string  `yaml:"monitor_interval"`
	QuoteTTL        *string  `yaml:"quote_ttl"`
	Feed            *string  `yaml:"feed"`
	FeedTimeout     *string  `yaml:"feed_timeout"`
	ExchangeTZ      *string  `yaml:"exchange_tz"`
	Holidays        []string `yaml:"holidays"`
	SettleAt        *string  `yaml:"settle_at"`
	DatabaseURL     *string  `yaml:"database_url"`
	WebhookTimeout  *string  `yaml:"webhook_timeout"`
	ReadTimeout     *string  `yaml:"read_timeout"`
	WriteTimeout    *string  `yaml:"write_timeout"`
	IdleTimeout     *string  `yaml:"idle_timeout"`
	ShutdownTimeout *string  `yaml:"shutdown_timeout"`
}

// Load reads configuration, applies defaults, and validates values.
// Each value resolves the environment first, then the YAML file at
// path (when path is non-empty), then the built-in default. A .env
// file in the working directory is loaded into the environment first;
// a missing one is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var file fileConfig
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	port, err := getInt("PORT", file.Port, 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", file.LogLevel, "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	initialCash, err := getYuan("INITIAL_CASH", file.InitialCash, 100_000_000)
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_CASH: %w", err)
	}
	if initialCash <= 0 {
		return nil, fmt.Errorf("invalid INITIAL_CASH: must be positive")
	}

	feeRateBps, err := getInt64("FEE_RATE_BPS", file.FeeRateBps, 3)
	if err != nil {
		return nil, fmt.Errorf("invalid FEE_RATE_BPS: %w", err)
	}
	if feeRateBps < 0 {
		return nil, fmt.Errorf("invalid FEE_RATE_BPS: must not be negative")
	}

	minFee, err := getYuan("MIN_FEE", file.MinFee, 500)
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_FEE: %w", err)
	}
	if minFee < 0 {
		return nil, fmt.Errorf("invalid MIN_FEE: must not be negative")
	}

	minOrderValue, err := getYuan("MIN_ORDER_VALUE", file.MinOrderValue, 10_000)
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_ORDER_VALUE: %w", err)
	}
	if minOrderValue < 0 {
		return nil, fmt.Errorf("invalid MIN_ORDER_VALUE: must not be negative")
	}

	lotSize, err := getInt64("LOT_SIZE", file.LotSize, 100)
	if err != nil {
		return nil, fmt.Errorf("invalid LOT_SIZE: %w", err)
	}
	if lotSize <= 0 {
		return nil, fmt.Errorf("invalid LOT_SIZE: must be positive")
	}

	monitorInterval, err := getDuration("MONITOR_INTERVAL", file.MonitorInterval, 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid MONITOR_INTERVAL: %w", err)
	}
	if monitorInterval <= 0 {
		return nil, fmt.Errorf("invalid MONITOR_INTERVAL: must be positive")
	}

	quoteTTL, err := getDuration("QUOTE_TTL", file.QuoteTTL, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid QUOTE_TTL: %w", err)
	}
	if quoteTTL < 0 {
		return nil, fmt.Errorf("invalid QUOTE_TTL: must not be negative")
	}

	feed := getStr("FEED", file.Feed, "sina")
	if feed != "sina" && feed != "sim" {
		return nil, fmt.Errorf("invalid FEED: %q, must be one of: sina, sim", feed)
	}

	feedTimeout, err := getDuration("FEED_TIMEOUT", file.FeedTimeout, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_TIMEOUT: %w", err)
	}

	exchangeTZ := getStr("EXCHANGE_TZ", file.ExchangeTZ, "Asia/Shanghai")

	holidays := getList("HOLIDAYS", file.Holidays)
	for _, d := range holidays {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("invalid HOLIDAYS: %q is not a YYYY-MM-DD date", d)
		}
	}

	settleAt, err := getClock("SETTLE_AT", file.SettleAt, 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid SETTLE_AT: %w", err)
	}

	databaseURL := getStr("DATABASE_URL", file.DatabaseURL, "")

	webhookTimeout, err := getDuration("WEBHOOK_TIMEOUT", file.WebhookTimeout, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", file.ReadTimeout, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", file.WriteTimeout, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", file.IdleTimeout, 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", file.ShutdownTimeout, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:            port,
		LogLevel:        logLevel,
		InitialCash:     initialCash,
		FeeRateBps:      feeRateBps,
		MinFee:          minFee,
		MinOrderValue:   minOrderValue,
		LotSize:         lotSize,
		MonitorInterval: monitorInterval,
		QuoteTTL:        quoteTTL,
		Feed:            feed,
		FeedTimeout:     feedTimeout,
		ExchangeTZ:      exchangeTZ,
		Holidays:        holidays,
		SettleAt:        settleAt,
		DatabaseURL:     databaseURL,
		WebhookTimeout:  webhookTimeout,
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func getStr(key string, fileVal *string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fileVal != nil {
		return *fileVal
	}
	return defaultVal
}

func getInt(key string, fileVal *int, defaultVal int) (int, error) {
	if v := os.Getenv(key); v != "" {
		return strconv.Atoi(v)
	}
	if fileVal != nil {
		return *fileVal, nil
	}
	return defaultVal, nil
}

func getInt64(key string, fileVal *int64, defaultVal int64) (int64, error) {
	if v := os.Getenv(key); v != "" {
		return strconv.ParseInt(v, 10, 64)
	}
	if fileVal != nil {
		return *fileVal, nil
	}
	return defaultVal, nil
}

// getYuan reads a yuan amount and converts it to cents. defaultVal is
// already in cents.
func getYuan(key string, fileVal *float64, defaultVal int64) (int64, error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, err
		}
		return domain.YuanToCents(f)
	}
	if fileVal != nil {
		return domain.YuanToCents(*fileVal)
	}
	return defaultVal, nil
}

func getDuration(key string, fileVal *string, defaultVal time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}
	if fileVal != nil {
		return time.ParseDuration(*fileVal)
	}
	return defaultVal, nil
}

// getClock reads a HH:MM wall-clock time as an offset from midnight.
func getClock(key string, fileVal *string, defaultVal time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return parseClock(v)
	}
	if fileVal != nil {
		return parseClock(*fileVal)
	}
	return defaultVal, nil
}

func parseClock(v string) (time.Duration, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("%q is not a HH:MM clock time", v)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// getList reads a comma-separated list; the file value is used as-is
// when the variable is unset.
func getList(key string, fileVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fileVal
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
