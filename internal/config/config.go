package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ListenAddr           string
	DataDir              string
	DatabaseURL          string
	APIBaseURL           string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	CashierID            int64
	CashierName          string
	ProbeIntervalSeconds int
	DebounceSeconds      int
	CatalogTTLSeconds    int
	MetricsAddr          string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cashierID, err := strconv.ParseInt(getEnv("CASHIER_ID", "1"), 10, 64)
	if err != nil || cashierID < 1 {
		cashierID = 1
	}
	probe, err := strconv.Atoi(getEnv("PROBE_INTERVAL_SECONDS", "5"))
	if err != nil || probe < 1 {
		probe = 5
	}
	debounce, err := strconv.Atoi(getEnv("DEBOUNCE_SECONDS", "2"))
	if err != nil || debounce < 0 {
		debounce = 2
	}
	ttl, err := strconv.Atoi(getEnv("CATALOG_TTL_SECONDS", "60"))
	if err != nil || ttl < 1 {
		ttl = 60
	}

	cfg := Config{
		ListenAddr:           getEnv("LISTEN_ADDR", "127.0.0.1:8080"),
		DataDir:              getEnv("DATA_DIR", "./data"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		APIBaseURL:           strings.TrimRight(os.Getenv("API_BASE_URL"), "/"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              redisDB,
		CashierID:            cashierID,
		CashierName:          getEnv("CASHIER_NAME", "Cashier"),
		ProbeIntervalSeconds: probe,
		DebounceSeconds:      debounce,
		CatalogTTLSeconds:    ttl,
		MetricsAddr:          getEnv("METRICS_ADDR", ":9190"),
	}

	return cfg
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
