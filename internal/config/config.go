package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port           string
	DBDSN          string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	GatewayURL     string
	GatewayTimeout time.Duration
	RemoteTimeout  time.Duration
	StockRetries   uint64
	PartitionsFile string
	PaymentSecret  string
	LogFile        string
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "aurelia.db"
	} // sqlite file in project root
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPass := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}
	gatewayURL := os.Getenv("GATEWAY_URL")
	if gatewayURL == "" {
		gatewayURL = "http://localhost:8090"
	}
	gatewayTimeout := 10 * time.Second
	if v := os.Getenv("GATEWAY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			gatewayTimeout = d
		}
	}
	remoteTimeout := 3 * time.Second
	if v := os.Getenv("REMOTE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			remoteTimeout = d
		}
	}
	stockRetries := uint64(0) // 0 leaves the service default
	if v := os.Getenv("STOCK_RETRIES"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 8); err == nil {
			stockRetries = n
		}
	}
	partitions := os.Getenv("PARTITIONS_FILE")
	if partitions == "" {
		partitions = "./partitions.yaml"
	}
	paymentSecret := os.Getenv("PAYMENT_SECRET")
	if paymentSecret == "" {
		paymentSecret = "dev-payment-secret" // override in production
	}
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "./aurelia.log" // default log sink in project root
	}

	cfg := Config{
		Port:           port,
		DBDSN:          dsn,
		RedisAddr:      redisAddr,
		RedisPassword:  redisPass,
		RedisDB:        redisDB,
		GatewayURL:     gatewayURL,
		GatewayTimeout: gatewayTimeout,
		RemoteTimeout:  remoteTimeout,
		StockRetries:   stockRetries,
		PartitionsFile: partitions,
		PaymentSecret:  paymentSecret,
		LogFile:        logFile,
	}
	log.Printf("[config] PORT=%s DB_DSN=%s REDIS_ADDR=%s GATEWAY_URL=%s PARTITIONS_FILE=%s LOG_FILE=%s",
		cfg.Port, cfg.DBDSN, cfg.RedisAddr, cfg.GatewayURL, cfg.PartitionsFile, cfg.LogFile)
	return cfg
}
