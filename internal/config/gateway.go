package config

import (
	"log"
	"os"
)

// GatewayConfig configures the catalogd binary.
type GatewayConfig struct {
	Port    string
	DBDSN   string
	LogFile string
}

func LoadGateway() GatewayConfig {
	port := os.Getenv("GATEWAY_PORT")
	if port == "" {
		port = "8090"
	}
	dsn := os.Getenv("GATEWAY_DB_DSN")
	if dsn == "" {
		dsn = "catalogd.db"
	}
	logFile := os.Getenv("GATEWAY_LOG_FILE")
	if logFile == "" {
		logFile = "./catalogd.log"
	}

	cfg := GatewayConfig{Port: port, DBDSN: dsn, LogFile: logFile}
	log.Printf("[config] GATEWAY_PORT=%s GATEWAY_DB_DSN=%s GATEWAY_LOG_FILE=%s", cfg.Port, cfg.DBDSN, cfg.LogFile)
	return cfg
}
