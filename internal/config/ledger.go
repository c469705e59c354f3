package config

import (
	"os"
	"strconv"
)

type LedgerConfig struct {
	UnitAmount         int64
	ResaleRatePerShare int64
	UIDLength          int
	UIDAlphabet        string
	UIDMaxAttempts     int
	UIDTimestampTail   bool
	CertificateDir     string
	SmallCertCost      int64
	LargeCertCost      int64
}

func LoadLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		UnitAmount:         getEnvAsInt64("LEDGER_UNIT_AMOUNT", 500),
		ResaleRatePerShare: getEnvAsInt64("LEDGER_RESALE_RATE", 480),
		UIDLength:          getEnvAsInt("LEDGER_UID_LENGTH", 6),
		UIDAlphabet:        getEnv("LEDGER_UID_ALPHABET", "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$&_"),
		UIDMaxAttempts:     getEnvAsInt("LEDGER_UID_MAX_ATTEMPTS", 10000),
		UIDTimestampTail:   getEnvAsBool("LEDGER_UID_TIMESTAMP_TAIL", false),
		CertificateDir:     getEnv("LEDGER_CERTIFICATE_DIR", "./static/certificates"),
		SmallCertCost:      getEnvAsInt64("LEDGER_SMALL_CERT_COST", 40),
		LargeCertCost:      getEnvAsInt64("LEDGER_LARGE_CERT_COST", 80),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
