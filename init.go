package screener

import (
	"os"
	"strconv"

	"github.com/raykavin/screener/pkg/logger/zerolog"
)

const (
	defaultLogLevel      = "info"
	defaultLogTimeFormat = "2006-01-02 15:04:05"
	defaultLogColored    = "true"
	defaultLogJSON       = "false"
)

// Environment variable names
const (
	envLogLevel      = "SCREENER_LOG_LEVEL"
	envLogTimeFormat = "SCREENER_LOG_TIME_FORMAT"
	envLogColor      = "SCREENER_LOG_COLOR"
	envLogJSON       = "SCREENER_LOG_JSON"
)

func init() {
	log, err := initLogger()
	if err != nil {
		panic(err)
	}

	DefaultLog = log
}

// initLogger creates the default logger from the environment
func initLogger() (*zerolog.ZerologAdapter, error) {
	logLevel := getEnvWithDefault(envLogLevel, defaultLogLevel)
	logTimeFormat := getEnvWithDefault(envLogTimeFormat, defaultLogTimeFormat)

	logColored, err := parseBoolEnv(envLogColor, defaultLogColored)
	if err != nil {
		return nil, err
	}

	logJSON, err := parseBoolEnv(envLogJSON, defaultLogJSON)
	if err != nil {
		return nil, err
	}

	return zerolog.New(logLevel, logTimeFormat, logColored, logJSON)
}

// getEnvWithDefault returns the value of the environment variable or the default if not set
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseBoolEnv(key, defaultValue string) (bool, error) {
	return strconv.ParseBool(getEnvWithDefault(key, defaultValue))
}
