// Package environment reads service configuration from environment variables.
package environment

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/datatrails/go-wallpaper-mirror/logger"
)

const (
	commaSeparator = ","

	logLevelKey = "LOGLEVEL"
)

// GetLogLevel returns the log level, INFO when LOGLEVEL is unset. This is
// called before any logger is available. i.e. don't use a logger here.
func GetLogLevel() string {
	value, ok := os.LookupEnv(logLevelKey)
	if !ok || value == "" {
		return logger.InfoLevel
	}
	return strings.ToUpper(value)
}

// GetWithDefault returns value of environment variable.
// If the environment variable does not exist the fallback is returned.
func GetWithDefault(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		value = fallback
	}
	return value
}

// GetRequired gets the value for the key, or an error if it is not set.
func GetRequired(key string) (string, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("required environment variable '%s' is not defined", key)
	}
	return value, nil
}

// GetIntWithDefault returns value of environment variable that is
// expected to be an int.
// If the environment variable does not exist or is incorrect,
// then the default value is returned.
func GetIntWithDefault(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(val)
	if err != nil {
		if logger.Sugar != nil {
			logger.Sugar.Infof("`%s' can not be converted to an integer. defaulting to %v. err=%v", key, fallback, err)
		}
		return fallback
	}
	return value
}

// GetTruthy returns true if key is set to a value that is truthy. Returns
// false otherwise.
func GetTruthy(key string) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	// t,true,True,1 are all examples of 'truthy' values understood by ParseBool
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	return b
}

// GetListWithDefault returns the key's value split on commas, or fallback
// when the variable is not set. Surrounding whitespace is trimmed from each
// item and empty items are dropped.
func GetListWithDefault(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var values []string
	for _, v := range strings.Split(value, commaSeparator) {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
