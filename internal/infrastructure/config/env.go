package config

import "os"

// Environment overrides for server.json
const (
	EnvAPIURL   = "SURFTIMER_API_URL"
	EnvAPIKey   = "SURFTIMER_API_KEY"
	EnvLogLevel = "SURFTIMER_LOG_LEVEL"
)

// GetEnv returns the value of the environment variable named by the key,
// or fallback if the variable is not set.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// ApplyEnv overrides the API and logging settings from the environment
func (c *ServerConfig) ApplyEnv() {
	c.APIURL = GetEnv(EnvAPIURL, c.APIURL)
	c.APIKey = GetEnv(EnvAPIKey, c.APIKey)
	c.LogLevel = GetEnv(EnvLogLevel, c.LogLevel)
}
