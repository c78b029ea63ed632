package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time is used for duration settings
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The claim price, currency, reservation window
// and grid size are constants for the lifetime of the process, never
// runtime-mutable state.
type Config struct {
	Env                  string        // application environment (e.g. "dev", "prod")
	Port                 string        // HTTP port to listen on
	DBUser               string        // database username
	DBPass               string        // database password (optional)
	DBHost               string        // database host address
	DBPort               string        // database port number
	DBName               string        // database name
	GatewayURL           string        // base URL of the checkout gateway API
	GatewayAPIKey        string        // API key for outbound gateway calls
	WebhookSecret        string        // shared secret for webhook signature verification
	PublicBaseURL        string        // where the gateway redirects browsers after checkout
	ClaimPriceCents      uint32        // fixed price of one cell in minor currency units
	ClaimCurrency        string        // ISO currency code for the fixed price
	ReservationWindow    time.Duration // how long a pending reservation holds a cell
	SignatureTolerance   time.Duration // max age of a signed webhook timestamp
	CleanupSweepInterval time.Duration // background expiry sweep period; 0 disables it
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The pricing and
// timing constants have defaults so a dev environment only needs the
// database and gateway credentials.
func Load() Config {
	return Config{
		Env:                  must("APP_ENV"),        // environment (dev/test/prod)
		Port:                 must("APP_PORT"),       // port to bind the HTTP server
		DBUser:               must("DB_USER"),        // database user
		DBPass:               os.Getenv("DB_PASS"),   // database password (empty allowed)
		DBHost:               must("DB_HOST"),        // database host
		DBPort:               must("DB_PORT"),        // database port
		DBName:               must("DB_NAME"),        // database name
		GatewayURL:           must("GATEWAY_URL"),    // checkout gateway base URL
		GatewayAPIKey:        must("GATEWAY_API_KEY"),
		WebhookSecret:        must("WEBHOOK_SECRET"), // shared secret for callback HMAC
		PublicBaseURL:        must("PUBLIC_BASE_URL"),
		ClaimPriceCents:      uint32(envInt("CLAIM_PRICE_CENTS", 500)),
		ClaimCurrency:        envStr("CLAIM_CURRENCY", "usd"),
		ReservationWindow:    envDur("RESERVATION_WINDOW", 30*time.Minute),
		SignatureTolerance:   envDur("WEBHOOK_SIGNATURE_TOLERANCE", 5*time.Minute),
		CleanupSweepInterval: envDur("CLEANUP_SWEEP_INTERVAL", 0),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}
