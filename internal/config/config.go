package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Secrets for the payment gateway and the admin
// token signer are required; observability endpoints are optional.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	DBMigrate    bool   // run embedded migrations at startup
	JWTSecret    string // secret used to sign admin JWTs
	AccessTTLMin int    // admin access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for admin password hashing

	Payment PaymentConfig

	RabbitURL           string        // AMQP broker for notification events (optional)
	NotificationDir     string        // where the notification consumer writes its log
	LokiURL             string        // Loki push endpoint; stdout JSON logs when empty
	MetricsPushURL      string        // VictoriaMetrics push endpoint (optional)
	MetricsPushInterval time.Duration // push interval when MetricsPushURL is set

	AdminEmail    string // bootstrap admin created at startup when both are set
	AdminPassword string
}

// PaymentConfig groups the gateway credentials.  WebhookSecret falls back to
// KeySecret when RAZORPAY_WEBHOOK_SECRET is not provided.
type PaymentConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
	Currency      string
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when present.
// Required variables are enforced by must() and missing values cause the
// program to exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load() // optional; real environment wins

	keySecret := must("RAZORPAY_KEY_SECRET")
	return Config{
		Env:          must("APP_ENV"),
		Port:         must("APP_PORT"),
		DBUser:       must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"), // empty allowed
		DBHost:       must("DB_HOST"),
		DBPort:       must("DB_PORT"),
		DBName:       must("DB_NAME"),
		DBMigrate:    envBool("DB_MIGRATE", true),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:   mustInt("BCRYPT_COST"),
		Payment: PaymentConfig{
			KeyID:         must("RAZORPAY_KEY_ID"),
			KeySecret:     keySecret,
			WebhookSecret: envStr("RAZORPAY_WEBHOOK_SECRET", keySecret),
			BaseURL:       envStr("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
			Currency:      envStr("PAYMENT_CURRENCY", "INR"),
		},
		RabbitURL:           firstEnv("RABBITMQ_URL", "AMQP_URL"),
		NotificationDir:     envStr("NOTIFICATION_DIR", "logs"),
		LokiURL:             os.Getenv("LOKI_URL"),
		MetricsPushURL:      os.Getenv("METRICS_PUSH_URL"),
		MetricsPushInterval: envDur("METRICS_PUSH_INTERVAL", 10*time.Second),
		AdminEmail:          os.Getenv("ADMIN_EMAIL"),
		AdminPassword:       os.Getenv("ADMIN_PASSWORD"),
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

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
