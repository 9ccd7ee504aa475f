package config

import (
	"os"
)

// Config holds the runtime configuration. It is loaded once at process start
// and read-only thereafter.
type Config struct {
	Port      string
	MongoURI  string
	Database  string
	JWTSecret string
	Mpesa     Mpesa
}

// Mpesa holds the Daraja gateway credentials. CallbackURL is the publicly
// reachable URL the gateway posts the STK result to.
type Mpesa struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
}

// Load reads the configuration from the environment.
func Load() Config {
	baseURL := getEnv("BASE_URL", "http://localhost:8080")
	return Config{
		Port:      getEnv("PORT", "8080"),
		MongoURI:  os.Getenv("MONGOURI"),
		Database:  getEnv("MONGO_DATABASE", "chamapaydb"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		Mpesa: Mpesa{
			BaseURL:        getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
			Shortcode:      os.Getenv("MPESA_SHORTCODE"),
			Passkey:        os.Getenv("MPESA_PASSKEY"),
			CallbackURL:    baseURL + "/api/mpesa/callback",
		},
	}
}

// getEnv retrieves an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
