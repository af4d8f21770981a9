package config

import (
	"os"
	"strconv"
	"strings"
)

// Server holds the dispatch service settings read from the environment.
type Server struct {
	Addr        string
	DatabaseURL string
	Migrate     bool
	RedisURL    string
	RateRPS     float64
	RateBurst   int
	Scenario    string

	WebhookURL         string
	WebhookSecret      string
	WebhookMaxAttempts int
	// WebhookEvents limits forwarded event types; empty forwards all.
	WebhookEvents []string
}

// ServerFromEnv reads PORT, DATABASE_URL, DB_MIGRATE, REDIS_URL, RATE_RPS,
// RATE_BURST, FLEET_SCENARIO and the WEBHOOK_* settings. RATE_RPS <= 0
// disables rate limiting; an empty WEBHOOK_URL disables forwarding.
func ServerFromEnv() Server {
	c := Server{
		Addr:        ":8080",
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Migrate:     os.Getenv("DB_MIGRATE") != "false",
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),
		RateBurst:   20,
		Scenario:    os.Getenv("FLEET_SCENARIO"),

		WebhookURL:         strings.TrimSpace(os.Getenv("WEBHOOK_URL")),
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		WebhookMaxAttempts: 10,
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Addr = ":" + v
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RateRPS = f
		}
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RateBurst = n
		}
	}
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.WebhookMaxAttempts = n
		}
	}
	for _, t := range strings.Split(os.Getenv("WEBHOOK_EVENTS"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			c.WebhookEvents = append(c.WebhookEvents, t)
		}
	}
	return c
}
