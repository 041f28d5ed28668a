// Package config handles configuration for the rental server, including
// defaults, a .env/environment overlay, an optional JSON file and
// command-line flags, applied in that order.
package config

import "time"

// Config holds runtime settings for the rental server.
//
// Empty DatabaseDSN, S3BaseEndpoint, RedisAddr or KafkaBrokers select the
// in-process replacement for that backend.
type Config struct {
	EndpointAddrGRPC string
	DatabaseDSN      string
	LogLevel         string

	S3RootUser     string
	S3RootPassword string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	ReceiptURLTTL  time.Duration

	RedisAddr     string
	KafkaBrokers  []string
	ReminderTopic string

	TokenCleanupInterval  time.Duration
	ExpirySweepInterval   time.Duration
	ReminderInterval      time.Duration
	ReminderWindow        time.Duration
	JobMaxAttempts        int
	JobQueueSize          int
	SchedulerDrainTimeout time.Duration

	SettlementLatency time.Duration
	SettlementTimeout time.Duration
	// SuccessRate is the probability a CARD or UPI settlement succeeds.
	SuccessRate float64
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.DatabaseDSN = ""
	c.LogLevel = "info"
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "receipts"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
	c.ReceiptURLTTL = 15 * time.Minute
	c.RedisAddr = ""
	c.KafkaBrokers = nil
	c.ReminderTopic = "rental-reminders"
	c.TokenCleanupInterval = time.Hour
	c.ExpirySweepInterval = time.Hour
	c.ReminderInterval = 24 * time.Hour
	c.ReminderWindow = 3 * 24 * time.Hour
	c.JobMaxAttempts = 3
	c.JobQueueSize = 64
	c.SchedulerDrainTimeout = 10 * time.Second
	c.SettlementLatency = 500 * time.Millisecond
	c.SettlementTimeout = 5 * time.Second
	c.SuccessRate = 0.8
}

// LoadConfig builds a Config by applying defaults, then the .env file and
// RENTAL_* environment variables, then an optional JSON file and finally
// command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg, ".env")
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
