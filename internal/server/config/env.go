package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "RENTAL_"

// parseEnv overlays RENTAL_* variables read from the given .env files and
// the process environment. Process variables win over the files; missing
// files are skipped. Malformed values panic, like the other config sources.
func parseEnv(config *Config, files ...string) {
	vars := map[string]string{}
	for _, f := range files {
		m, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			panic(fmt.Errorf("error reading %s: %w", f, err))
		}
		for k, v := range m {
			vars[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, envPrefix) {
			vars[k] = v
		}
	}

	for name, set := range envSetters(config) {
		v, ok := vars[envPrefix+name]
		if !ok {
			continue
		}
		if err := set(v); err != nil {
			panic(fmt.Errorf("%s%s: %w", envPrefix, name, err))
		}
	}
}

func envSetters(c *Config) map[string]func(string) error {
	return map[string]func(string) error{
		"GRPC_ADDR":               str(&c.EndpointAddrGRPC),
		"DATABASE_DSN":            str(&c.DatabaseDSN),
		"LOG_LEVEL":               str(&c.LogLevel),
		"S3_USER":                 str(&c.S3RootUser),
		"S3_PASSWORD":             str(&c.S3RootPassword),
		"S3_BUCKET":               str(&c.S3Bucket),
		"S3_REGION":               str(&c.S3Region),
		"S3_ENDPOINT":             str(&c.S3BaseEndpoint),
		"RECEIPT_URL_TTL":         dur(&c.ReceiptURLTTL),
		"REDIS_ADDR":              str(&c.RedisAddr),
		"KAFKA_BROKERS":           list(&c.KafkaBrokers),
		"REMINDER_TOPIC":          str(&c.ReminderTopic),
		"TOKEN_CLEANUP_INTERVAL":  dur(&c.TokenCleanupInterval),
		"EXPIRY_SWEEP_INTERVAL":   dur(&c.ExpirySweepInterval),
		"REMINDER_INTERVAL":       dur(&c.ReminderInterval),
		"REMINDER_WINDOW":         dur(&c.ReminderWindow),
		"JOB_MAX_ATTEMPTS":        integer(&c.JobMaxAttempts),
		"JOB_QUEUE_SIZE":          integer(&c.JobQueueSize),
		"SCHEDULER_DRAIN_TIMEOUT": dur(&c.SchedulerDrainTimeout),
		"SETTLEMENT_LATENCY":      dur(&c.SettlementLatency),
		"SETTLEMENT_TIMEOUT":      dur(&c.SettlementTimeout),
		"SUCCESS_RATE":            float(&c.SuccessRate),
	}
}

func str(p *string) func(string) error {
	return func(v string) error { *p = v; return nil }
}

func dur(p *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*p = d
		return nil
	}
}

func integer(p *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*p = n
		return nil
	}
}

func float(p *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*p = f
		return nil
	}
}

func list(p *[]string) func(string) error {
	return func(v string) error {
		*p = splitList(v)
		return nil
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
