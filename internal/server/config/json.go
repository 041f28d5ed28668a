package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/vehiclerent/internal/flagx"
	"github.com/dmitrijs2005/vehiclerent/internal/timex"
)

// JsonConfig is the on-disk shape of Config. Durations use timex.Duration,
// so both "90s" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrGRPC      string         `json:"endpoint_addr_grpc"`
	DatabaseDSN           string         `json:"database_dsn"`
	LogLevel              string         `json:"log_level"`
	S3RootUser            string         `json:"s3_root_user"`
	S3RootPassword        string         `json:"s3_root_password"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
	ReceiptURLTTL         timex.Duration `json:"receipt_url_ttl"`
	RedisAddr             string         `json:"redis_addr"`
	KafkaBrokers          []string       `json:"kafka_brokers"`
	ReminderTopic         string         `json:"reminder_topic"`
	TokenCleanupInterval  timex.Duration `json:"token_cleanup_interval"`
	ExpirySweepInterval   timex.Duration `json:"expiry_sweep_interval"`
	ReminderInterval      timex.Duration `json:"reminder_interval"`
	ReminderWindow        timex.Duration `json:"reminder_window"`
	JobMaxAttempts        int            `json:"job_max_attempts"`
	JobQueueSize          int            `json:"job_queue_size"`
	SchedulerDrainTimeout timex.Duration `json:"scheduler_drain_timeout"`
	SettlementLatency     timex.Duration `json:"settlement_latency"`
	SettlementTimeout     timex.Duration `json:"settlement_timeout"`
	SuccessRate           float64        `json:"success_rate"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrGRPC:      c.EndpointAddrGRPC,
		DatabaseDSN:           c.DatabaseDSN,
		LogLevel:              c.LogLevel,
		S3RootUser:            c.S3RootUser,
		S3RootPassword:        c.S3RootPassword,
		S3Bucket:              c.S3Bucket,
		S3Region:              c.S3Region,
		S3BaseEndpoint:        c.S3BaseEndpoint,
		ReceiptURLTTL:         timex.Duration{Duration: c.ReceiptURLTTL},
		RedisAddr:             c.RedisAddr,
		KafkaBrokers:          c.KafkaBrokers,
		ReminderTopic:         c.ReminderTopic,
		TokenCleanupInterval:  timex.Duration{Duration: c.TokenCleanupInterval},
		ExpirySweepInterval:   timex.Duration{Duration: c.ExpirySweepInterval},
		ReminderInterval:      timex.Duration{Duration: c.ReminderInterval},
		ReminderWindow:        timex.Duration{Duration: c.ReminderWindow},
		JobMaxAttempts:        c.JobMaxAttempts,
		JobQueueSize:          c.JobQueueSize,
		SchedulerDrainTimeout: timex.Duration{Duration: c.SchedulerDrainTimeout},
		SettlementLatency:     timex.Duration{Duration: c.SettlementLatency},
		SettlementTimeout:     timex.Duration{Duration: c.SettlementTimeout},
		SuccessRate:           c.SuccessRate,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.DatabaseDSN = j.DatabaseDSN
	c.LogLevel = j.LogLevel
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.ReceiptURLTTL = j.ReceiptURLTTL.Duration
	c.RedisAddr = j.RedisAddr
	c.KafkaBrokers = j.KafkaBrokers
	c.ReminderTopic = j.ReminderTopic
	c.TokenCleanupInterval = j.TokenCleanupInterval.Duration
	c.ExpirySweepInterval = j.ExpirySweepInterval.Duration
	c.ReminderInterval = j.ReminderInterval.Duration
	c.ReminderWindow = j.ReminderWindow.Duration
	c.JobMaxAttempts = j.JobMaxAttempts
	c.JobQueueSize = j.JobQueueSize
	c.SchedulerDrainTimeout = j.SchedulerDrainTimeout.Duration
	c.SettlementLatency = j.SettlementLatency.Duration
	c.SettlementTimeout = j.SettlementTimeout.Duration
	c.SuccessRate = j.SuccessRate
}

// parseJson overlays the JSON file named by -c or -config, if any. Keys
// missing from the file keep their current values. An unreadable file or
// invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}
	c.apply(config)
}
