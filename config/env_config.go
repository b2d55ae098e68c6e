package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	BrokerDriverRabbitMQ = "rabbitmq"
	BrokerDriverMemory   = "memory"
)

type EnvConfig struct {
	Postgres struct {
		HOST     string
		Database string
		Username string
		Password string
		Port     string
	}
	JWT struct {
		SecretKey string
		Algorithm string
	}
	CORS struct {
		AllowDomains string
	}
	Redis struct {
		Password  string
		Database  int
		RedisHost string
		RedisPort string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
		VHost    string
	}
	Mail struct {
		From     string
		Server   string
		Port     int
		Username string
		Password string
		StartTLS bool
	}
	Job struct {
		StoreDriver    string
		BrokerDriver   string
		Queue          string
		Exchange       string
		EventsExchange string
		ResultTTL      time.Duration
	}
	Worker struct {
		Concurrency int
		Embedded    bool
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
	}
	Environment struct {
		Mode  string
		Group string
	}
	HTTPPort string
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	// Postgres
	config.Postgres.HOST = os.Getenv("PGPOOL_HOST")
	config.Postgres.Database = os.Getenv("PGPOOL_DB")
	config.Postgres.Username = os.Getenv("PGPOOL_USER")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = os.Getenv("PGPOOL_PORT")
	if config.Postgres.Port == "" {
		config.Postgres.Port = "5432"
	}

	// JWT (auth is disabled when no secret is configured)
	config.JWT.SecretKey = os.Getenv("JWT_SECRET_KEY")
	config.JWT.Algorithm = os.Getenv("JWT_ALGORITHM")
	if config.JWT.Algorithm == "" {
		config.JWT.Algorithm = "HS256"
	}

	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")

	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	config.Redis.RedisHost = os.Getenv("REDIS_HOST")
	if config.Redis.RedisHost == "" {
		config.Redis.RedisHost = "localhost"
	}
	config.Redis.RedisPort = os.Getenv("REDIS_PORT")
	if config.Redis.RedisPort == "" {
		config.Redis.RedisPort = "6379"
	}

	// RabbitMQ
	config.RabbitMQ.Host = os.Getenv("RABBITMQ_HOST")
	if config.RabbitMQ.Host == "" {
		config.RabbitMQ.Host = "localhost"
	}
	config.RabbitMQ.Port = os.Getenv("RABBITMQ_PORT")
	if config.RabbitMQ.Port == "" {
		config.RabbitMQ.Port = "5672"
	}
	config.RabbitMQ.Username = os.Getenv("RABBITMQ_USER")
	if config.RabbitMQ.Username == "" {
		config.RabbitMQ.Username = "guest"
	}
	config.RabbitMQ.Password = os.Getenv("RABBITMQ_PASSWORD")
	if config.RabbitMQ.Password == "" {
		config.RabbitMQ.Password = "guest"
	}
	config.RabbitMQ.VHost = os.Getenv("RABBITMQ_VHOST")

	// SMTP for the send_email action
	config.Mail.From = os.Getenv("MAIL_FROM")
	config.Mail.Server = os.Getenv("MAIL_SERVER")
	if config.Mail.Server == "" {
		config.Mail.Server = "localhost"
	}
	if val := os.Getenv("MAIL_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &config.Mail.Port)
	} else {
		config.Mail.Port = 587
	}
	config.Mail.Username = os.Getenv("MAIL_USERNAME")
	config.Mail.Password = os.Getenv("MAIL_PASSWORD")
	config.Mail.StartTLS = os.Getenv("MAIL_STARTTLS") != "false"

	// Job core
	config.Job.StoreDriver = strings.ToLower(os.Getenv("JOB_STORE_DRIVER"))
	if config.Job.StoreDriver == "" {
		config.Job.StoreDriver = StoreDriverRedis
	}
	config.Job.BrokerDriver = strings.ToLower(os.Getenv("JOB_BROKER_DRIVER"))
	if config.Job.BrokerDriver == "" {
		config.Job.BrokerDriver = BrokerDriverRabbitMQ
	}
	config.Job.Queue = os.Getenv("JOB_QUEUE")
	if config.Job.Queue == "" {
		config.Job.Queue = "jobs.default"
	}
	config.Job.Exchange = os.Getenv("JOB_EXCHANGE")
	if config.Job.Exchange == "" {
		config.Job.Exchange = "jobs.exchange"
	}
	config.Job.EventsExchange = os.Getenv("JOB_EVENTS_EXCHANGE")
	if config.Job.EventsExchange == "" {
		config.Job.EventsExchange = "job_events"
	}
	config.Job.ResultTTL = 24 * time.Hour
	if val := os.Getenv("JOB_RESULT_TTL"); val != "" {
		if ttl, err := time.ParseDuration(val); err == nil {
			config.Job.ResultTTL = ttl
		}
	}

	// Worker pool
	config.Worker.Concurrency, _ = strconv.Atoi(os.Getenv("WORKER_CONCURRENCY"))
	if config.Worker.Concurrency <= 0 {
		config.Worker.Concurrency = 4
	}
	config.Worker.Embedded = os.Getenv("WORKER_EMBEDDED") == "true"

	// Grafana/OpenTelemetry
	grafanaEndpoint := os.Getenv("GRAFANA_OTLP_ENDPOINT")
	// Remove protocol for OpenTelemetry client to avoid duplicate protocols
	if strings.HasPrefix(grafanaEndpoint, "https://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "https://")
	} else if strings.HasPrefix(grafanaEndpoint, "http://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "http://")
	} else {
		config.Grafana.OTLPEndpoint = grafanaEndpoint
	}
	config.Grafana.ServiceName = os.Getenv("SERVICE_NAME")
	if config.Grafana.ServiceName == "" {
		config.Grafana.ServiceName = "gau-job-orchestrator"
	}

	config.Environment.Mode = os.Getenv("DEPLOY_ENV")
	if config.Environment.Mode == "" {
		config.Environment.Mode = "development"
	}

	config.Environment.Group = os.Getenv("GROUP_NAME")
	if config.Environment.Group == "" {
		config.Environment.Group = "local"
	}

	config.HTTPPort = os.Getenv("HTTP_PORT")
	if config.HTTPPort == "" {
		config.HTTPPort = "8080"
	}

	return &config
}

// RequireSharedDrivers fails when the store or broker lives in process
// memory, which a separate API or worker process cannot see.
func (c *EnvConfig) RequireSharedDrivers() error {
	if c.Job.StoreDriver == StoreDriverMemory || c.Job.BrokerDriver == BrokerDriverMemory {
		return fmt.Errorf("JOB_STORE_DRIVER=%s JOB_BROKER_DRIVER=%s: memory drivers are private to one process",
			c.Job.StoreDriver, c.Job.BrokerDriver)
	}
	return nil
}

func (c *EnvConfig) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/%s",
		c.RabbitMQ.Username, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port, c.RabbitMQ.VHost)
}

func (c *EnvConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.Postgres.HOST, c.Postgres.Username, c.Postgres.Password, c.Postgres.Database, c.Postgres.Port)
}
