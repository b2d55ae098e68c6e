package infra

import (
	"context"
	"errors"

	"github.com/tnqbao/gau-job-orchestrator/config"
	"github.com/tnqbao/gau-job-orchestrator/infra/broker"
	"github.com/tnqbao/gau-job-orchestrator/infra/produce"
)

// Infra holds every external client. Clients whose driver is not selected
// in config stay nil.
type Infra struct {
	Redis     *RedisClient
	Postgres  *PostgresClient
	Logger    *LoggerClient
	RabbitMQ  *RabbitMQClient
	Telemetry *TelemetryClient
	Mailer    *MailerClient
	Broker    broker.Broker
	Produce   *produce.Produce
}

var infraInstance *Infra

func InitInfra(cfg *config.Config) *Infra {
	if infraInstance != nil {
		return infraInstance
	}
	env := cfg.EnvConfig

	logger := InitLoggerClient(env)
	if logger == nil {
		panic("Failed to initialize Logger service")
	}

	telemetry := InitTelemetryClient(env)

	inst := &Infra{
		Logger:    logger,
		Telemetry: telemetry,
		Mailer:    InitMailerClient(env),
	}

	switch env.Job.StoreDriver {
	case config.StoreDriverRedis:
		inst.Redis = InitRedisClient(env)
		if inst.Redis == nil {
			panic("Failed to initialize Redis service")
		}
	case config.StoreDriverPostgres:
		inst.Postgres = InitPostgresClient(env)
		if inst.Postgres == nil {
			panic("Failed to initialize Postgres service")
		}
	case config.StoreDriverMemory:
	default:
		panic("Unknown JOB_STORE_DRIVER: " + env.Job.StoreDriver)
	}

	switch env.Job.BrokerDriver {
	case config.BrokerDriverRabbitMQ:
		inst.RabbitMQ = InitRabbitMQClient(env)
		if inst.RabbitMQ == nil {
			panic("Failed to initialize RabbitMQ service")
		}

		b, err := broker.NewRabbitMQBroker(inst.RabbitMQ.Conn, broker.RabbitMQOptions{
			Exchange: env.Job.Exchange,
			Queue:    env.Job.Queue,
			Prefetch: env.Worker.Concurrency,
		})
		if err != nil {
			panic("Failed to initialize RabbitMQ broker: " + err.Error())
		}
		inst.Broker = b

		inst.Produce = produce.InitProduce(inst.RabbitMQ.Channel, env.Job.EventsExchange)
	case config.BrokerDriverMemory:
		inst.Broker = broker.NewMemoryBroker(0)
	default:
		panic("Unknown JOB_BROKER_DRIVER: " + env.Job.BrokerDriver)
	}

	infraInstance = inst
	return infraInstance
}

func GetClient() *Infra {
	if infraInstance == nil {
		panic("Infra not initialized. Call InitInfra() first.")
	}
	return infraInstance
}

// JobEvents returns the lifecycle event publisher, or nil when no
// RabbitMQ connection is configured.
func (i *Infra) JobEvents() *produce.JobEventService {
	if i.Produce == nil {
		return nil
	}
	return i.Produce.JobEventService
}

// Ping reports the health of each configured dependency by name.
func (i *Infra) Ping(ctx context.Context) map[string]error {
	out := map[string]error{}
	if i.Redis != nil {
		out["redis"] = i.Redis.Ping(ctx)
	}
	if i.Postgres != nil {
		out["postgres"] = i.Postgres.Ping(ctx)
	}
	if i.RabbitMQ != nil {
		var err error
		if i.RabbitMQ.Conn.IsClosed() {
			err = errors.New("connection closed")
		}
		out["rabbitmq"] = err
	}
	return out
}

func (i *Infra) Shutdown(ctx context.Context) error {
	var errs []error
	if i.Broker != nil {
		errs = append(errs, i.Broker.Close())
	}
	if i.RabbitMQ != nil {
		errs = append(errs, i.RabbitMQ.Close())
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.Postgres != nil {
		errs = append(errs, i.Postgres.Close())
	}
	if i.Telemetry != nil {
		errs = append(errs, i.Telemetry.Shutdown(ctx))
	}
	if i.Logger != nil {
		errs = append(errs, i.Logger.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
