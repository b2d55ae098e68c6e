package infra

import (
	"errors"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-job-orchestrator/config"
)

type RabbitMQClient struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

func InitRabbitMQClient(cfg *config.EnvConfig) *RabbitMQClient {
	conn, err := amqp.Dial(cfg.RabbitMQURL())
	if err != nil {
		log.Fatalf("RabbitMQ connection failed: %v", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		log.Fatalf("RabbitMQ channel open failed: %v", err)
	}

	log.Println("Connected to RabbitMQ:", cfg.RabbitMQ.Port+" on "+cfg.RabbitMQ.Host)

	return &RabbitMQClient{Conn: conn, Channel: channel}
}

func (r *RabbitMQClient) Close() error {
	var errs []error
	if r.Channel != nil && !r.Channel.IsClosed() {
		errs = append(errs, r.Channel.Close())
	}
	if r.Conn != nil && !r.Conn.IsClosed() {
		errs = append(errs, r.Conn.Close())
	}
	return errors.Join(errs...)
}
