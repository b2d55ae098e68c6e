package produce

import amqp "github.com/rabbitmq/amqp091-go"

type Produce struct {
	JobEventService *JobEventService
}

var produceInstance *Produce

func InitProduce(channel *amqp.Channel, eventsExchange string) *Produce {
	if produceInstance != nil {
		return produceInstance
	}

	jobEventService := InitJobEventService(channel, eventsExchange)
	if jobEventService == nil {
		panic("Failed to initialize Job event service")
	}

	produceInstance = &Produce{
		JobEventService: jobEventService,
	}

	return produceInstance
}

func GetProduce() *Produce {
	if produceInstance == nil {
		panic("Produce not initialized. Call InitProduce() first.")
	}
	return produceInstance
}
