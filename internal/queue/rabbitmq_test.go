package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

func amqpDeliveryWithHeader(attempts any) amqp.Delivery {
	if attempts == nil {
		return amqp.Delivery{}
	}
	return amqp.Delivery{Headers: amqp.Table{attemptsHeader: attempts}}
}
