package rabbit

import (
	"context"

	"github.com/rabbitmq/amqp091-go"
)

type ParserFunc[T any] func([]byte) (*T, error)
type HandlerFunc[T any] func(context.Context, *T)

type Processor[T any] struct {
	parser  ParserFunc[T]
	handler HandlerFunc[T]
}

func NewProcessor[T any](parser ParserFunc[T], handler HandlerFunc[T]) Processor[T] {
	return Processor[T]{parser: parser, handler: handler}
}

func (p *Processor[T]) processMessage(ctx context.Context, msg amqp091.Delivery) {
	body, err := p.parser(msg.Body)

	if err != nil {
		msg.Nack(false, false)
		return
	}

	msg.Ack(false)
	p.handler(ctx, body)
}

// RunConsumer pumps deliveries from the queue through the processor
// until the context is cancelled.
func (p *Processor[T]) RunConsumer(ctx context.Context, channel *amqp091.Channel, queue string) error {
	deliveries, err := channel.Consume(queue, "", false, false, false, false, nil)

	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			p.processMessage(ctx, msg)
		}
	}
}
