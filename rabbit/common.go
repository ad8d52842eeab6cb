package rabbit

import (
	"time"

	"order-matching-core/staticerr"

	"github.com/rabbitmq/amqp091-go"
)

const dialRetryInterval = time.Millisecond * 100

// GetRabbitConnection retries the dial until it succeeds or the timeout
// elapses, so the service survives a broker that comes up after it does.
func GetRabbitConnection(connectionString string, timeout time.Duration) (*amqp091.Connection, error) {
	deadline := time.After(timeout)
	for {
		select {
		case <-deadline:
			return nil, staticerr.ErrorRabbitConnectionFail
		default:
			connect, err := amqp091.Dial(connectionString)

			if err != nil {
				time.Sleep(dialRetryInterval)
				continue
			}

			return connect, nil
		}
	}
}
