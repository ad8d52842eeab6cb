package rabbit

import (
	"context"
	"encoding/json"
	"time"

	"order-matching-core/models"

	"github.com/rabbitmq/amqp091-go"
)

const (
	eventsExchange    = "matching.events"
	reportsExchange   = "matching.reports"
	responsesExchange = "matching.responses"

	executionEventRk = "execution"
	balanceUpdateRk  = "balance"
	clientReportRk   = "client"
	trustedReportRk  = "trusted"
	responseRk       = "response"

	matchingExchange = "matching.orders"
	matchingOrderRk  = "order"
)

type Sender struct {
	channel *amqp091.Channel
}

func NewSender(ctx context.Context, channel *amqp091.Channel) Sender {
	s := Sender{channel: channel}
	go s.handleGraceful(ctx)
	return s
}

func (s *Sender) sendMessage(ctx context.Context, message interface{}, exchange, rk string) error {
	bytes, err := json.Marshal(message)

	if err != nil {
		return err
	}

	err = s.channel.PublishWithContext(ctx, exchange, rk, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        bytes,
	})

	if err != nil {
		return err
	}
	return nil
}

func (s *Sender) SendExecutionEvent(ctx context.Context, event *models.ExecutionEvent) error {
	return s.sendMessage(ctx, event, eventsExchange, executionEventRk)
}

func (s *Sender) SendBalanceUpdate(ctx context.Context, update *models.BalanceUpdate) error {
	return s.sendMessage(ctx, update, eventsExchange, balanceUpdateRk)
}

func (s *Sender) SendClientReport(ctx context.Context, report *models.LimitOrdersReport) error {
	return s.sendMessage(ctx, report, reportsExchange, clientReportRk)
}

func (s *Sender) SendTrustedClientReport(ctx context.Context, report *models.LimitOrdersReport) error {
	return s.sendMessage(ctx, report, reportsExchange, trustedReportRk)
}

func (s *Sender) SendResponse(ctx context.Context, response *models.Response) error {
	return s.sendMessage(ctx, response, responsesExchange, responseRk)
}

// SendLimitOrderForMatching hands a live limit order to the external
// matching collaborator's queue.
func (s *Sender) SendLimitOrderForMatching(ctx context.Context, order *models.Order) error {
	return s.sendMessage(ctx, order, matchingExchange, matchingOrderRk)
}

func (s *Sender) handleGraceful(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.channel.Close()
			return
		default:
			time.Sleep(time.Millisecond * 100)
		}

	}
}
