package service

import (
	"context"

	"order-matching-core/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Executor is the serialized execution zone: one goroutine consuming the
// preprocessed queue in FIFO order and owning every mutation of order
// books, balances and sequence numbers.
type Executor struct {
	preprocessed      <-chan *models.MessageWrapper
	stopProcessor     *StopLimitOrderProcessor
	matchingEngine    iMatchingEngine
	cancelService     *CancelService
	limitOrderService *OrderBookService
	stopOrderService  *OrderBookService
	responses         chan<- models.Response
}

func NewExecutor(preprocessed <-chan *models.MessageWrapper,
	stopProcessor *StopLimitOrderProcessor,
	matchingEngine iMatchingEngine,
	cancelService *CancelService,
	limitOrderService, stopOrderService *OrderBookService,
	responses chan<- models.Response) *Executor {

	return &Executor{
		preprocessed:      preprocessed,
		stopProcessor:     stopProcessor,
		matchingEngine:    matchingEngine,
		cancelService:     cancelService,
		limitOrderService: limitOrderService,
		stopOrderService:  stopOrderService,
		responses:         responses,
	}
}

func (e *Executor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case wrapper, ok := <-e.preprocessed:
			if !ok {
				return
			}
			e.handle(ctx, wrapper)
		}
	}
}

func (e *Executor) handle(ctx context.Context, wrapper *models.MessageWrapper) {
	switch wrapper.Kind {
	case models.KindLimitOrder:
		e.handleLimitOrder(ctx, wrapper.Context)
	case models.KindCancelOrders:
		e.cancelService.ProcessCancelBatch(ctx, wrapper.CancelCtx)
	default:
		logrus.WithField("messageId", wrapper.MessageId).Errorln("Unknown message kind, dropping")
	}
}

func (e *Executor) handleLimitOrder(ctx context.Context, orderContext *models.OrderContext) {
	order := orderContext.Order

	e.resolvePreviousOrder(orderContext)

	if order.Type == models.OrderTypeStopLimit {
		e.stopProcessor.ProcessStopOrder(ctx, orderContext)
		return
	}
	e.matchingEngine.ProcessLimitOrder(ctx, orderContext, decimal.Zero)
}

// resolvePreviousOrder marks a cancel-replace whose target cannot be
// found; business validation turns the marker into NotFoundPrevious.
func (e *Executor) resolvePreviousOrder(orderContext *models.OrderContext) {
	order := orderContext.Order
	if order.PreviousExternalId == "" {
		return
	}
	previous := e.limitOrderService.GetOrderByExternalId(order.ClientId, order.PreviousExternalId)
	if previous == nil {
		previous = e.stopOrderService.GetOrderByExternalId(order.ClientId, order.PreviousExternalId)
	}
	if previous == nil {
		order.UpdateStatus(models.StatusNotFoundPrevious, orderContext.ProcessingStartTime)
	}
}
