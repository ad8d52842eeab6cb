package service

import (
	"context"

	"order-matching-core/models"
	"order-matching-core/staticerr"

	"github.com/sirupsen/logrus"
)

// CancelService drives one batch cancellation through the three-step
// canceller protocol and the persist-then-commit cycle. A batch may mix
// live limit orders and parked stop orders; each book variant gets its
// own canceller with the matching reservation strategy, and both plans
// land in one commit unit. Runs only inside the serialized execution
// zone.
type CancelService struct {
	limitOrderService *OrderBookService
	stopOrderService  *OrderBookService
	pairsHolder       *AssetsPairsHolder
	assetsHolder      *AssetsHolder
	balancesHolder    *BalancesHolder
	sequenceHolder    *SequenceNumberHolder
	events            iEventPublisher
	clientReports     chan<- *models.LimitOrdersReport
	trustedReports    chan<- *models.LimitOrdersReport
	responses         chan<- models.Response
}

func NewCancelService(limitOrderService, stopOrderService *OrderBookService,
	pairsHolder *AssetsPairsHolder,
	assetsHolder *AssetsHolder,
	balancesHolder *BalancesHolder,
	sequenceHolder *SequenceNumberHolder,
	events iEventPublisher,
	clientReports, trustedReports chan<- *models.LimitOrdersReport,
	responses chan<- models.Response) *CancelService {

	return &CancelService{
		limitOrderService: limitOrderService,
		stopOrderService:  stopOrderService,
		pairsHolder:       pairsHolder,
		assetsHolder:      assetsHolder,
		balancesHolder:    balancesHolder,
		sequenceHolder:    sequenceHolder,
		events:            events,
		clientReports:     clientReports,
		trustedReports:    trustedReports,
		responses:         responses,
	}
}

// ProcessCancelBatch cancels or removes the referenced orders as one
// atomic unit across every touched pair, side and book.
func (s *CancelService) ProcessCancelBatch(ctx context.Context, cancelContext *models.CancelOrdersContext) {
	now := nowMillis()

	var limitOrders, stopOrders []*models.Order
	for _, orderId := range cancelContext.OrderIds {
		if order := s.limitOrderService.GetOrder(orderId); order != nil {
			limitOrders = append(limitOrders, order)
			continue
		}
		if order := s.stopOrderService.GetOrder(orderId); order != nil {
			stopOrders = append(stopOrders, order)
			continue
		}
		logrus.WithFields(logrus.Fields{
			"messageId": cancelContext.MessageId,
			"orderId":   orderId,
		}).Warningln("Order to cancel not found, skipping...")
	}

	if len(limitOrders) == 0 && len(stopOrders) == 0 {
		s.responses <- models.Response{
			MessageId: cancelContext.MessageId,
			Status:    models.MessageStatusBadRequest,
			Reason:    staticerr.ErrorOrderNotFound.Error(),
		}
		return
	}

	limitCanceller := NewLimitOrdersCanceller(s.pairsHolder,
		s.assetsHolder,
		s.balancesHolder,
		s.limitOrderService,
		LimitOrderReservedVolume,
		now)
	stopCanceller := NewLimitOrdersCanceller(s.pairsHolder,
		s.assetsHolder,
		s.balancesHolder,
		s.stopOrderService,
		StopOrderReservedVolume,
		now)

	limitPlan := limitCanceller.Plan(limitCanceller.Classify(limitOrders))
	stopPlan := stopCanceller.Plan(stopCanceller.Classify(stopOrders))

	operations := append(append([]models.WalletOperation{}, limitPlan.WalletOperations...), stopPlan.WalletOperations...)
	processor := s.balancesHolder.CreateWalletProcessor()
	if err := processor.PreProcess(operations, true); err != nil {
		logrus.WithField("messageId", cancelContext.MessageId).Errorln("Cancel batch preprocessing failed, reason: ", err.Error())
		s.responses <- models.Response{
			MessageId: cancelContext.MessageId,
			Status:    models.MessageStatusRuntime,
			Reason:    err.Error(),
		}
		return
	}

	booksDiff := limitPlan.BooksDiff(false)
	stopDiff := stopPlan.BooksDiff(true)
	booksDiff.Sides = append(booksDiff.Sides, stopDiff.Sides...)
	booksDiff.OrdersToRemove = append(booksDiff.OrdersToRemove, stopDiff.OrdersToRemove...)

	sequenceNumber := s.sequenceHolder.GetNewValue()
	if !processor.PersistBalances(ctx, cancelContext.ProcessedMessage, booksDiff, sequenceNumber) {
		logrus.WithField("messageId", cancelContext.MessageId).Errorln("Unable to save result data")
		s.responses <- models.Response{
			MessageId: cancelContext.MessageId,
			Status:    models.MessageStatusRuntime,
			Reason:    "Unable to save result data",
		}
		return
	}

	balanceUpdates := processor.Apply()
	limitCanceller.Commit(limitPlan)
	stopCanceller.Commit(stopPlan)

	s.responses <- models.Response{
		MessageId: cancelContext.MessageId,
		Status:    models.MessageStatusOk,
	}

	clientReports := append(append([]*models.LimitOrderWithTrades{}, limitPlan.ClientReports...), stopPlan.ClientReports...)
	trustedReports := append(append([]*models.LimitOrderWithTrades{}, limitPlan.TrustedClientReports...), stopPlan.TrustedClientReports...)

	if len(clientReports) > 0 {
		s.clientReports <- &models.LimitOrdersReport{MessageId: cancelContext.MessageId, Orders: clientReports}
	}
	if len(trustedReports) > 0 {
		s.trustedReports <- &models.LimitOrdersReport{MessageId: cancelContext.MessageId, Orders: trustedReports}
	}

	if err := s.events.SendExecutionEvent(ctx, &models.ExecutionEvent{
		SequenceNumber: sequenceNumber,
		MessageId:      cancelContext.MessageId,
		Timestamp:      now,
		BalanceUpdates: balanceUpdates,
		Orders:         clientReports,
	}); err != nil {
		logrus.WithField("messageId", cancelContext.MessageId).Errorln("Send execution event failed, reason: ", err.Error())
	}

	logrus.WithFields(logrus.Fields{
		"messageId":      cancelContext.MessageId,
		"sequenceNumber": sequenceNumber,
		"orders":         len(limitOrders) + len(stopOrders),
	}).Infoln("Cancel batch committed")
}
