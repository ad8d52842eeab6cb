package service

import (
	"context"
	"errors"
	"time"

	"order-matching-core/models"
	"order-matching-core/utils"
	"order-matching-core/validators"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// iMatchingEngine is the external matching collaborator: it takes over a
// live limit order for immediate price-time-priority execution and owns
// balance accounting for it from that point on.
type iMatchingEngine interface {
	ProcessLimitOrder(ctx context.Context, orderContext *models.OrderContext, initialMatchedVolume decimal.Decimal)
}

type iEventPublisher interface {
	SendExecutionEvent(ctx context.Context, event *models.ExecutionEvent) error
	SendBalanceUpdate(ctx context.Context, update *models.BalanceUpdate) error
}

// StopLimitOrderProcessor decides whether an incoming stop order fires
// immediately into the live book or is parked in the stop-order book, and
// owns the reservation accounting for parked orders.
type StopLimitOrderProcessor struct {
	limitOrderService *OrderBookService
	stopOrderService  *OrderBookService
	matchingEngine    iMatchingEngine
	assetsHolder      *AssetsHolder
	balancesHolder    *BalancesHolder
	businessValidator *validators.BusinessValidator
	sequenceHolder    *SequenceNumberHolder
	events            iEventPublisher
	clientReports     chan<- *models.LimitOrdersReport
	responses         chan<- models.Response
}

func NewStopLimitOrderProcessor(limitOrderService, stopOrderService *OrderBookService,
	matchingEngine iMatchingEngine,
	assetsHolder *AssetsHolder,
	balancesHolder *BalancesHolder,
	businessValidator *validators.BusinessValidator,
	sequenceHolder *SequenceNumberHolder,
	events iEventPublisher,
	clientReports chan<- *models.LimitOrdersReport,
	responses chan<- models.Response) *StopLimitOrderProcessor {

	return &StopLimitOrderProcessor{
		limitOrderService: limitOrderService,
		stopOrderService:  stopOrderService,
		matchingEngine:    matchingEngine,
		assetsHolder:      assetsHolder,
		balancesHolder:    balancesHolder,
		businessValidator: businessValidator,
		sequenceHolder:    sequenceHolder,
		events:            events,
		clientReports:     clientReports,
		responses:         responses,
	}
}

// ProcessStopOrder runs the Received -> {Rejected, TriggeredImmediate,
// Parked} state machine for one stop order. Must be called from the
// serialized execution zone only.
func (p *StopLimitOrderProcessor) ProcessStopOrder(ctx context.Context, orderContext *models.OrderContext) {
	order := orderContext.Order
	assetPair := orderContext.AssetPair

	limitAsset, err := p.assetsHolder.GetAsset(assetPair.LimitAssetId(order.IsBuySide()))
	if err != nil {
		logrus.WithField("orderId", order.ExternalId).Errorln("Unknown limit asset, reason: ", err.Error())
		p.responses <- models.Response{
			MessageId:  orderContext.MessageId,
			ExternalId: order.ExternalId,
			Status:     models.MessageStatusRuntime,
			Reason:     err.Error(),
		}
		return
	}

	var requiredVolume decimal.Decimal
	if order.IsBuySide() {
		requiredVolume = utils.SetScaleRoundUp(order.Volume.Mul(order.StopLimitPrice()), limitAsset.Accuracy)
	} else {
		requiredVolume = order.AbsVolume()
	}

	report := &models.LimitOrdersReport{MessageId: orderContext.MessageId}
	cancelVolume := decimal.Zero
	var ordersToCancel []*models.Order
	if orderContext.CancelOrders {
		for _, orderToCancel := range p.stopOrderService.SearchOrders(order.ClientId, order.AssetPairId, order.IsBuySide()) {
			ordersToCancel = append(ordersToCancel, orderToCancel)
			report.Orders = append(report.Orders, &models.LimitOrderWithTrades{Order: orderToCancel})
			cancelVolume = cancelVolume.Add(orderToCancel.ReservedVolume)
		}
	}

	availableBalance := utils.SetScaleRoundHalfUp(
		p.balancesHolder.GetAvailableBalance(order.ClientId, limitAsset.AssetId, cancelVolume),
		limitAsset.Accuracy)

	if validationErr := p.validate(orderContext, availableBalance, requiredVolume); validationErr != nil {
		p.rejectOrder(ctx, orderContext, validationErr, limitAsset, cancelVolume, ordersToCancel, report)
		return
	}

	if price, triggered := p.triggerPrice(order); triggered {
		liveBook := p.limitOrderService.GetOrderBook(order.AssetPairId)
		logrus.WithFields(logrus.Fields{
			"orderId":      order.ExternalId,
			"bestBidPrice": liveBook.BestBidPrice().String(),
			"bestAskPrice": liveBook.BestAskPrice().String(),
		}).Infoln("Process stop order immediately")

		order.UpdateStatus(models.StatusInOrderBook, orderContext.ProcessingStartTime)
		order.Price = price
		p.matchingEngine.ProcessLimitOrder(ctx, orderContext, decimal.Zero)
		return
	}

	p.parkOrder(ctx, orderContext, limitAsset, requiredVolume, cancelVolume, ordersToCancel, report)
}

// validate consumes the preprocessing verdict first; a failed input
// validation short-circuits business validation.
func (p *StopLimitOrderProcessor) validate(orderContext *models.OrderContext,
	availableBalance, requiredVolume decimal.Decimal) *validators.OrderValidationError {

	if result := orderContext.ValidationResult; result != nil && !result.Valid {
		return &validators.OrderValidationError{Status: result.Status, Reason: result.Reason}
	}

	err := p.businessValidator.PerformValidation(orderContext.IsTrustedClient,
		orderContext.Order,
		availableBalance,
		requiredVolume,
		p.limitOrderService.GetOrderBook(orderContext.Order.AssetPairId),
		orderContext.ProcessingStartTime)
	if err == nil {
		return nil
	}

	var validationErr *validators.OrderValidationError
	if errors.As(err, &validationErr) {
		return validationErr
	}
	return &validators.OrderValidationError{Status: models.StatusCancelled, Reason: err.Error()}
}

// triggerPrice evaluates the stop condition against the live book. For a
// buy order the best ask is the reference price, for a sell the best bid.
func (p *StopLimitOrderProcessor) triggerPrice(order *models.Order) (decimal.Decimal, bool) {
	liveBook := p.limitOrderService.GetOrderBook(order.AssetPairId)

	reference := liveBook.BestBidPrice()
	if order.IsBuySide() {
		reference = liveBook.BestAskPrice()
	}

	if order.LowerBound != nil && reference.Sign() > 0 && reference.LessThanOrEqual(order.LowerBound.TriggerPrice) {
		return order.LowerBound.LimitPrice, true
	}
	if order.UpperBound != nil && reference.GreaterThanOrEqual(order.UpperBound.TriggerPrice) {
		return order.UpperBound.LimitPrice, true
	}
	return decimal.Zero, false
}

// rejectOrder releases only the cancellation-set reservations, persists
// the removal diff, and publishes the rejection. On persistence failure
// the in-memory state stays exactly as before the attempt.
func (p *StopLimitOrderProcessor) rejectOrder(ctx context.Context,
	orderContext *models.OrderContext,
	validationErr *validators.OrderValidationError,
	limitAsset models.Asset,
	cancelVolume decimal.Decimal,
	ordersToCancel []*models.Order,
	report *models.LimitOrdersReport) {

	order := orderContext.Order
	logrus.WithField("orderId", order.ExternalId).Infoln("Stop limit order rejected, reason: ", validationErr.Reason)

	order.UpdateStatus(validationErr.Status, orderContext.ProcessingStartTime)
	sequenceNumber := p.sequenceHolder.GetNewValue()

	var balanceUpdates []models.ClientBalanceUpdate
	if cancelVolume.Sign() > 0 {
		processor := p.balancesHolder.CreateWalletProcessor()
		if err := processor.PreProcess([]models.WalletOperation{{
			ClientId:       order.ClientId,
			AssetId:        limitAsset.AssetId,
			Amount:         decimal.Zero,
			ReservedAmount: cancelVolume.Neg(),
			MessageId:      orderContext.MessageId,
			Timestamp:      orderContext.ProcessingStartTime,
		}}, true); err != nil {
			logrus.WithField("orderId", order.ExternalId).Errorln("Release of cancelled reservations failed, reason: ", err.Error())
		}

		bookCopy := p.stopOrderService.GetOrderBook(order.AssetPairId).Copy()
		for _, orderToCancel := range ordersToCancel {
			bookCopy.RemoveOrder(orderToCancel)
		}

		booksDiff := &models.OrderBooksDiff{
			Sides: []models.OrderBookSideDiff{{
				AssetPairId: order.AssetPairId,
				IsBuySide:   order.IsBuySide(),
				IsStopBook:  true,
				Orders:      bookCopy.SideOrders(order.IsBuySide()),
			}},
			OrdersToRemove: ordersToCancel,
		}

		if !processor.PersistBalances(ctx, orderContext.ProcessedMessage, booksDiff, sequenceNumber) {
			p.writePersistenceErrorResponse(orderContext)
			return
		}

		balanceUpdates = processor.Apply()
		p.stopOrderService.SetOrderBook(order.AssetPairId, bookCopy)
		p.stopOrderService.CancelLimitOrders(ordersToCancel, orderContext.ProcessingStartTime)

		if err := p.events.SendBalanceUpdate(ctx, &models.BalanceUpdate{
			Id:        order.ExternalId,
			MessageId: orderContext.MessageId,
			Timestamp: orderContext.ProcessingStartTime,
			Updates:   balanceUpdates,
		}); err != nil {
			logrus.WithField("orderId", order.ExternalId).Errorln("Send balance update failed, reason: ", err.Error())
		}
	}

	p.responses <- models.Response{
		MessageId:        orderContext.MessageId,
		ExternalId:       order.ExternalId,
		MatchingEngineId: order.Id,
		Status:           models.ToMessageStatus(validationErr.Status),
		Reason:           validationErr.Reason,
	}

	report.Orders = append(report.Orders, &models.LimitOrderWithTrades{Order: order})
	p.clientReports <- report

	if err := p.events.SendExecutionEvent(ctx, &models.ExecutionEvent{
		SequenceNumber: sequenceNumber,
		MessageId:      orderContext.MessageId,
		Timestamp:      orderContext.ProcessingStartTime,
		BalanceUpdates: balanceUpdates,
		Orders:         report.Orders,
	}); err != nil {
		logrus.WithField("orderId", order.ExternalId).Errorln("Send execution event failed, reason: ", err.Error())
	}
}

// parkOrder reserves the required volume, swaps the cancellation set for
// the new order in the stop book, and commits only after persistence.
func (p *StopLimitOrderProcessor) parkOrder(ctx context.Context,
	orderContext *models.OrderContext,
	limitAsset models.Asset,
	requiredVolume, cancelVolume decimal.Decimal,
	ordersToCancel []*models.Order,
	report *models.LimitOrdersReport) {

	order := orderContext.Order
	sequenceNumber := p.sequenceHolder.GetNewValue()

	processor := p.balancesHolder.CreateWalletProcessor()
	if err := processor.PreProcess([]models.WalletOperation{{
		ClientId:       order.ClientId,
		AssetId:        limitAsset.AssetId,
		Amount:         decimal.Zero,
		ReservedAmount: requiredVolume.Sub(cancelVolume),
		MessageId:      orderContext.MessageId,
		Timestamp:      orderContext.ProcessingStartTime,
	}}, orderContext.IsTrustedClient); err != nil {
		logrus.WithField("orderId", order.ExternalId).Errorln("Reservation failed, reason: ", err.Error())
		p.responses <- models.Response{
			MessageId:        orderContext.MessageId,
			ExternalId:       order.ExternalId,
			MatchingEngineId: order.Id,
			Status:           models.MessageStatusRuntime,
			Reason:           err.Error(),
		}
		return
	}

	order.UpdateStatus(models.StatusInOrderBook, orderContext.ProcessingStartTime)
	order.ReservedVolume = requiredVolume

	bookCopy := p.stopOrderService.GetOrderBook(order.AssetPairId).Copy()
	for _, orderToCancel := range ordersToCancel {
		bookCopy.RemoveOrder(orderToCancel)
	}
	bookCopy.AddOrder(order)

	booksDiff := &models.OrderBooksDiff{
		Sides: []models.OrderBookSideDiff{{
			AssetPairId: order.AssetPairId,
			IsBuySide:   order.IsBuySide(),
			IsStopBook:  true,
			Orders:      bookCopy.SideOrders(order.IsBuySide()),
		}},
		OrdersToSave:   []*models.Order{order},
		OrdersToRemove: ordersToCancel,
	}

	if !processor.PersistBalances(ctx, orderContext.ProcessedMessage, booksDiff, sequenceNumber) {
		p.writePersistenceErrorResponse(orderContext)
		return
	}

	balanceUpdates := processor.Apply()
	p.stopOrderService.SetOrderBook(order.AssetPairId, bookCopy)
	p.stopOrderService.CancelLimitOrders(ordersToCancel, orderContext.ProcessingStartTime)
	p.stopOrderService.RegisterOrder(order)

	if err := p.events.SendBalanceUpdate(ctx, &models.BalanceUpdate{
		Id:        order.ExternalId,
		MessageId: orderContext.MessageId,
		Timestamp: orderContext.ProcessingStartTime,
		Updates:   balanceUpdates,
	}); err != nil {
		logrus.WithField("orderId", order.ExternalId).Errorln("Send balance update failed, reason: ", err.Error())
	}

	p.responses <- models.Response{
		MessageId:        orderContext.MessageId,
		ExternalId:       order.ExternalId,
		MatchingEngineId: order.Id,
		Status:           models.MessageStatusOk,
	}

	logrus.WithField("orderId", order.ExternalId).Infoln("Stop limit order added to stop order book")

	report.Orders = append(report.Orders, &models.LimitOrderWithTrades{Order: order})
	p.clientReports <- report

	if err := p.events.SendExecutionEvent(ctx, &models.ExecutionEvent{
		SequenceNumber: sequenceNumber,
		MessageId:      orderContext.MessageId,
		Timestamp:      orderContext.ProcessingStartTime,
		BalanceUpdates: balanceUpdates,
		Orders:         report.Orders,
	}); err != nil {
		logrus.WithField("orderId", order.ExternalId).Errorln("Send execution event failed, reason: ", err.Error())
	}
}

func (p *StopLimitOrderProcessor) writePersistenceErrorResponse(orderContext *models.OrderContext) {
	order := orderContext.Order
	logrus.WithField("orderId", order.ExternalId).Errorln("Unable to save result data")
	p.responses <- models.Response{
		MessageId:        orderContext.MessageId,
		ExternalId:       order.ExternalId,
		MatchingEngineId: order.Id,
		Status:           models.ToMessageStatus(order.Status),
		Reason:           "Unable to save result data",
	}
}

func nowMillis() int64 {
	return time.Now().UTC().UnixMilli()
}
