package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"order-matching-core/models"
	"order-matching-core/validators"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type iAssetsProvider interface {
	GetAsset(assetId string) (models.Asset, error)
}

type iPairsProvider interface {
	GetAssetPair(assetPairId string) (models.AssetPair, error)
}

type iTrustedClients interface {
	IsTrustedClient(clientId string) bool
}

// Preprocessor is the parallel validation stage: workers pull raw
// messages from the intake queue, build the order-processing context,
// attach the validation verdict and forward the message unconditionally.
// Workers only read reference caches, so any number may run concurrently.
type Preprocessor struct {
	intake         <-chan *models.MessageWrapper
	preprocessed   chan<- *models.MessageWrapper
	responses      chan<- models.Response
	inputValidator *validators.InputValidator
	assets         iAssetsProvider
	pairs          iPairsProvider
	settings       iTrustedClients
	workers        int
}

func NewPreprocessor(intake <-chan *models.MessageWrapper,
	preprocessed chan<- *models.MessageWrapper,
	responses chan<- models.Response,
	inputValidator *validators.InputValidator,
	assets iAssetsProvider,
	pairs iPairsProvider,
	settings iTrustedClients,
	workers int) *Preprocessor {

	if workers < 1 {
		workers = 1
	}
	return &Preprocessor{
		intake:         intake,
		preprocessed:   preprocessed,
		responses:      responses,
		inputValidator: inputValidator,
		assets:         assets,
		pairs:          pairs,
		settings:       settings,
		workers:        workers,
	}
}

func (p *Preprocessor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}
	wg.Wait()
}

func (p *Preprocessor) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case wrapper, ok := <-p.intake:
			if !ok {
				return
			}
			p.preProcess(ctx, wrapper)
		}
	}
}

// preProcess handles exactly one message. A parse or context-build
// failure is the single path where a message is dropped instead of
// forwarded: its context may be unusable downstream.
func (p *Preprocessor) preProcess(ctx context.Context, wrapper *models.MessageWrapper) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("messageId", wrapper.MessageId).Errorln("Got error during message preprocessing: ", r)
			p.responses <- models.Response{MessageId: wrapper.MessageId, Status: models.MessageStatusRuntime}
		}
	}()

	switch wrapper.Kind {
	case models.KindLimitOrder:
		orderContext, err := p.buildOrderContext(wrapper)
		if err != nil {
			logrus.WithField("messageId", wrapper.MessageId).Errorln("Got error during message preprocessing: ", err.Error())
			p.responses <- models.Response{MessageId: wrapper.MessageId, Status: models.MessageStatusRuntime, Reason: err.Error()}
			return
		}
		orderContext.ValidationResult = p.validationResult(orderContext)
		wrapper.Context = orderContext
	case models.KindCancelOrders:
		wrapper.CancelCtx = &models.CancelOrdersContext{
			MessageId:        wrapper.MessageId,
			OrderIds:         wrapper.CancelOrders.OrderIds,
			ProcessedMessage: &models.ProcessedMessage{MessageId: wrapper.MessageId, Timestamp: time.Now().UTC().UnixMilli()},
		}
	}

	select {
	case <-ctx.Done():
	case p.preprocessed <- wrapper:
	}
}

func (p *Preprocessor) buildOrderContext(wrapper *models.MessageWrapper) (*models.OrderContext, error) {
	request := wrapper.LimitOrder
	if request == nil {
		return nil, fmt.Errorf("limit order payload is missing")
	}

	volume, err := decimal.NewFromString(request.Volume)
	if err != nil {
		return nil, fmt.Errorf("volume is not a number: %w", err)
	}
	price := decimal.Zero
	if request.Price != "" {
		if price, err = decimal.NewFromString(request.Price); err != nil {
			return nil, fmt.Errorf("price is not a number: %w", err)
		}
	}

	assetPair, err := p.pairs.GetAssetPair(request.AssetPairId)
	if err != nil {
		return nil, err
	}
	baseAsset, err := p.assets.GetAsset(assetPair.BaseAssetId)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().UnixMilli()
	order := &models.Order{
		Id:                 uuid.NewString(),
		ExternalId:         request.ExternalId,
		ClientId:           request.ClientId,
		AssetPairId:        request.AssetPairId,
		Type:               request.Type,
		Volume:             volume,
		RemainingVolume:    volume,
		Price:              price,
		LowerBound:         request.LowerBound,
		UpperBound:         request.UpperBound,
		Status:             models.StatusProcessing,
		CreationDate:       now,
		ExpirationDate:     request.ExpirationDate,
		PreviousExternalId: request.PreviousExternalId,
		Fees:               request.Fees,
	}

	return &models.OrderContext{
		MessageId:           wrapper.MessageId,
		Order:               order,
		AssetPair:           &assetPair,
		BaseAsset:           &baseAsset,
		IsTrustedClient:     p.settings.IsTrustedClient(request.ClientId),
		CancelOrders:        request.CancelOrders,
		ProcessedMessage:    &models.ProcessedMessage{MessageId: wrapper.MessageId, Timestamp: now},
		ProcessingStartTime: now,
	}, nil
}

func (p *Preprocessor) validationResult(orderContext *models.OrderContext) *models.ValidationResult {
	var err error
	switch orderContext.Order.Type {
	case models.OrderTypeStopLimit:
		err = p.inputValidator.ValidateStopOrder(orderContext.Order, orderContext.AssetPair, orderContext.BaseAsset)
	default:
		err = p.inputValidator.ValidateLimitOrder(orderContext.Order, orderContext.AssetPair, orderContext.BaseAsset)
	}

	if err != nil {
		if validationErr, ok := err.(*validators.OrderValidationError); ok {
			return &models.ValidationResult{Valid: false, Reason: validationErr.Reason, Status: validationErr.Status}
		}
		return &models.ValidationResult{Valid: false, Reason: err.Error(), Status: models.StatusCancelled}
	}
	return &models.ValidationResult{Valid: true}
}
