package models

type MessageKind int

const (
	KindLimitOrder MessageKind = iota
	KindCancelOrders
)

type MessageStatus int

const (
	MessageStatusOk MessageStatus = iota
	MessageStatusRuntime
	MessageStatusBadRequest
	MessageStatusNotEnoughFunds
	MessageStatusDisabledAsset
	MessageStatusInvalidFee
	MessageStatusInvalidPrice
	MessageStatusInvalidPriceAccuracy
	MessageStatusInvalidVolume
	MessageStatusInvalidVolumeAccuracy
	MessageStatusTooSmallVolume
	MessageStatusLeadToNegativeSpread
	MessageStatusNotFoundPrevious
	MessageStatusCancelled
)

// ToMessageStatus maps a terminal order status onto the wire status code
// carried by the response.
func ToMessageStatus(status OrderStatus) MessageStatus {
	switch status {
	case StatusNotEnoughFunds:
		return MessageStatusNotEnoughFunds
	case StatusDisabledAsset:
		return MessageStatusDisabledAsset
	case StatusInvalidFee:
		return MessageStatusInvalidFee
	case StatusInvalidPrice:
		return MessageStatusInvalidPrice
	case StatusInvalidPriceAccuracy:
		return MessageStatusInvalidPriceAccuracy
	case StatusInvalidVolume:
		return MessageStatusInvalidVolume
	case StatusInvalidVolumeAccuracy:
		return MessageStatusInvalidVolumeAccuracy
	case StatusTooSmallVolume:
		return MessageStatusTooSmallVolume
	case StatusLeadToNegativeSpread:
		return MessageStatusLeadToNegativeSpread
	case StatusNotFoundPrevious:
		return MessageStatusNotFoundPrevious
	case StatusCancelled:
		return MessageStatusCancelled
	default:
		return MessageStatusOk
	}
}

// ProcessedMessage is the deduplication marker persisted together with the
// mutation it belongs to.
type ProcessedMessage struct {
	MessageId string `json:"message_id"`
	Timestamp int64  `json:"timestamp"`
}

// ValidationResult is produced once per order by the preprocessing stage
// and consumed at most once downstream.
type ValidationResult struct {
	Valid  bool
	Reason string
	Status OrderStatus
}

// Response is the single reply written back for an inbound message.
type Response struct {
	MessageId        string        `json:"message_id"`
	ExternalId       string        `json:"external_id,omitempty"`
	MatchingEngineId string        `json:"matching_engine_id,omitempty"`
	Status           MessageStatus `json:"status"`
	Reason           string        `json:"reason,omitempty"`
}

// OrderContext is the per-message processing context built by the
// preprocessor and mutated only inside the serialized execution zone.
type OrderContext struct {
	MessageId           string
	Order               *Order
	AssetPair           *AssetPair
	BaseAsset           *Asset
	IsTrustedClient     bool
	CancelOrders        bool
	ProcessedMessage    *ProcessedMessage
	ValidationResult    *ValidationResult
	ProcessingStartTime int64
}

type CancelOrdersContext struct {
	MessageId        string
	OrderIds         []string
	ProcessedMessage *ProcessedMessage
}

// MessageWrapper carries one inbound message through the intake and
// preprocessed queues. Only the request fields are part of the wire
// contract; the contexts are attached in process.
type MessageWrapper struct {
	MessageId    string               `json:"message_id"`
	Kind         MessageKind          `json:"kind"`
	LimitOrder   *LimitOrderRequest   `json:"limit_order,omitempty"`
	CancelOrders *CancelOrdersRequest `json:"cancel_orders,omitempty"`
	Context      *OrderContext        `json:"-"`
	CancelCtx    *CancelOrdersContext `json:"-"`
}

type LimitOrderRequest struct {
	ExternalId         string            `json:"external_id"`
	ClientId           string            `json:"client_id"`
	AssetPairId        string            `json:"asset_pair_id"`
	Type               OrderType         `json:"type"`
	Volume             string            `json:"volume"`
	Price              string            `json:"price,omitempty"`
	LowerBound         *PriceBound       `json:"lower_bound,omitempty"`
	UpperBound         *PriceBound       `json:"upper_bound,omitempty"`
	ExpirationDate     int64             `json:"expiration_date,omitempty"`
	CancelOrders       bool              `json:"cancel_orders,omitempty"`
	PreviousExternalId string            `json:"previous_external_id,omitempty"`
	Fees               []*FeeInstruction `json:"fees,omitempty"`
}

type CancelOrdersRequest struct {
	OrderIds []string `json:"order_ids"`
}

type LimitOrderWithTrades struct {
	Order  *Order   `json:"order"`
	Trades []*Trade `json:"trades,omitempty"`
}

type Trade struct {
	TradeId   string `json:"trade_id"`
	Volume    string `json:"volume"`
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

type LimitOrdersReport struct {
	MessageId string                  `json:"message_id"`
	Orders    []*LimitOrderWithTrades `json:"orders"`
}

type BalanceUpdate struct {
	Id        string                `json:"id"`
	MessageId string                `json:"message_id"`
	Timestamp int64                 `json:"timestamp"`
	Updates   []ClientBalanceUpdate `json:"updates"`
}

// ExecutionEvent is published after a mutation commits, under the same
// sequence number the mutation was persisted with.
type ExecutionEvent struct {
	SequenceNumber int64                   `json:"sequence_number"`
	MessageId      string                  `json:"message_id"`
	Timestamp      int64                   `json:"timestamp"`
	BalanceUpdates []ClientBalanceUpdate   `json:"balance_updates,omitempty"`
	Orders         []*LimitOrderWithTrades `json:"orders,omitempty"`
}

// OrderBookSideDiff is one side of one pair's book, snapshotted for
// persistence. IsStopBook separates the stop-order book's snapshots from
// the live book's under the same pair and side.
type OrderBookSideDiff struct {
	AssetPairId string   `json:"asset_pair_id"`
	IsBuySide   bool     `json:"is_buy_side"`
	IsStopBook  bool     `json:"is_stop_book,omitempty"`
	Orders      []*Order `json:"orders"`
}

// OrderBooksDiff is the order-book part of one commit unit.
type OrderBooksDiff struct {
	Sides          []OrderBookSideDiff `json:"sides"`
	OrdersToSave   []*Order            `json:"orders_to_save,omitempty"`
	OrdersToRemove []*Order            `json:"orders_to_remove,omitempty"`
}
