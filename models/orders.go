package models

import (
	"github.com/shopspring/decimal"
)

type OrderType int

const (
	OrderTypeLimit OrderType = iota
	OrderTypeStopLimit
)

type OrderStatus string

const (
	StatusInOrderBook           OrderStatus = "InOrderBook"
	StatusProcessing            OrderStatus = "Processing"
	StatusPending               OrderStatus = "Pending"
	StatusMatched               OrderStatus = "Matched"
	StatusPartiallyMatched      OrderStatus = "PartiallyMatched"
	StatusCancelled             OrderStatus = "Cancelled"
	StatusNotEnoughFunds        OrderStatus = "NotEnoughFunds"
	StatusNotFoundPrevious      OrderStatus = "NotFoundPrevious"
	StatusDisabledAsset         OrderStatus = "DisabledAsset"
	StatusInvalidFee            OrderStatus = "InvalidFee"
	StatusInvalidPrice          OrderStatus = "InvalidPrice"
	StatusInvalidPriceAccuracy  OrderStatus = "InvalidPriceAccuracy"
	StatusInvalidVolume         OrderStatus = "InvalidVolume"
	StatusInvalidVolumeAccuracy OrderStatus = "InvalidVolumeAccuracy"
	StatusTooSmallVolume        OrderStatus = "TooSmallVolume"
	StatusLeadToNegativeSpread  OrderStatus = "LeadToNegativeSpread"
)

type FeeSizeType int

const (
	FeeSizePercentage FeeSizeType = iota
	FeeSizeAbsolute
)

type FeeInstruction struct {
	SizeType       FeeSizeType     `json:"size_type"`
	Size           decimal.Decimal `json:"size"`
	SourceClientId string          `json:"source_client_id,omitempty"`
	TargetClientId string          `json:"target_client_id,omitempty"`
}

// PriceBound couples a stop trigger price with the limit price the order
// takes once that trigger fires. The two always travel together.
type PriceBound struct {
	TriggerPrice decimal.Decimal `json:"trigger_price"`
	LimitPrice   decimal.Decimal `json:"limit_price"`
}

// Order is a limit or stop-limit order. Volume is signed: positive for
// buy, negative for sell.
type Order struct {
	Id                 string            `json:"id"`
	ExternalId         string            `json:"external_id"`
	ClientId           string            `json:"client_id"`
	AssetPairId        string            `json:"asset_pair_id"`
	Type               OrderType         `json:"type"`
	Volume             decimal.Decimal   `json:"volume"`
	RemainingVolume    decimal.Decimal   `json:"remaining_volume"`
	Price              decimal.Decimal   `json:"price"`
	LowerBound         *PriceBound       `json:"lower_bound,omitempty"`
	UpperBound         *PriceBound       `json:"upper_bound,omitempty"`
	Status             OrderStatus       `json:"status"`
	StatusDate         int64             `json:"status_date,omitempty"`
	CreationDate       int64             `json:"creation_date,omitempty"`
	ExpirationDate     int64             `json:"expiration_date,omitempty"`
	ReservedVolume     decimal.Decimal   `json:"reserved_volume"`
	PreviousExternalId string            `json:"previous_external_id,omitempty"`
	Fees               []*FeeInstruction `json:"fees,omitempty"`
}

func (o *Order) IsBuySide() bool {
	return o.Volume.Sign() > 0
}

func (o *Order) AbsVolume() decimal.Decimal {
	return o.Volume.Abs()
}

func (o *Order) IsPartiallyMatched() bool {
	return !o.RemainingVolume.Equal(o.Volume)
}

// IsExpired reports whether the order's expiry has passed. A zero
// expiration date means the order never expires.
func (o *Order) IsExpired(nowMillis int64) bool {
	return o.ExpirationDate > 0 && o.ExpirationDate <= nowMillis
}

func (o *Order) UpdateStatus(status OrderStatus, atMillis int64) {
	o.Status = status
	o.StatusDate = atMillis
}

// StopLimitPrice picks the limit price used for reservation sizing of a
// parked stop order: the upper bound wins when both are armed.
func (o *Order) StopLimitPrice() decimal.Decimal {
	if o.UpperBound != nil {
		return o.UpperBound.LimitPrice
	}
	if o.LowerBound != nil {
		return o.LowerBound.LimitPrice
	}
	return decimal.Zero
}
