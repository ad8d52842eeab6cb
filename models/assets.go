package models

import (
	"github.com/shopspring/decimal"
)

type Asset struct {
	AssetId  string `json:"asset_id"`
	Accuracy int32  `json:"accuracy"`
}

type AssetPair struct {
	AssetPairId    string           `json:"asset_pair_id"`
	BaseAssetId    string           `json:"base_asset_id"`
	QuotingAssetId string           `json:"quoting_asset_id"`
	Accuracy       int32            `json:"accuracy"`
	MinVolume      *decimal.Decimal `json:"min_volume,omitempty"`
	MaxVolume      *decimal.Decimal `json:"max_volume,omitempty"`
	MaxValue       *decimal.Decimal `json:"max_value,omitempty"`
}

// LimitAssetId resolves the asset reserved against an order on this pair:
// the quoting asset for a buy, the base asset for a sell.
func (p *AssetPair) LimitAssetId(isBuySide bool) string {
	if isBuySide {
		return p.QuotingAssetId
	}
	return p.BaseAssetId
}

type Balance struct {
	Balance  decimal.Decimal `json:"balance"`
	Reserved decimal.Decimal `json:"reserved"`
}

func (b Balance) Available() decimal.Decimal {
	return b.Balance.Sub(b.Reserved)
}

// WalletOperation is an immutable balance delta, the unit of persistence
// for balance effects.
type WalletOperation struct {
	ClientId       string          `json:"client_id"`
	AssetId        string          `json:"asset_id"`
	Amount         decimal.Decimal `json:"amount"`
	ReservedAmount decimal.Decimal `json:"reserved_amount"`
	MessageId      string          `json:"message_id,omitempty"`
	Timestamp      int64           `json:"timestamp,omitempty"`
}

// BalanceSnapshot is the post-mutation value of one (client, asset)
// balance, part of the persisted commit unit.
type BalanceSnapshot struct {
	ClientId string  `json:"client_id"`
	AssetId  string  `json:"asset_id"`
	Balance  Balance `json:"balance"`
}

type ClientBalanceUpdate struct {
	ClientId    string          `json:"client_id"`
	AssetId     string          `json:"asset_id"`
	OldBalance  decimal.Decimal `json:"old_balance"`
	NewBalance  decimal.Decimal `json:"new_balance"`
	OldReserved decimal.Decimal `json:"old_reserved"`
	NewReserved decimal.Decimal `json:"new_reserved"`
}
