package service

import (
	"sort"

	"order-matching-core/models"

	"github.com/shopspring/decimal"
)

// AssetOrderBook keeps one pair's resting orders on both sides in
// price-time priority: buys sorted by price descending, sells ascending,
// older orders first within a price level.
type AssetOrderBook struct {
	AssetPairId string
	buyOrders   []*models.Order
	sellOrders  []*models.Order
}

func NewAssetOrderBook(assetPairId string) *AssetOrderBook {
	return &AssetOrderBook{AssetPairId: assetPairId}
}

func (b *AssetOrderBook) AddOrder(order *models.Order) {
	if order.IsBuySide() {
		b.buyOrders = insertOrder(b.buyOrders, order, func(a, c *models.Order) bool {
			if !a.Price.Equal(c.Price) {
				return a.Price.GreaterThan(c.Price)
			}
			return a.CreationDate < c.CreationDate
		})
		return
	}
	b.sellOrders = insertOrder(b.sellOrders, order, func(a, c *models.Order) bool {
		if !a.Price.Equal(c.Price) {
			return a.Price.LessThan(c.Price)
		}
		return a.CreationDate < c.CreationDate
	})
}

func insertOrder(side []*models.Order, order *models.Order, less func(a, b *models.Order) bool) []*models.Order {
	idx := sort.Search(len(side), func(i int) bool {
		return less(order, side[i])
	})
	side = append(side, nil)
	copy(side[idx+1:], side[idx:])
	side[idx] = order
	return side
}

func (b *AssetOrderBook) RemoveOrder(order *models.Order) bool {
	side := &b.sellOrders
	if order.IsBuySide() {
		side = &b.buyOrders
	}
	for i, resting := range *side {
		if resting.Id == order.Id {
			*side = append(append([]*models.Order{}, (*side)[:i]...), (*side)[i+1:]...)
			return true
		}
	}
	return false
}

// BestBidPrice returns zero when the buy side is empty.
func (b *AssetOrderBook) BestBidPrice() decimal.Decimal {
	if len(b.buyOrders) == 0 {
		return decimal.Zero
	}
	return b.buyOrders[0].Price
}

// BestAskPrice returns zero when the sell side is empty.
func (b *AssetOrderBook) BestAskPrice() decimal.Decimal {
	if len(b.sellOrders) == 0 {
		return decimal.Zero
	}
	return b.sellOrders[0].Price
}

func (b *AssetOrderBook) SideOrders(isBuySide bool) []*models.Order {
	if isBuySide {
		return b.buyOrders
	}
	return b.sellOrders
}

// Copy produces the speculative duplicate used for copy-on-write
// mutation. Order pointers are shared; only the side slices are cloned.
func (b *AssetOrderBook) Copy() *AssetOrderBook {
	return &AssetOrderBook{
		AssetPairId: b.AssetPairId,
		buyOrders:   append([]*models.Order{}, b.buyOrders...),
		sellOrders:  append([]*models.Order{}, b.sellOrders...),
	}
}

// LeadToNegativeSpreadForClient reports whether inserting the order would
// cross one of the client's own resting orders on the opposite side.
func (b *AssetOrderBook) LeadToNegativeSpreadForClient(order *models.Order) bool {
	if order.Price.Sign() <= 0 {
		// Unpriced stop orders cannot cross anything yet.
		return false
	}
	opposite := b.buyOrders
	if order.IsBuySide() {
		opposite = b.sellOrders
	}
	for _, resting := range opposite {
		if resting.ClientId != order.ClientId {
			continue
		}
		if order.IsBuySide() && order.Price.GreaterThanOrEqual(resting.Price) {
			return true
		}
		if !order.IsBuySide() && order.Price.LessThanOrEqual(resting.Price) {
			return true
		}
	}
	return false
}
