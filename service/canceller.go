package service

import (
	"order-matching-core/models"
	"order-matching-core/utils"

	"github.com/shopspring/decimal"
)

// iBookAccess is the order-book capability the canceller is generic
// over; both the live limit book service and the stop book service
// satisfy it.
type iBookAccess interface {
	GetOrderBook(assetPairId string) *AssetOrderBook
	SetOrderBook(assetPairId string, book *AssetOrderBook)
	CancelLimitOrders(orders []*models.Order, atMillis int64)
}

// LimitVolumeFunc computes how much reserved balance one order holds;
// injected so limit and stop books can price reservations differently.
type LimitVolumeFunc func(order *models.Order, limitAsset models.Asset) decimal.Decimal

// LimitOrderReservedVolume is the strategy for live limit orders: the
// recorded reservation when present, otherwise the remaining exposure.
func LimitOrderReservedVolume(order *models.Order, limitAsset models.Asset) decimal.Decimal {
	if order.ReservedVolume.Sign() > 0 {
		return order.ReservedVolume
	}
	if order.IsBuySide() {
		return utils.SetScaleRoundUp(order.RemainingVolume.Mul(order.Price), limitAsset.Accuracy)
	}
	return order.RemainingVolume.Abs()
}

// StopOrderReservedVolume is the strategy for parked stop orders, which
// always carry their reservation explicitly.
func StopOrderReservedVolume(order *models.Order, _ models.Asset) decimal.Decimal {
	return order.ReservedVolume
}

// LimitOrdersCanceller removes or cancels an arbitrary set of orders
// across many pairs and sides as one atomic unit, in three explicit
// steps: Classify -> Plan -> Commit. Commit must only run after the
// caller's persistence step succeeded; a discarded plan leaves the live
// books byte-for-byte untouched.
type LimitOrdersCanceller struct {
	pairsHolder    *AssetsPairsHolder
	assetsHolder   *AssetsHolder
	balancesHolder *BalancesHolder
	books          iBookAccess
	limitVolume    LimitVolumeFunc
	nowMillis      int64
}

func NewLimitOrdersCanceller(pairsHolder *AssetsPairsHolder,
	assetsHolder *AssetsHolder,
	balancesHolder *BalancesHolder,
	books iBookAccess,
	limitVolume LimitVolumeFunc,
	nowMillis int64) *LimitOrdersCanceller {

	return &LimitOrdersCanceller{
		pairsHolder:    pairsHolder,
		assetsHolder:   assetsHolder,
		balancesHolder: balancesHolder,
		books:          books,
		limitVolume:    limitVolume,
		nowMillis:      nowMillis,
	}
}

type ordersGroup struct {
	assetPairId string
	buyOrders   []*models.Order
	sellOrders  []*models.Order
}

func (g *ordersGroup) allOrders() []*models.Order {
	all := make([]*models.Order, 0, len(g.sellOrders)+len(g.buyOrders))
	all = append(all, g.sellOrders...)
	all = append(all, g.buyOrders...)
	return all
}

// Classification separates CANCEL candidates (pair still configured)
// from REMOVE candidates (pair configuration deleted), grouped by pair
// and side. Pure data, no side effects.
type Classification struct {
	toCancel []*ordersGroup
	all      []*ordersGroup
}

func (c *LimitOrdersCanceller) Classify(orders []*models.Order) Classification {
	var toCancel, toRemove []*models.Order
	for _, order := range orders {
		if c.pairsHolder.GetAssetPairAllowNil(order.AssetPairId) == nil {
			toRemove = append(toRemove, order)
		} else {
			toCancel = append(toCancel, order)
		}
	}

	return Classification{
		toCancel: groupOrders(toCancel),
		all:      groupOrders(append(append([]*models.Order{}, toCancel...), toRemove...)),
	}
}

func groupOrders(orders []*models.Order) []*ordersGroup {
	byPair := make(map[string]*ordersGroup)
	var groups []*ordersGroup
	for _, order := range orders {
		group, ok := byPair[order.AssetPairId]
		if !ok {
			group = &ordersGroup{assetPairId: order.AssetPairId}
			byPair[order.AssetPairId] = group
			groups = append(groups, group)
		}
		if order.IsBuySide() {
			group.buyOrders = append(group.buyOrders, order)
		} else {
			group.sellOrders = append(group.sellOrders, order)
		}
	}
	return groups
}

// CancelPlan is the immutable result of planning: speculative book
// copies, clamped wallet operations, and the two report buckets. Nothing
// in it has touched shared state.
type CancelPlan struct {
	WalletOperations     []models.WalletOperation
	ClientReports        []*models.LimitOrderWithTrades
	TrustedClientReports []*models.LimitOrderWithTrades
	UpdatedBooks         map[string]*AssetOrderBook
	OrdersToRemove       []*models.Order

	changedBuySides  map[string]bool
	changedSellSides map[string]bool
	allOrders        []*models.Order
}

func (c *LimitOrdersCanceller) Plan(classification Classification) *CancelPlan {
	plan := &CancelPlan{
		UpdatedBooks:     make(map[string]*AssetOrderBook),
		changedBuySides:  make(map[string]bool),
		changedSellSides: make(map[string]bool),
	}

	for _, group := range classification.all {
		// Exactly one structural copy per touched pair, produced lazily.
		bookCopy, ok := plan.UpdatedBooks[group.assetPairId]
		if !ok {
			bookCopy = c.books.GetOrderBook(group.assetPairId).Copy()
			plan.UpdatedBooks[group.assetPairId] = bookCopy
		}
		for _, order := range group.allOrders() {
			if bookCopy.RemoveOrder(order) {
				if order.IsBuySide() {
					plan.changedBuySides[group.assetPairId] = true
				} else {
					plan.changedSellSides[group.assetPairId] = true
				}
			}
			plan.OrdersToRemove = append(plan.OrdersToRemove, order)
			plan.allOrders = append(plan.allOrders, order)
		}
	}

	plan.WalletOperations = c.calculateWalletOperations(classification.toCancel)
	plan.ClientReports, plan.TrustedClientReports = c.partitionReports(classification.toCancel)
	return plan
}

// calculateWalletOperations derives releases strictly from the CANCEL
// set; removed orders' pair no longer exists, so no balance semantics
// apply to them. Each release is clamped so it never exceeds what is
// still reserved for that client and asset.
func (c *LimitOrdersCanceller) calculateWalletOperations(groups []*ordersGroup) []models.WalletOperation {
	var operations []models.WalletOperation
	released := make(map[balanceKey]decimal.Decimal)

	for _, group := range groups {
		assetPair := c.pairsHolder.GetAssetPairAllowNil(group.assetPairId)
		if assetPair == nil {
			continue
		}
		for _, order := range group.allOrders() {
			if c.balancesHolder.IsTrustedClient(order.ClientId) {
				continue
			}
			limitAssetId := assetPair.LimitAssetId(order.IsBuySide())
			limitAsset, err := c.assetsHolder.GetAsset(limitAssetId)
			if err != nil {
				continue
			}

			key := balanceKey{clientId: order.ClientId, assetId: limitAssetId}
			remaining := c.balancesHolder.GetReservedBalance(order.ClientId, limitAssetId).Sub(released[key])
			if remaining.Sign() <= 0 {
				continue
			}

			release := c.limitVolume(order, limitAsset)
			if release.GreaterThan(remaining) {
				release = remaining
			}
			if release.Sign() <= 0 {
				continue
			}

			released[key] = released[key].Add(release)
			operations = append(operations, models.WalletOperation{
				ClientId:       order.ClientId,
				AssetId:        limitAssetId,
				Amount:         decimal.Zero,
				ReservedAmount: release.Neg(),
				Timestamp:      c.nowMillis,
			})
		}
	}
	return operations
}

// partitionReports suppresses notifications for trusted-client orders
// that were never partially matched; everything else goes to the
// standard client bucket.
func (c *LimitOrdersCanceller) partitionReports(groups []*ordersGroup) (clients, trusted []*models.LimitOrderWithTrades) {
	for _, group := range groups {
		for _, order := range group.allOrders() {
			if c.balancesHolder.IsTrustedClient(order.ClientId) && !order.IsPartiallyMatched() {
				trusted = append(trusted, &models.LimitOrderWithTrades{Order: order})
			} else {
				clients = append(clients, &models.LimitOrderWithTrades{Order: order})
			}
		}
	}
	return clients, trusted
}

// BooksDiff builds the persistence unit for the plan: one side snapshot
// per changed (pair, side), plus the removal list. isStopBook marks which
// book variant the snapshots belong to.
func (p *CancelPlan) BooksDiff(isStopBook bool) *models.OrderBooksDiff {
	diff := &models.OrderBooksDiff{OrdersToRemove: p.OrdersToRemove}
	for assetPairId, bookCopy := range p.UpdatedBooks {
		if p.changedBuySides[assetPairId] {
			diff.Sides = append(diff.Sides, models.OrderBookSideDiff{
				AssetPairId: assetPairId,
				IsBuySide:   true,
				IsStopBook:  isStopBook,
				Orders:      bookCopy.SideOrders(true),
			})
		}
		if p.changedSellSides[assetPairId] {
			diff.Sides = append(diff.Sides, models.OrderBookSideDiff{
				AssetPairId: assetPairId,
				IsBuySide:   false,
				IsStopBook:  isStopBook,
				Orders:      bookCopy.SideOrders(false),
			})
		}
	}
	return diff
}

// Commit publishes the plan's book copies into the live cache and drops
// the orders from the secondary indexes. Callers must have persisted the
// plan's diff first; a plan whose persistence failed is simply discarded.
func (c *LimitOrdersCanceller) Commit(plan *CancelPlan) {
	for assetPairId, bookCopy := range plan.UpdatedBooks {
		c.books.SetOrderBook(assetPairId, bookCopy)
	}
	c.books.CancelLimitOrders(plan.allOrders, c.nowMillis)
}
