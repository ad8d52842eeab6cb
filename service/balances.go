package service

import (
	"context"
	"sync"

	"order-matching-core/models"
	"order-matching-core/staticerr"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type iPersistenceManager interface {
	PersistCommit(ctx context.Context,
		processedMessage *models.ProcessedMessage,
		balances []models.BalanceSnapshot,
		booksDiff *models.OrderBooksDiff,
		sequenceNumber int64) error
}

type iTrustedClients interface {
	IsTrustedClient(clientId string) bool
}

// BalancesHolder owns the live balance table. Mutations go through a
// WalletOperationsProcessor so every balance effect is persisted before
// it becomes visible in the cache.
type BalancesHolder struct {
	mu          sync.RWMutex
	balances    map[string]map[string]models.Balance
	settings    iTrustedClients
	persistence iPersistenceManager
}

func NewBalancesHolder(persistence iPersistenceManager, settings iTrustedClients) *BalancesHolder {
	return &BalancesHolder{
		balances:    make(map[string]map[string]models.Balance),
		settings:    settings,
		persistence: persistence,
	}
}

func (h *BalancesHolder) SetBalance(clientId, assetId string, balance models.Balance) {
	h.mu.Lock()
	defer h.mu.Unlock()

	byAsset, ok := h.balances[clientId]
	if !ok {
		byAsset = make(map[string]models.Balance)
		h.balances[clientId] = byAsset
	}
	byAsset[assetId] = balance
}

func (h *BalancesHolder) GetBalance(clientId, assetId string) models.Balance {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.balances[clientId][assetId]
}

func (h *BalancesHolder) GetReservedBalance(clientId, assetId string) decimal.Decimal {
	return h.GetBalance(clientId, assetId).Reserved
}

// GetAvailableBalance is balance minus reserved, plus the volume about to
// be released by a cancellation set accompanying the same message.
func (h *BalancesHolder) GetAvailableBalance(clientId, assetId string, releasable decimal.Decimal) decimal.Decimal {
	balance := h.GetBalance(clientId, assetId)
	return balance.Balance.Sub(balance.Reserved).Add(releasable)
}

func (h *BalancesHolder) IsTrustedClient(clientId string) bool {
	return h.settings.IsTrustedClient(clientId)
}

// CreateWalletProcessor starts one persist-then-commit cycle.
func (h *BalancesHolder) CreateWalletProcessor() *WalletOperationsProcessor {
	return &WalletOperationsProcessor{
		holder:  h,
		pending: make(map[balanceKey]models.Balance),
	}
}

type balanceKey struct {
	clientId string
	assetId  string
}

// WalletOperationsProcessor accumulates balance deltas, persists them
// atomically with an order-book diff, and only then commits them to the
// live balance cache. Apply before a successful PersistBalances is a
// programming error and commits nothing.
type WalletOperationsProcessor struct {
	holder    *BalancesHolder
	pending   map[balanceKey]models.Balance
	updates   []models.ClientBalanceUpdate
	persisted bool
}

// PreProcess folds the operations into the working balance copies. With
// allowInvalidBalance false it rejects any delta that would drive the
// balance or the reservation negative.
func (p *WalletOperationsProcessor) PreProcess(operations []models.WalletOperation, allowInvalidBalance bool) error {
	for _, op := range operations {
		key := balanceKey{clientId: op.ClientId, assetId: op.AssetId}
		current, ok := p.pending[key]
		if !ok {
			current = p.holder.GetBalance(op.ClientId, op.AssetId)
		}

		next := models.Balance{
			Balance:  current.Balance.Add(op.Amount),
			Reserved: current.Reserved.Add(op.ReservedAmount),
		}
		if !allowInvalidBalance && (next.Balance.Sign() < 0 || next.Reserved.Sign() < 0) {
			return staticerr.ErrorNegativeBalance
		}

		old := p.holder.GetBalance(op.ClientId, op.AssetId)
		p.pending[key] = next
		p.updates = append(p.updates, models.ClientBalanceUpdate{
			ClientId:    op.ClientId,
			AssetId:     op.AssetId,
			OldBalance:  old.Balance,
			NewBalance:  next.Balance,
			OldReserved: old.Reserved,
			NewReserved: next.Reserved,
		})
	}
	return nil
}

// PersistBalances writes the working balances together with the given
// order-book diff under one sequence number. Returns false on failure,
// leaving the live caches untouched.
func (p *WalletOperationsProcessor) PersistBalances(ctx context.Context,
	processedMessage *models.ProcessedMessage,
	booksDiff *models.OrderBooksDiff,
	sequenceNumber int64) bool {

	snapshots := make([]models.BalanceSnapshot, 0, len(p.pending))
	for key, balance := range p.pending {
		snapshots = append(snapshots, models.BalanceSnapshot{
			ClientId: key.clientId,
			AssetId:  key.assetId,
			Balance:  balance,
		})
	}

	if err := p.holder.persistence.PersistCommit(ctx, processedMessage, snapshots, booksDiff, sequenceNumber); err != nil {
		logrus.WithField("sequenceNumber", sequenceNumber).Errorln("Persistence failed, reason: ", err.Error())
		return false
	}
	p.persisted = true
	return true
}

// Apply commits the working balances into the live cache and returns the
// client balance updates for publication.
func (p *WalletOperationsProcessor) Apply() []models.ClientBalanceUpdate {
	if !p.persisted {
		logrus.Errorln("Apply called before successful persistence, nothing committed")
		return nil
	}
	for key, balance := range p.pending {
		p.holder.SetBalance(key.clientId, key.assetId, balance)
	}
	return p.collapseUpdates()
}

// collapseUpdates merges multiple deltas against the same (client, asset)
// into one update spanning the oldest and newest values.
func (p *WalletOperationsProcessor) collapseUpdates() []models.ClientBalanceUpdate {
	merged := make(map[balanceKey]int)
	var out []models.ClientBalanceUpdate
	for _, update := range p.updates {
		key := balanceKey{clientId: update.ClientId, assetId: update.AssetId}
		if idx, ok := merged[key]; ok {
			out[idx].NewBalance = update.NewBalance
			out[idx].NewReserved = update.NewReserved
			continue
		}
		merged[key] = len(out)
		out = append(out, update)
	}
	return out
}
