package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"order-matching-core/models"
)

const (
	balancesHashKey          = "balances"
	ordersHashKey            = "orders"
	orderBooksHashKey        = "order_books"
	processedMessagesHashKey = "processed_messages"
	sequenceNumberKey        = "sequence_number"
)

func buildBalanceField(clientId, assetId string) string {
	return fmt.Sprintf("%s:%s", clientId, assetId)
}

func buildBookSideField(side models.OrderBookSideDiff) string {
	name := "sell"
	if side.IsBuySide {
		name = "buy"
	}
	if side.IsStopBook {
		return fmt.Sprintf("stop:%s:%s", side.AssetPairId, name)
	}
	return fmt.Sprintf("%s:%s", side.AssetPairId, name)
}

// RedisPersistence writes one commit unit — balances, order-book side
// snapshots, order upserts/removals, the processed-message marker and
// the sequence number — in a single MULTI/EXEC transaction. Either the
// whole unit lands or none of it does.
type RedisPersistence struct {
	client *RedisClient
}

func NewRedisPersistence(client *RedisClient) *RedisPersistence {
	return &RedisPersistence{client: client}
}

func (p *RedisPersistence) PersistCommit(ctx context.Context,
	processedMessage *models.ProcessedMessage,
	balances []models.BalanceSnapshot,
	booksDiff *models.OrderBooksDiff,
	sequenceNumber int64) error {

	tx := p.client.performTx(ctx)

	for _, snapshot := range balances {
		jsonData, err := json.Marshal(snapshot.Balance)
		if err != nil {
			return err
		}
		tx.addInHash(ctx, balancesHashKey, buildBalanceField(snapshot.ClientId, snapshot.AssetId), jsonData)
	}

	if booksDiff != nil {
		for _, side := range booksDiff.Sides {
			jsonData, err := json.Marshal(side.Orders)
			if err != nil {
				return err
			}
			tx.addInHash(ctx, orderBooksHashKey, buildBookSideField(side), jsonData)
		}
		for _, order := range booksDiff.OrdersToSave {
			jsonData, err := json.Marshal(order)
			if err != nil {
				return err
			}
			tx.addInHash(ctx, ordersHashKey, order.Id, jsonData)
		}
		for _, order := range booksDiff.OrdersToRemove {
			tx.removeFromHash(ctx, ordersHashKey, order.Id)
		}
	}

	if processedMessage != nil {
		jsonData, err := json.Marshal(processedMessage)
		if err != nil {
			return err
		}
		tx.addInHash(ctx, processedMessagesHashKey, processedMessage.MessageId, jsonData)
	}

	tx.setValue(ctx, sequenceNumberKey, sequenceNumber)

	return tx.execTx(ctx)
}
