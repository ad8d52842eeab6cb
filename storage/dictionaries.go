package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"order-matching-core/models"

	redisLib "github.com/redis/go-redis/v9"
)

const (
	assetsHashKey     = "dictionaries:assets"
	assetPairsHashKey = "dictionaries:asset_pairs"
)

// DictionariesStorage loads the reference data the holders are seeded
// with at startup: assets, asset pairs, balances and the last committed
// sequence number.
type DictionariesStorage struct {
	client *RedisClient
}

func NewDictionariesStorage(client *RedisClient) *DictionariesStorage {
	return &DictionariesStorage{client: client}
}

func (s *DictionariesStorage) LoadAssets(ctx context.Context) ([]models.Asset, error) {
	values, err := s.client.getAllFromHash(ctx, assetsHashKey)

	if err != nil {
		return nil, err
	}

	assets := make([]models.Asset, 0, len(values))
	for _, jsonData := range values {
		var asset models.Asset
		if err = json.Unmarshal([]byte(jsonData), &asset); err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}

	return assets, nil
}

func (s *DictionariesStorage) LoadAssetPairs(ctx context.Context) ([]models.AssetPair, error) {
	values, err := s.client.getAllFromHash(ctx, assetPairsHashKey)

	if err != nil {
		return nil, err
	}

	pairs := make([]models.AssetPair, 0, len(values))
	for _, jsonData := range values {
		var pair models.AssetPair
		if err = json.Unmarshal([]byte(jsonData), &pair); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}

	return pairs, nil
}

func (s *DictionariesStorage) LoadBalances(ctx context.Context) ([]models.BalanceSnapshot, error) {
	values, err := s.client.getAllFromHash(ctx, balancesHashKey)

	if err != nil {
		return nil, err
	}

	snapshots := make([]models.BalanceSnapshot, 0, len(values))
	for field, jsonData := range values {
		clientId, assetId, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}

		var balance models.Balance
		if err = json.Unmarshal([]byte(jsonData), &balance); err != nil {
			return nil, err
		}

		snapshots = append(snapshots, models.BalanceSnapshot{ClientId: clientId, AssetId: assetId, Balance: balance})
	}

	return snapshots, nil
}

// LoadSequenceNumber returns zero when no commit has happened yet.
func (s *DictionariesStorage) LoadSequenceNumber(ctx context.Context) (int64, error) {
	value, err := s.client.getValue(ctx, sequenceNumberKey)

	if err == redisLib.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return strconv.ParseInt(*value, 10, 64)
}
