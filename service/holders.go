package service

import (
	"sync"

	"order-matching-core/models"
	"order-matching-core/staticerr"
)

// AssetsHolder and AssetsPairsHolder are read-mostly reference caches.
// They are seeded at startup and safe for concurrent reads from the
// preprocessing workers.
type AssetsHolder struct {
	mu     sync.RWMutex
	assets map[string]models.Asset
}

func NewAssetsHolder(assets []models.Asset) *AssetsHolder {
	h := &AssetsHolder{assets: make(map[string]models.Asset, len(assets))}
	for _, asset := range assets {
		h.assets[asset.AssetId] = asset
	}
	return h
}

func (h *AssetsHolder) GetAsset(assetId string) (models.Asset, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	asset, ok := h.assets[assetId]
	if !ok {
		return models.Asset{}, staticerr.ErrorUnknownAsset
	}
	return asset, nil
}

type AssetsPairsHolder struct {
	mu    sync.RWMutex
	pairs map[string]models.AssetPair
}

func NewAssetsPairsHolder(pairs []models.AssetPair) *AssetsPairsHolder {
	h := &AssetsPairsHolder{pairs: make(map[string]models.AssetPair, len(pairs))}
	for _, pair := range pairs {
		h.pairs[pair.AssetPairId] = pair
	}
	return h
}

func (h *AssetsPairsHolder) GetAssetPair(assetPairId string) (models.AssetPair, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	pair, ok := h.pairs[assetPairId]
	if !ok {
		return models.AssetPair{}, staticerr.ErrorUnknownAssetPair
	}
	return pair, nil
}

// GetAssetPairAllowNil is the lookup used for cancel-versus-remove
// classification: a nil result means the pair configuration is gone.
func (h *AssetsPairsHolder) GetAssetPairAllowNil(assetPairId string) *models.AssetPair {
	h.mu.RLock()
	defer h.mu.RUnlock()

	pair, ok := h.pairs[assetPairId]
	if !ok {
		return nil
	}
	return &pair
}

func (h *AssetsPairsHolder) RemoveAssetPair(assetPairId string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pairs, assetPairId)
}

// SettingsCache holds application settings read by every stage: disabled
// assets and the trusted-client set.
type SettingsCache struct {
	mu             sync.RWMutex
	disabledAssets map[string]struct{}
	trustedClients map[string]struct{}
}

func NewSettingsCache(disabledAssets, trustedClients []string) *SettingsCache {
	c := &SettingsCache{
		disabledAssets: make(map[string]struct{}, len(disabledAssets)),
		trustedClients: make(map[string]struct{}, len(trustedClients)),
	}
	for _, assetId := range disabledAssets {
		c.disabledAssets[assetId] = struct{}{}
	}
	for _, clientId := range trustedClients {
		c.trustedClients[clientId] = struct{}{}
	}
	return c
}

func (c *SettingsCache) IsAssetDisabled(assetId string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.disabledAssets[assetId]
	return ok
}

func (c *SettingsCache) IsTrustedClient(clientId string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.trustedClients[clientId]
	return ok
}

// SequenceNumberHolder issues the strictly increasing sequence number
// assigned to every committed mutation. Callable only from the serialized
// execution zone.
type SequenceNumberHolder struct {
	current int64
}

func NewSequenceNumberHolder(initial int64) *SequenceNumberHolder {
	return &SequenceNumberHolder{current: initial}
}

func (h *SequenceNumberHolder) GetNewValue() int64 {
	h.current++
	return h.current
}
