package validators

import (
	"order-matching-core/models"
	"order-matching-core/utils"

	"github.com/shopspring/decimal"
)

type iSettingsCache interface {
	IsAssetDisabled(assetId string) bool
}

// InputValidator runs the pure, stateless syntactic checks on a single
// order. It only reads rarely-mutated reference data, so any number of
// preprocessing workers may share one instance.
type InputValidator struct {
	settings iSettingsCache
}

func NewInputValidator(settings iSettingsCache) *InputValidator {
	return &InputValidator{settings: settings}
}

// ValidateLimitOrder runs the check chain for a plain limit order. The
// first violated check wins.
func (v *InputValidator) ValidateLimitOrder(order *models.Order, assetPair *models.AssetPair, baseAsset *models.Asset) error {
	if err := v.validateFee(order); err != nil {
		return err
	}
	if err := v.validateAssetsEnabled(assetPair); err != nil {
		return err
	}
	if err := v.validatePrice(order); err != nil {
		return err
	}
	if err := v.validateVolume(order, assetPair); err != nil {
		return err
	}
	if err := v.validateValue(order, assetPair); err != nil {
		return err
	}
	if err := v.validatePriceAccuracy(order.Price, assetPair); err != nil {
		return err
	}
	return v.validateVolumeAccuracy(order, baseAsset)
}

// ValidateStopOrder runs the check chain for a stop-limit order: the
// plain price check is replaced by the trigger-bound consistency check.
func (v *InputValidator) ValidateStopOrder(order *models.Order, assetPair *models.AssetPair, baseAsset *models.Asset) error {
	if err := v.validateFee(order); err != nil {
		return err
	}
	if err := v.validateAssetsEnabled(assetPair); err != nil {
		return err
	}
	if err := v.validateStopBounds(order); err != nil {
		return err
	}
	if err := v.validateVolume(order, assetPair); err != nil {
		return err
	}
	if err := v.validateVolumeAccuracy(order, baseAsset); err != nil {
		return err
	}
	return v.validateStopPriceAccuracy(order, assetPair)
}

func (v *InputValidator) validateFee(order *models.Order) error {
	for _, fee := range order.Fees {
		if fee == nil || fee.Size.Sign() < 0 {
			return newValidationError(models.StatusInvalidFee, "has invalid fee")
		}
		if fee.SizeType == models.FeeSizePercentage && fee.Size.GreaterThan(decimal.NewFromInt(1)) {
			return newValidationError(models.StatusInvalidFee, "has invalid fee")
		}
	}
	return nil
}

func (v *InputValidator) validateAssetsEnabled(assetPair *models.AssetPair) error {
	if v.settings.IsAssetDisabled(assetPair.BaseAssetId) || v.settings.IsAssetDisabled(assetPair.QuotingAssetId) {
		return newValidationError(models.StatusDisabledAsset, "disabled asset")
	}
	return nil
}

func (v *InputValidator) validatePrice(order *models.Order) error {
	if order.Price.Sign() <= 0 {
		return newValidationError(models.StatusInvalidPrice, "price is invalid")
	}
	return nil
}

// validateStopBounds enforces the bound-pair shape: no bounds at all is
// rejected, any present trigger and its paired limit price must be
// positive, and an armed lower trigger must sit below an armed upper one.
func (v *InputValidator) validateStopBounds(order *models.Order) error {
	lower, upper := order.LowerBound, order.UpperBound

	invalid := lower == nil && upper == nil ||
		lower != nil && (lower.TriggerPrice.Sign() <= 0 || lower.LimitPrice.Sign() <= 0) ||
		upper != nil && (upper.TriggerPrice.Sign() <= 0 || upper.LimitPrice.Sign() <= 0) ||
		lower != nil && upper != nil && lower.TriggerPrice.GreaterThanOrEqual(upper.TriggerPrice)

	if invalid {
		return newValidationError(models.StatusInvalidPrice, "limit prices are invalid")
	}
	return nil
}

func (v *InputValidator) validateVolume(order *models.Order, assetPair *models.AssetPair) error {
	volume := order.AbsVolume()
	if assetPair.MinVolume != nil && volume.LessThan(*assetPair.MinVolume) {
		return newValidationError(models.StatusTooSmallVolume, "volume is too small")
	}
	if assetPair.MaxVolume != nil && volume.GreaterThan(*assetPair.MaxVolume) {
		return newValidationError(models.StatusInvalidVolume, "volume is too large")
	}
	return nil
}

func (v *InputValidator) validateValue(order *models.Order, assetPair *models.AssetPair) error {
	if assetPair.MaxValue != nil && order.AbsVolume().Mul(order.Price).GreaterThan(*assetPair.MaxValue) {
		return newValidationError(models.StatusInvalidVolume, "value is too large")
	}
	return nil
}

func (v *InputValidator) validateVolumeAccuracy(order *models.Order, baseAsset *models.Asset) error {
	if !utils.IsScaleSmallerOrEqual(order.Volume, baseAsset.Accuracy) {
		return newValidationError(models.StatusInvalidVolumeAccuracy, "volume accuracy is invalid")
	}
	return nil
}

func (v *InputValidator) validatePriceAccuracy(price decimal.Decimal, assetPair *models.AssetPair) error {
	if !utils.IsScaleSmallerOrEqual(price, assetPair.Accuracy) {
		return newValidationError(models.StatusInvalidPriceAccuracy, "price accuracy is invalid")
	}
	return nil
}

func (v *InputValidator) validateStopPriceAccuracy(order *models.Order, assetPair *models.AssetPair) error {
	for _, bound := range []*models.PriceBound{order.LowerBound, order.UpperBound} {
		if bound == nil {
			continue
		}
		if err := v.validatePriceAccuracy(bound.TriggerPrice, assetPair); err != nil {
			return err
		}
		if err := v.validatePriceAccuracy(bound.LimitPrice, assetPair); err != nil {
			return err
		}
	}
	return nil
}
