package validators

import (
	"fmt"

	"order-matching-core/models"

	"github.com/shopspring/decimal"
)

type iSpreadChecker interface {
	LeadToNegativeSpreadForClient(order *models.Order) bool
}

// BusinessValidator runs the checks that need live market and account
// state. It must only be called from the serialized execution zone.
type BusinessValidator struct{}

func NewBusinessValidator() *BusinessValidator {
	return &BusinessValidator{}
}

// PerformValidation short-circuits on the first failed rule; every
// failure is an OrderValidationError so downstream handling is uniform.
func (v *BusinessValidator) PerformValidation(isTrustedClient bool,
	order *models.Order,
	availableBalance decimal.Decimal,
	requiredVolume decimal.Decimal,
	orderBook iSpreadChecker,
	nowMillis int64) error {

	if !isTrustedClient {
		if err := v.validateBalance(availableBalance, requiredVolume); err != nil {
			return err
		}
	}
	if err := v.validateLeadToNegativeSpread(order, orderBook); err != nil {
		return err
	}
	if err := v.validatePreviousOrderFound(order); err != nil {
		return err
	}
	if err := v.validateEnoughFunds(order); err != nil {
		return err
	}
	return v.CheckExpiration(order, nowMillis)
}

func (v *BusinessValidator) validateBalance(availableBalance, requiredVolume decimal.Decimal) error {
	if availableBalance.LessThan(requiredVolume) {
		return newValidationError(models.StatusNotEnoughFunds,
			fmt.Sprintf("not enough funds to reserve %s, available %s", requiredVolume.String(), availableBalance.String()))
	}
	return nil
}

func (v *BusinessValidator) validateLeadToNegativeSpread(order *models.Order, orderBook iSpreadChecker) error {
	if orderBook.LeadToNegativeSpreadForClient(order) {
		return newValidationError(models.StatusLeadToNegativeSpread,
			fmt.Sprintf("order (id: %s) leads to negative spread", order.ExternalId))
	}
	return nil
}

func (v *BusinessValidator) validatePreviousOrderFound(order *models.Order) error {
	if order.Status == models.StatusNotFoundPrevious {
		return newValidationError(models.StatusNotFoundPrevious,
			fmt.Sprintf("order (id: %s) has not found previous order (%s)", order.ExternalId, order.PreviousExternalId))
	}
	return nil
}

func (v *BusinessValidator) validateEnoughFunds(order *models.Order) error {
	if order.Status == models.StatusNotEnoughFunds {
		return newValidationError(models.StatusNotEnoughFunds,
			fmt.Sprintf("order (id: %s) has not enough funds", order.ExternalId))
	}
	return nil
}

// CheckExpiration is exposed separately so callers can re-check expiry
// outside the full rule chain. Expiry is evaluated at submission time;
// parked stop orders are not re-checked at trigger time.
func (v *BusinessValidator) CheckExpiration(order *models.Order, nowMillis int64) error {
	if order.IsExpired(nowMillis) {
		return newValidationError(models.StatusCancelled, "expired")
	}
	return nil
}
