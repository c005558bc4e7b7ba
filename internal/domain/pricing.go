package domain

import (
	"math"
	"time"
)

// DiscountActive reports whether a percentage-off discount applies at the
// given instant. Expiry is decided against the end date, never against the
// isDiscount flag alone, so pricing stays correct between cleanup sweeps.
func (p Product) DiscountActive(now time.Time) bool {
	if !p.IsDiscount || p.DiscountPrice <= 0 {
		return false
	}
	if p.DiscountEndDate == nil {
		return true
	}
	return p.DiscountEndDate.After(now)
}

// FlashActive reports whether a flash-sale rate applies at the given instant.
func (p Product) FlashActive(now time.Time) bool {
	if !p.IsFlash || p.FlashDiscountRate <= 0 || p.FlashDiscountRate >= 100 {
		return false
	}
	if p.FlashEndDate == nil {
		return true
	}
	return p.FlashEndDate.After(now)
}

// EffectiveUnitPrice returns the price a buyer pays right now, in kuruş.
// An active discount uses the fixed discounted price; an active flash sale
// applies the rate to the list price, rounded to the nearest kuruş.
func (p Product) EffectiveUnitPrice(now time.Time) int64 {
	if p.DiscountActive(now) {
		return p.DiscountPrice
	}
	if p.FlashActive(now) {
		reduced := float64(p.Price) * (1 - p.FlashDiscountRate/100)
		return int64(math.Round(reduced))
	}
	return p.Price
}

// PromotionExpired reports whether the product carries a promotion flag whose
// end date has passed, i.e. it is eligible for the cleanup sweep.
func (p Product) PromotionExpired(now time.Time) bool {
	if p.IsDiscount && p.DiscountEndDate != nil && !p.DiscountEndDate.After(now) {
		return true
	}
	if p.IsFlash && p.FlashEndDate != nil && !p.FlashEndDate.After(now) {
		return true
	}
	return false
}
