package domain

import (
	"testing"
	"time"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestEffectiveUnitPricePrefersActiveDiscount(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	product := Product{
		Price:           10000,
		IsDiscount:      true,
		DiscountPrice:   7500,
		DiscountEndDate: timePtr(now.Add(time.Hour)),
	}

	if got := product.EffectiveUnitPrice(now); got != 7500 {
		t.Fatalf("expected discounted price 7500, got %d", got)
	}
}

func TestEffectiveUnitPriceIgnoresExpiredDiscountFlag(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	product := Product{
		Price:           10000,
		IsDiscount:      true,
		DiscountPrice:   7500,
		DiscountEndDate: timePtr(now.Add(-time.Minute)),
	}

	if got := product.EffectiveUnitPrice(now); got != 10000 {
		t.Fatalf("expected list price 10000 after discount expiry, got %d", got)
	}
}

func TestEffectiveUnitPriceRoundsFlashRate(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	product := Product{
		Price:             999,
		IsFlash:           true,
		FlashDiscountRate: 33,
		FlashEndDate:      timePtr(now.Add(time.Hour)),
	}

	// 999 * 0.67 = 669.33 rounds to 669.
	if got := product.EffectiveUnitPrice(now); got != 669 {
		t.Fatalf("expected flash price 669, got %d", got)
	}
}

func TestEffectiveUnitPriceFlashRateBounds(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, rate := range []float64{0, -5, 100, 150} {
		product := Product{Price: 5000, IsFlash: true, FlashDiscountRate: rate}
		if got := product.EffectiveUnitPrice(now); got != 5000 {
			t.Fatalf("rate %v: expected list price 5000, got %d", rate, got)
		}
	}
}

func TestPromotionExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		product Product
		want    bool
	}{
		{"discount past end", Product{IsDiscount: true, DiscountEndDate: timePtr(now.Add(-time.Second))}, true},
		{"discount still live", Product{IsDiscount: true, DiscountEndDate: timePtr(now.Add(time.Second))}, false},
		{"flash past end", Product{IsFlash: true, FlashEndDate: timePtr(now.Add(-time.Hour))}, true},
		{"no promotion", Product{}, false},
		{"discount without end date", Product{IsDiscount: true}, false},
	}

	for _, tc := range cases {
		if got := tc.product.PromotionExpired(now); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestOrderStatusValidAndTerminal(t *testing.T) {
	if OrderStatus("Bilinmeyen").Valid() {
		t.Fatalf("unknown status must not be valid")
	}
	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled} {
		if !s.Valid() {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	if !OrderStatusCompleted.Terminal() || !OrderStatusCancelled.Terminal() {
		t.Fatalf("completed and cancelled must be terminal")
	}
	if OrderStatusShipped.Terminal() {
		t.Fatalf("shipped must not be terminal")
	}
}
