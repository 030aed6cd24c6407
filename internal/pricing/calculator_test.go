package pricing

import (
	"testing"

	"github.com/mimisupply/delivery/internal/types/order"
	"github.com/stretchr/testify/assert"
)

func testItems() []order.Item {
	return []order.Item{
		{ProductID: "p1", Name: "Burger", Quantity: 2, UnitPrice: 1249},
		{ProductID: "p2", Name: "Fries", Quantity: 1, UnitPrice: 999},
	}
}

func TestSubtotal(t *testing.T) {
	assert.Equal(t, int64(3497), Subtotal(testItems()))
	assert.Equal(t, int64(0), Subtotal(nil))
}

func TestQuoteCaliforniaOrder(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	// Subtotal 2248: below the free-delivery threshold, platform fee from
	// the percentage branch, CA tax.
	items := []order.Item{
		{ProductID: "p1", Name: "Burger", Quantity: 1, UnitPrice: 1249},
		{ProductID: "p2", Name: "Fries", Quantity: 1, UnitPrice: 999},
	}
	b := calc.Quote(items, "CA", 0, 337)

	assert.Equal(t, int64(2248), b.Subtotal)
	assert.Equal(t, int64(299), b.DeliveryFee)
	assert.Equal(t, int64(270), b.PlatformFee) // max(199, round(2248*0.12))
	assert.Equal(t, int64(180), b.Tax)         // round(2248*0.08)
	assert.Equal(t, int64(337), b.Tip)
	assert.Equal(t, int64(3334), b.Total)
}

func TestQuoteWaivesDeliveryAboveThreshold(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	// Subtotal 3497 is past the free-delivery threshold, so the same cart
	// shape gets its delivery fee waived regardless of distance.
	b := calc.Quote(testItems(), "CA", 2.5, 0)

	assert.Equal(t, int64(3497), b.Subtotal)
	assert.Equal(t, int64(0), b.DeliveryFee)
	assert.Equal(t, int64(420), b.PlatformFee)
	assert.Equal(t, int64(280), b.Tax)
	assert.Equal(t, int64(4197), b.Total)
}

func TestQuoteFreeDeliveryThreshold(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	items := []order.Item{{ProductID: "p1", Quantity: 1, UnitPrice: 2600}}

	b := calc.Quote(items, "CA", 3.5, 0)
	assert.Equal(t, int64(2600), b.Subtotal)
	assert.Equal(t, int64(0), b.DeliveryFee, "delivery fee waived at the threshold")
	assert.Equal(t, int64(312), b.PlatformFee) // round(2600*0.12)
	assert.Equal(t, int64(208), b.Tax)         // round(2600*0.08)
	assert.Equal(t, b.Subtotal+b.PlatformFee+b.Tax, b.Total)
}

func TestDeliveryFeeDistance(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	assert.Equal(t, int64(299), calc.DeliveryFee(1000, 0))
	assert.Equal(t, int64(299+175), calc.DeliveryFee(1000, 3.5))
	assert.Equal(t, int64(0), calc.DeliveryFee(2500, 3.5))
}

func TestPlatformFeeTiers(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	// Small order hits the minimum fee floor: 12% of 1000 is only 120.
	assert.Equal(t, int64(199), calc.PlatformFee(1000))
	// Percentage branch.
	assert.Equal(t, int64(420), calc.PlatformFee(3497))
	// Large orders get the reduced flat fee.
	assert.Equal(t, int64(249), calc.PlatformFee(5000))
	assert.Equal(t, int64(249), calc.PlatformFee(12000))
}

func TestTaxUnknownRegionFallsBack(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	assert.Equal(t, int64(210), calc.Tax(3497, "ZZ")) // round(3497*0.06)
	assert.Equal(t, int64(280), calc.Tax(3497, "CA"))
}

func TestSuggestTip(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	assert.Equal(t, int64(525), calc.SuggestTip(3497)) // round(3497*0.15)
	assert.Equal(t, int64(0), calc.SuggestTip(0))
}

func TestRoundingHalfUp(t *testing.T) {
	// Exactly .5 rounds up, not to even.
	assert.Equal(t, int64(5), roundHalfUp(4.5))
	assert.Equal(t, int64(4), roundHalfUp(4.4))
	assert.Equal(t, int64(5), roundHalfUp(4.6))
}

func TestTotalInvariant(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	for _, tip := range []int64{0, 100, 525} {
		for _, dist := range []float64{0, 1.2, 7.9} {
			b := calc.Quote(testItems(), "NY", dist, tip)
			assert.Equal(t, b.Subtotal+b.DeliveryFee+b.PlatformFee+b.Tax+b.Tip, b.Total)
		}
	}
}

func TestMeetsMinimumOrder(t *testing.T) {
	assert.True(t, MeetsMinimumOrder(testItems(), 3497))
	assert.True(t, MeetsMinimumOrder(testItems(), 1000))
	assert.False(t, MeetsMinimumOrder(testItems(), 3498))
}
