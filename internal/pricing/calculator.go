package pricing

import (
	"math"

	"github.com/mimisupply/delivery/internal/logger"
	"github.com/mimisupply/delivery/internal/types/order"
	"github.com/mimisupply/delivery/internal/types/pricing"
	"github.com/mimisupply/delivery/internal/util/geo"
	"go.uber.org/zap"
)

// Config holds every fee constant and tier threshold. All money fields are
// integer minor currency units.
type Config struct {
	BaseDeliveryFee       int64   // flat part of the delivery fee
	PerKmRate             int64   // minor units per kilometre
	FreeDeliveryThreshold int64   // subtotal at which the delivery fee is waived
	PlatformRate          float64 // percentage of subtotal
	MinPlatformFee        int64
	LargeOrderThreshold   int64 // subtotal at which the platform fee flattens
	LargeOrderFlatFee     int64
	TipSuggestionRate     float64
	DefaultTaxRate        float64
	TaxRates              map[string]float64 // keyed by address region
}

func DefaultConfig() Config {
	return Config{
		BaseDeliveryFee:       299,
		PerKmRate:             50,
		FreeDeliveryThreshold: 2500,
		PlatformRate:          0.12,
		MinPlatformFee:        199,
		LargeOrderThreshold:   5000,
		LargeOrderFlatFee:     249,
		TipSuggestionRate:     0.15,
		DefaultTaxRate:        0.06,
		TaxRates: map[string]float64{
			"CA": 0.08,
			"NY": 0.08875,
			"TX": 0.0625,
			"WA": 0.065,
		},
	}
}

type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	if cfg.TaxRates == nil {
		cfg.TaxRates = map[string]float64{}
	}
	return &Calculator{cfg: cfg}
}

// roundHalfUp rounds a percentage result to the nearest minor unit, half up.
func roundHalfUp(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}

func Subtotal(items []order.Item) int64 {
	var sum int64
	for _, it := range items {
		sum += it.UnitPrice * int64(it.Quantity)
	}
	return sum
}

func (c *Calculator) DeliveryFee(subtotal int64, distanceKm float64) int64 {
	if subtotal >= c.cfg.FreeDeliveryThreshold {
		return 0
	}
	return c.cfg.BaseDeliveryFee + roundHalfUp(distanceKm*float64(c.cfg.PerKmRate))
}

func (c *Calculator) PlatformFee(subtotal int64) int64 {
	if subtotal >= c.cfg.LargeOrderThreshold {
		return c.cfg.LargeOrderFlatFee
	}
	fee := roundHalfUp(float64(subtotal) * c.cfg.PlatformRate)
	if fee < c.cfg.MinPlatformFee {
		return c.cfg.MinPlatformFee
	}
	return fee
}

// Tax looks up the region rate, falling back to the default rate for unknown
// regions. The fallback is logged so that data-quality gaps stay visible.
func (c *Calculator) Tax(subtotal int64, region string) int64 {
	rate, ok := c.cfg.TaxRates[region]
	if !ok {
		rate = c.cfg.DefaultTaxRate
		logger.Log.Warn("unknown tax region, using default rate",
			zap.String("region", region),
			zap.Float64("rate", rate),
		)
	}
	return roundHalfUp(float64(subtotal) * rate)
}

// SuggestTip returns the default tip for a subtotal. It is a suggestion for
// the UI only; nothing is applied to an order unless the caller passes it in.
func (c *Calculator) SuggestTip(subtotal int64) int64 {
	return roundHalfUp(float64(subtotal) * c.cfg.TipSuggestionRate)
}

// Quote prices a cart. distanceKm is partner-to-delivery distance; tip is the
// caller-confirmed tip (zero if none).
func (c *Calculator) Quote(items []order.Item, region string, distanceKm float64, tip int64) pricing.Breakdown {
	sub := Subtotal(items)
	b := pricing.Breakdown{
		Subtotal:    sub,
		DeliveryFee: c.DeliveryFee(sub, distanceKm),
		PlatformFee: c.PlatformFee(sub),
		Tax:         c.Tax(sub, region),
		Tip:         tip,
	}
	b.Total = b.Subtotal + b.DeliveryFee + b.PlatformFee + b.Tax + b.Tip
	return b
}

// QuoteForAddress derives the delivery distance from the partner location.
func (c *Calculator) QuoteForAddress(items []order.Item, partnerLoc geo.Point, addr order.Address, tip int64) pricing.Breakdown {
	return c.Quote(items, addr.Region, geo.DistanceKm(partnerLoc, addr.Location), tip)
}

func MeetsMinimumOrder(items []order.Item, minimumOrderAmount int64) bool {
	return Subtotal(items) >= minimumOrderAmount
}
