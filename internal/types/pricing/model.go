package pricing

// Breakdown is a pure computed value; all amounts are integer minor currency
// units. Total is always the sum of the five components.
type Breakdown struct {
	Subtotal    int64 `json:"subtotal"`
	DeliveryFee int64 `json:"delivery_fee"`
	PlatformFee int64 `json:"platform_fee"`
	Tax         int64 `json:"tax"`
	Tip         int64 `json:"tip"`
	Total       int64 `json:"total"`
}
