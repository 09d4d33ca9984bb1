package response_models

type PlanResponse struct {
	Code             string `json:"code"` // e.g., "starter", "pro_monthly"
	Name             string `json:"name"`
	Period           string `json:"period"`      // "month" | "year"
	PriceMinor       int64  `json:"price_minor"` // tiyin
	Currency         string `json:"currency"`    // "UZS"
	MinutesPerPeriod int64  `json:"minutes_per_period"`
}

type PackageResponse struct {
	Code       string `json:"code"` // e.g., "pack_300"
	Name       string `json:"name"`
	Minutes    int64  `json:"minutes"`
	PriceMinor int64  `json:"price_minor"`
	Currency   string `json:"currency"`
}
