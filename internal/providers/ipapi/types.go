package ipapi

// locationResponse is the subset of the ipapi.co /json/ payload we read.
// Failed lookups come back with HTTP 200, error=true and a reason.
type locationResponse struct {
	IP             string `json:"ip"`
	CountryCode    string `json:"country_code"`
	Currency       string `json:"currency"`
	CurrencySymbol string `json:"currency_symbol"`
	Error          bool   `json:"error"`
	Reason         string `json:"reason"`
}
