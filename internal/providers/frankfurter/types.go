package frankfurter

// latestResponse is the payload of GET /latest?from=X&to=Y.
type latestResponse struct {
	Amount float64            `json:"amount"`
	Base   string             `json:"base"`
	Date   string             `json:"date"` // YYYY-MM-DD
	Rates  map[string]float64 `json:"rates"`
}
