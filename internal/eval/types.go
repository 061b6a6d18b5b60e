package eval

// WindowResult is the error-budget arithmetic over one live window.
type WindowResult struct {
	SuccessCount  int64
	ErrorCount    int64
	TotalRequests int64

	// Availability, ErrorBudget and ErrorBudgetRemaining are nil when the
	// window holds no requests.
	Availability         *float64
	ErrorBudget          *float64
	ErrorBudgetRemaining *float64

	BurnRate float64
}

// NoData reports whether the window holds no usable requests.
func (r WindowResult) NoData() bool {
	return r.TotalRequests == 0 || r.Availability == nil
}
