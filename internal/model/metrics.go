package model

// DashboardStats is the server-computed snapshot behind the dashboard.
type DashboardStats struct {
	ProjectID        string       `json:"projectId"`
	Tasks            TaskStats    `json:"tasks"`
	Guests           GuestStats   `json:"guests"`
	Budget           BudgetTotals `json:"budget"`
	Vendors          VendorStats  `json:"vendors"`
	DaysUntilWedding int          `json:"daysUntilWedding"`
}

// TaskStats holds task counts.
type TaskStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
}

// GuestStats holds RSVP counts. Pending includes "maybe".
type GuestStats struct {
	Total     int `json:"total"`
	Confirmed int `json:"confirmed"`
	Declined  int `json:"declined"`
	Pending   int `json:"pending"`
}

// BudgetTotals holds the overall budget and actual spend.
type BudgetTotals struct {
	Total float64 `json:"total"`
	Spent float64 `json:"spent"`
}

// VendorStats holds vendor counts.
type VendorStats struct {
	Total  int `json:"total"`
	Booked int `json:"booked"`
}
