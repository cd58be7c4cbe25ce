package models

// User represents an authenticated user profile.
type User struct {
	ID          int64   `json:"user_id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	DateCreated string  `json:"date_created"`
	LastLogin   *string `json:"last_login"`
	IsActive    bool    `json:"is_active"`
}

// Account types.
const (
	AccountChecking   = "checking"
	AccountSavings    = "savings"
	AccountCredit     = "credit"
	AccountInvestment = "investment"
)

// Account represents a financial account. Balance is authoritative.
type Account struct {
	ID          int64   `json:"account_id"`
	UserID      int64   `json:"user_id"`
	Name        string  `json:"account_name"`
	Type        string  `json:"account_type"`
	Balance     float64 `json:"balance"`
	Currency    string  `json:"currency"`
	DateCreated string  `json:"date_created"`
	LastUpdated string  `json:"last_updated"`
	IsActive    bool    `json:"is_active"`
}

// Transaction types.
const (
	TransactionIncome   = "income"
	TransactionExpense  = "expense"
	TransactionTransfer = "transfer"
)

// Transaction represents a single money movement. Amount is a non-negative
// magnitude; the sign is implied by Type.
type Transaction struct {
	ID           int64   `json:"transaction_id"`
	AccountID    int64   `json:"account_id"`
	CategoryID   int64   `json:"category_id"`
	CategoryName *string `json:"category_name,omitempty"`
	AccountName  *string `json:"account_name,omitempty"`
	Amount       float64 `json:"amount"`
	Description  *string `json:"description"`
	Date         string  `json:"transaction_date"`
	Type         string  `json:"transaction_type"`
	Status       string  `json:"status"`
	Notes        *string `json:"notes"`
}

// Category types.
const (
	CategoryIncome  = "income"
	CategoryExpense = "expense"
)

// Category groups transactions of one type.
type Category struct {
	ID        int64   `json:"category_id"`
	UserID    int64   `json:"user_id"`
	Name      string  `json:"category_name"`
	Type      string  `json:"category_type"`
	ColorCode *string `json:"color_code"`
	IsActive  bool    `json:"is_active"`
}

// Budget period types.
const (
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
)

// Budget is a spending limit for a category over a period. Utilization and
// status are derived on the client and never sent back.
type Budget struct {
	ID           int64   `json:"budget_id"`
	UserID       int64   `json:"user_id"`
	CategoryID   int64   `json:"category_id"`
	CategoryName *string `json:"category_name,omitempty"`
	BudgetAmount float64 `json:"budget_amount"`
	SpentAmount  float64 `json:"spent_amount"`
	PeriodType   string  `json:"period_type"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	IsActive     bool    `json:"is_active"`
}

// Goal priority levels.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// FinancialGoal is a savings, debt payoff or investment target.
type FinancialGoal struct {
	ID            int64   `json:"goal_id"`
	UserID        int64   `json:"user_id"`
	Name          string  `json:"goal_name"`
	TargetAmount  float64 `json:"target_amount"`
	CurrentAmount float64 `json:"current_amount"`
	TargetDate    *string `json:"target_date"`
	Type          string  `json:"goal_type"`
	PriorityLevel string  `json:"priority_level"`
	Description   *string `json:"description"`
	IsCompleted   bool    `json:"is_completed"`
}

// DashboardSummary is the server-computed aggregate for the current period.
type DashboardSummary struct {
	TotalIncome      float64 `json:"total_income"`
	TotalExpenses    float64 `json:"total_expenses"`
	NetIncome        float64 `json:"net_income"`
	TransactionCount int     `json:"transaction_count"`
}
