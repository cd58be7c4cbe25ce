// Package metrics derives the dashboard figures from fetched records. Every
// function is pure; results are recomputed from the latest snapshot and
// never stored.
package metrics

import (
	"cmp"
	"math"
	"slices"

	"finance-client/internal/models"

	"github.com/shopspring/decimal"
)

// Status classifies a budget's spending.
type Status string

// Budget status labels, as displayed.
const (
	StatusOverBudget   Status = "Over Budget"
	StatusNearLimit    Status = "Near Limit"
	StatusWithinBudget Status = "Within Budget"
)

// Color is the display color for s.
func (s Status) Color() string {
	switch s {
	case StatusOverBudget:
		return ColorError
	case StatusNearLimit:
		return ColorWarning
	default:
		return ColorSuccess
	}
}

// Progress colors for display.
const (
	ColorError   = "error"
	ColorWarning = "warning"
	ColorSuccess = "success"
)

const (
	// NearLimitPercent is the utilization at which a budget is near its limit.
	NearLimitPercent = 80
	// DefaultTopCategories is the spending chart size.
	DefaultTopCategories = 6
	// MinusSign prefixes expense amounts.
	MinusSign = "−"
)

var (
	hundred   = decimal.NewFromInt(100)
	nearLimit = decimal.NewFromFloat(0.8)
)

// BudgetMetrics are the derived figures for one budget.
type BudgetMetrics struct {
	UtilizationPercentage float64
	RemainingBudget       float64
	Status                Status
}

// dec converts f, mapping non-finite values to zero instead of panicking.
func dec(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// percent returns part/whole*100 rounded to 2 places, or 0 when whole <= 0.
func percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}

// BudgetStatus derives utilization and status from spent and budgeted
// amounts. Classification uses the exact, unclamped ratio. A zero budget has
// 0% utilization and is over budget as soon as anything is spent.
func BudgetStatus(spentAmount, budgetAmount float64) BudgetMetrics {
	spent, budget := dec(spentAmount), dec(budgetAmount)

	m := BudgetMetrics{
		UtilizationPercentage: percent(spent, budget).InexactFloat64(),
		RemainingBudget:       budget.Sub(spent).InexactFloat64(),
	}
	switch {
	case spent.GreaterThan(budget):
		m.Status = StatusOverBudget
	case budget.IsPositive() && spent.GreaterThanOrEqual(budget.Mul(nearLimit)):
		m.Status = StatusNearLimit
	default:
		m.Status = StatusWithinBudget
	}
	return m
}

// GoalProgress returns current/target as a percentage, unclamped.
func GoalProgress(currentAmount, targetAmount float64) float64 {
	return percent(dec(currentAmount), dec(targetAmount)).InexactFloat64()
}

// ClampPercent limits p to [0, 100] for progress bars.
func ClampPercent(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(0, math.Min(100, p))
}

// ProgressColor picks the bar color for an unclamped utilization.
func ProgressColor(p float64) string {
	switch {
	case p >= 100:
		return ColorError
	case p >= NearLimitPercent:
		return ColorWarning
	default:
		return ColorSuccess
	}
}

// TotalBalance sums the balance of every account.
func TotalBalance(accounts []models.Account) float64 {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(dec(a.Balance))
	}
	return total.InexactFloat64()
}

// Summarize aggregates a transaction list by type. Transfers count towards
// TransactionCount only.
func Summarize(transactions []models.Transaction) models.DashboardSummary {
	income, expenses := decimal.Zero, decimal.Zero
	for _, t := range transactions {
		amount := dec(t.Amount).Abs()
		switch t.Type {
		case models.TransactionIncome:
			income = income.Add(amount)
		case models.TransactionExpense:
			expenses = expenses.Add(amount)
		}
	}
	return models.DashboardSummary{
		TotalIncome:      income.InexactFloat64(),
		TotalExpenses:    expenses.InexactFloat64(),
		NetIncome:        income.Sub(expenses).InexactFloat64(),
		TransactionCount: len(transactions),
	}
}

// TopExpenseCategories returns the n largest expense categories by total,
// ties kept in source order. n <= 0 yields an empty slice.
func TopExpenseCategories(breakdown models.CategoryBreakdown, n int) []models.CategoryTotal {
	if n <= 0 {
		return []models.CategoryTotal{}
	}

	expenses := make([]models.CategoryTotal, 0, len(breakdown))
	for _, ct := range breakdown {
		if ct.Type == models.CategoryExpense {
			expenses = append(expenses, ct)
		}
	}
	slices.SortStableFunc(expenses, func(a, b models.CategoryTotal) int {
		return cmp.Compare(b.Total, a.Total)
	})

	if len(expenses) > n {
		expenses = expenses[:n]
	}
	return expenses
}

// DisplayAmount formats a transaction amount with its implied sign.
func DisplayAmount(t models.Transaction) string {
	sign := "+"
	if t.Type == models.TransactionExpense {
		sign = MinusSign
	}
	return sign + dec(t.Amount).Abs().StringFixed(2)
}

// CategoryAllows reports whether a category of categoryType may be used by a
// transaction of transactionType.
func CategoryAllows(categoryType, transactionType string) bool {
	switch transactionType {
	case models.TransactionTransfer:
		return categoryType == models.CategoryIncome || categoryType == models.CategoryExpense
	case models.TransactionIncome:
		return categoryType == models.CategoryIncome
	case models.TransactionExpense:
		return categoryType == models.CategoryExpense
	default:
		return false
	}
}
