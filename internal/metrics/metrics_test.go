package metrics

import (
	"math/rand/v2"
	"testing"

	"finance-client/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetStatus_Scenarios(t *testing.T) {
	tests := []struct {
		name            string
		spent, budget   float64
		wantUtilization float64
		wantRemaining   float64
		wantStatus      Status
	}{
		{"near limit", 450, 500, 90, 50, StatusNearLimit},
		{"over budget", 520, 500, 104, -20, StatusOverBudget},
		{"within budget", 100, 500, 20, 400, StatusWithinBudget},
		{"exactly at limit is near, not over", 500, 500, 100, 0, StatusNearLimit},
		{"exactly 80 percent", 400, 500, 80, 100, StatusNearLimit},
		{"just under 80 percent", 399.99, 500, 80, 100.01, StatusWithinBudget},
		{"nothing spent", 0, 250, 0, 250, StatusWithinBudget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := BudgetStatus(tt.spent, tt.budget)
			assert.Equal(t, tt.wantStatus, m.Status)
			assert.InDelta(t, tt.wantUtilization, m.UtilizationPercentage, 0.001)
			assert.InDelta(t, tt.wantRemaining, m.RemainingBudget, 0.001)
		})
	}
}

// A zero budget has no meaningful ratio. Utilization reads as 0 and the
// status falls out of the spent > budget comparison.
func TestBudgetStatus_ZeroBudget(t *testing.T) {
	m := BudgetStatus(0, 0)
	assert.Equal(t, 0.0, m.UtilizationPercentage)
	assert.Equal(t, StatusWithinBudget, m.Status)

	m = BudgetStatus(12, 0)
	assert.Equal(t, 0.0, m.UtilizationPercentage)
	assert.Equal(t, StatusOverBudget, m.Status)
}

func TestBudgetStatus_Properties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 2000 {
		budget := float64(r.IntN(1_000_000)) / 100
		if budget == 0 {
			budget = 1
		}

		over := budget + float64(1+r.IntN(100_000))/100
		assert.Equal(t, StatusOverBudget, BudgetStatus(over, budget).Status, "spent %v budget %v", over, budget)

		// [0.8, 1.0] of budget, rounded up to the cent so the ratio stays >= 0.8
		near := float64(int64(budget*(0.8+0.2*r.Float64())*100)+1) / 100
		if near > budget {
			near = budget
		}
		if near >= budget*0.8 {
			assert.Equal(t, StatusNearLimit, BudgetStatus(near, budget).Status, "spent %v budget %v", near, budget)
		}

		within := budget * 0.79 * r.Float64()
		assert.Equal(t, StatusWithinBudget, BudgetStatus(within, budget).Status, "spent %v budget %v", within, budget)
	}
}

func TestGoalProgress(t *testing.T) {
	assert.Equal(t, 25.0, GoalProgress(2500, 10000))
	assert.Equal(t, 150.0, GoalProgress(1500, 1000), "progress is not clamped")
	assert.Equal(t, 0.0, GoalProgress(100, 0))
	assert.Equal(t, 33.33, GoalProgress(1, 3))
}

func TestGoalProgress_Monotonic(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for range 500 {
		target := float64(1+r.IntN(1_000_000)) / 100
		prev := GoalProgress(0, target)
		current := 0.0
		for range 50 {
			current += float64(r.IntN(10_000)) / 100
			p := GoalProgress(current, target)
			require.GreaterOrEqual(t, p, prev, "current %v target %v", current, target)
			prev = p
		}
	}
}

func TestClampPercentAndColor(t *testing.T) {
	assert.Equal(t, 100.0, ClampPercent(104))
	assert.Equal(t, 0.0, ClampPercent(-3))
	assert.Equal(t, 42.5, ClampPercent(42.5))

	assert.Equal(t, ColorError, ProgressColor(104))
	assert.Equal(t, ColorError, ProgressColor(100))
	assert.Equal(t, ColorWarning, ProgressColor(90))
	assert.Equal(t, ColorSuccess, ProgressColor(79.99))

	assert.Equal(t, ColorError, StatusOverBudget.Color())
	assert.Equal(t, ColorWarning, StatusNearLimit.Color())
	assert.Equal(t, ColorSuccess, StatusWithinBudget.Color())
}

func TestTotalBalance(t *testing.T) {
	accounts := []models.Account{
		{Balance: 0.1}, {Balance: 0.2}, {Balance: -50}, {Balance: 1000},
	}
	assert.Equal(t, 950.3, TotalBalance(accounts))
	assert.Equal(t, 0.0, TotalBalance(nil))
}

func TestSummarize(t *testing.T) {
	txs := []models.Transaction{
		{Type: models.TransactionIncome, Amount: 3000},
		{Type: models.TransactionExpense, Amount: 1200.5},
		{Type: models.TransactionExpense, Amount: 99.5},
		{Type: models.TransactionTransfer, Amount: 500},
	}
	s := Summarize(txs)
	assert.Equal(t, 3000.0, s.TotalIncome)
	assert.Equal(t, 1300.0, s.TotalExpenses)
	assert.Equal(t, 1700.0, s.NetIncome)
	assert.Equal(t, 4, s.TransactionCount)
}

func TestTopExpenseCategories(t *testing.T) {
	breakdown := models.CategoryBreakdown{
		{Name: "Salary", Type: models.CategoryIncome, Total: 5000},
		{Name: "Rent", Type: models.CategoryExpense, Total: 1200},
		{Name: "Food", Type: models.CategoryExpense, Total: 300},
		{Name: "Fuel", Type: models.CategoryExpense, Total: 300},
		{Name: "Gym", Type: models.CategoryExpense, Total: 40},
		{Name: "Books", Type: models.CategoryExpense, Total: 300},
		{Name: "Travel", Type: models.CategoryExpense, Total: 800},
		{Name: "Gifts", Type: models.CategoryExpense, Total: 10},
	}

	top := TopExpenseCategories(breakdown, DefaultTopCategories)
	require.Len(t, top, DefaultTopCategories)

	names := make([]string, 0, len(top))
	for _, ct := range top {
		names = append(names, ct.Name)
	}
	assert.Equal(t, []string{"Rent", "Travel", "Food", "Fuel", "Books", "Gym"}, names)

	assert.Len(t, TopExpenseCategories(breakdown, 2), 2)
	assert.Empty(t, TopExpenseCategories(nil, 3))
	assert.Empty(t, TopExpenseCategories(breakdown, 0))
	assert.Empty(t, TopExpenseCategories(breakdown, -1))
	assert.Len(t, TopExpenseCategories(breakdown, 100), 7)

	// Source is untouched
	assert.Equal(t, "Salary", breakdown[0].Name)
}

func TestDisplayAmount(t *testing.T) {
	assert.Equal(t, "−12.50", DisplayAmount(models.Transaction{Type: models.TransactionExpense, Amount: 12.5}))
	assert.Equal(t, "+3000.00", DisplayAmount(models.Transaction{Type: models.TransactionIncome, Amount: 3000}))
	assert.Equal(t, "+20.00", DisplayAmount(models.Transaction{Type: models.TransactionTransfer, Amount: 20}))
}

func TestCategoryAllows(t *testing.T) {
	assert.True(t, CategoryAllows(models.CategoryIncome, models.TransactionIncome))
	assert.False(t, CategoryAllows(models.CategoryExpense, models.TransactionIncome))
	assert.True(t, CategoryAllows(models.CategoryExpense, models.TransactionExpense))
	assert.False(t, CategoryAllows(models.CategoryIncome, models.TransactionExpense))
	assert.True(t, CategoryAllows(models.CategoryIncome, models.TransactionTransfer))
	assert.True(t, CategoryAllows(models.CategoryExpense, models.TransactionTransfer))
	assert.False(t, CategoryAllows("savings", models.TransactionTransfer))
}
