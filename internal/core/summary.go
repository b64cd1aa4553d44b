package core

type (
	// CategoryAmount pairs a category with an aggregated amount.
	CategoryAmount struct {
		CategoryID   string
		CategoryName string
		Kind         Kind
		Amount       Money
	}

	// MonthSummary is the dashboard aggregation for one tenant and month:
	// income/expense totals plus per-category expense breakdown.
	MonthSummary struct {
		EntityID     string
		Year         int
		Month        int
		IncomeTotal  Money
		ExpenseTotal Money
		ByCategory   []CategoryAmount
	}
)

// Net returns income minus expenses for the month.
func (s MonthSummary) Net() Money {
	return Money{Cents: s.IncomeTotal.Cents - s.ExpenseTotal.Cents}
}
