package sim

// Decisions is one company's submission for the quarter in progress. All
// fields are currency or unit amounts and must be non-negative.
type Decisions struct {
	Production float64 `json:"production"`
	Price      float64 `json:"price"`
	Marketing  float64 `json:"marketing"`
}

// QuarterResult is an immutable snapshot of a company's financial state after
// a quarter close. Quarter 0 is the seeded starting state; later quarters are
// appended by the engine and never rewritten.
//
// CurrentRatio is nil when the quarter carries no short-term debt: the ratio
// is undefined rather than infinite, and nil keeps the JSON encoding clean.
type QuarterResult struct {
	Quarter           int      `json:"quarter"`
	Cash              float64  `json:"cash"`
	Inventory         float64  `json:"inventory"`
	Equity            float64  `json:"equity"`
	Debt              float64  `json:"debt"`
	Revenue           float64  `json:"revenue"`
	COGS              float64  `json:"cogs"`
	GrossProfit       float64  `json:"gross_profit"`
	OperatingExpenses float64  `json:"operating_expenses"`
	EBIT              float64  `json:"ebit"`
	Taxes             float64  `json:"taxes"`
	NetIncome         float64  `json:"net_income"`
	UnitsSold         float64  `json:"units_sold"`
	NetMargin         float64  `json:"net_margin"`
	CurrentRatio      *float64 `json:"current_ratio"`
	Production        float64  `json:"production"`
	Price             float64  `json:"price"`
	Marketing         float64  `json:"marketing"`
}
