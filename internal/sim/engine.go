package sim

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidDecision = errors.New("invalid decision")

// Params holds the fixed market constants the engine runs on.
type Params struct {
	UnitCost                 float64
	FixedOpex                float64
	TaxRate                  float64
	BaseDemand               float64
	MarketingEffectPerDollar float64
	PriceElasticity          float64
	ReferencePrice           float64

	// CarryDebt deducts the prior quarter's short-term debt from cash before
	// the shortfall split, so unresolved debt compounds across quarters. Off
	// by default: each quarter's debt figure reflects only that quarter's
	// shortfall.
	CarryDebt bool
}

func DefaultParams() Params {
	return Params{
		UnitCost:                 25,
		FixedOpex:                10_000,
		TaxRate:                  0.20,
		BaseDemand:               1_200,
		MarketingEffectPerDollar: 0.1,
		PriceElasticity:          20,
		ReferencePrice:           50,
	}
}

// Engine turns one company's prior quarterly state plus its decisions into
// the next quarterly result. Pure and deterministic: identical inputs always
// produce identical output, and nothing outside the returned value is touched.
type Engine struct {
	params Params
}

func NewEngine(params Params) *Engine {
	return &Engine{params: params}
}

func (e *Engine) Params() Params {
	return e.params
}

// Demand is the units the market asks for under the given decisions. Price
// above the reference shrinks it, marketing grows it, and it never drops
// below zero.
func (e *Engine) Demand(d Decisions) float64 {
	priceEffect := (e.params.ReferencePrice - d.Price) * e.params.PriceElasticity
	marketingEffect := d.Marketing * e.params.MarketingEffectPerDollar
	return math.Max(0, e.params.BaseDemand+priceEffect+marketingEffect)
}

// SimulateQuarter closes one quarter for one company. Negative decision
// fields are rejected with ErrInvalidDecision; every other input is total.
func (e *Engine) SimulateQuarter(prior QuarterResult, d Decisions) (QuarterResult, error) {
	if err := ValidateDecisions(d); err != nil {
		return QuarterResult{}, err
	}

	demand := e.Demand(d)
	available := d.Production + prior.Inventory
	unitsSold := math.Min(demand, available)

	revenue := unitsSold * d.Price
	cogs := unitsSold * e.params.UnitCost
	grossProfit := revenue - cogs

	opex := e.params.FixedOpex + d.Marketing
	ebit := grossProfit - opex
	taxes := math.Max(0, ebit*e.params.TaxRate)
	netIncome := ebit - taxes

	// Production is paid in full this quarter even for unsold units; the
	// difference from COGS sits in inventory.
	cashDelta := revenue - d.Production*e.params.UnitCost - opex
	rawCash := prior.Cash + cashDelta
	if e.params.CarryDebt {
		rawCash -= prior.Debt
	}
	debt := math.Max(0, -rawCash)
	cash := math.Max(0, rawCash)

	result := QuarterResult{
		Quarter:           prior.Quarter + 1,
		Cash:              cash,
		Inventory:         prior.Inventory + d.Production - unitsSold,
		Equity:            prior.Equity + netIncome,
		Debt:              debt,
		Revenue:           revenue,
		COGS:              cogs,
		GrossProfit:       grossProfit,
		OperatingExpenses: opex,
		EBIT:              ebit,
		Taxes:             taxes,
		NetIncome:         netIncome,
		UnitsSold:         unitsSold,
		Production:        d.Production,
		Price:             d.Price,
		Marketing:         d.Marketing,
	}

	if result.Revenue > 0 {
		result.NetMargin = result.NetIncome / result.Revenue
	}
	if result.Debt > 0 {
		ratio := (result.Cash + result.Inventory) / result.Debt
		result.CurrentRatio = &ratio
	}
	return result, nil
}

// ValidateDecisions rejects negative fields. Values are never clamped
// silently; the caller sees which field is out of range.
func ValidateDecisions(d Decisions) error {
	if d.Production < 0 {
		return fmt.Errorf("%w: production must be >= 0, got %v", ErrInvalidDecision, d.Production)
	}
	if d.Price < 0 {
		return fmt.Errorf("%w: price must be >= 0, got %v", ErrInvalidDecision, d.Price)
	}
	if d.Marketing < 0 {
		return fmt.Errorf("%w: marketing must be >= 0, got %v", ErrInvalidDecision, d.Marketing)
	}
	return nil
}

// InitialResult seeds a company's quarter-0 state.
func InitialResult(cash, inventory, equity float64) QuarterResult {
	return QuarterResult{
		Quarter:   0,
		Cash:      cash,
		Inventory: inventory,
		Equity:    equity,
	}
}
