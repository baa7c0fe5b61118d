// Package plans is the fixed subscription policy table: preset tiers with a per-unit
// discount, and a custom quantity with its own fixed per-unit discount.
package plans

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Prices in EUR minor units per month.
const (
	Currency          = "EUR"
	BaseUnitPrice     = 3900
	CustomUnitOff     = 400
	CustomMinQuantity = 1
	CustomMaxQuantity = 50
	customPrefix      = "custom-"
)

var (
	ErrUnknownPlan     = errors.New("unknown subscription plan")
	ErrInvalidQuantity = errors.New("invalid subscription quantity")
)

type Plan struct {
	ID          string
	Name        string
	Units       int
	UnitOff     int64
	Interval    string
	IsCustomQty bool
}

// UnitPrice is the discounted monthly price of one unit.
func (p Plan) UnitPrice() int64 {
	return BaseUnitPrice - p.UnitOff
}

// MonthlyTotal is what one billing period costs.
func (p Plan) MonthlyTotal() int64 {
	return p.UnitPrice() * int64(p.Units)
}

var presets = []Plan{
	{ID: "single", Name: "Single can monthly", Units: 1, UnitOff: 0, Interval: "month"},
	{ID: "duo", Name: "Two cans monthly", Units: 2, UnitOff: 300, Interval: "month"},
	{ID: "stock-up", Name: "Five cans monthly", Units: 5, UnitOff: 600, Interval: "month"},
}

// Selector is what the customer picked: a preset id, or "custom" with a quantity.
type Selector struct {
	PlanID   string `json:"plan_id" bson:"plan_id"`
	Quantity int    `json:"quantity,omitempty" bson:"quantity,omitempty"`
}

func Presets() []Plan {
	out := make([]Plan, len(presets))
	copy(out, presets)
	return out
}

// Resolve maps a selector (or a stored plan id such as "custom-7") to its plan.
func Resolve(sel Selector) (Plan, error) {
	id := strings.ToLower(strings.TrimSpace(sel.PlanID))

	if id == "custom" {
		return custom(sel.Quantity)
	}
	if strings.HasPrefix(id, customPrefix) {
		qty, err := strconv.Atoi(strings.TrimPrefix(id, customPrefix))
		if err != nil {
			return Plan{}, fmt.Errorf("%w: %s", ErrUnknownPlan, sel.PlanID)
		}
		return custom(qty)
	}

	for _, p := range presets {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %s", ErrUnknownPlan, sel.PlanID)
}

func custom(qty int) (Plan, error) {
	if qty < CustomMinQuantity || qty > CustomMaxQuantity {
		return Plan{}, fmt.Errorf("%w: %d (allowed %d-%d)", ErrInvalidQuantity, qty, CustomMinQuantity, CustomMaxQuantity)
	}
	return Plan{
		ID:          customPrefix + strconv.Itoa(qty),
		Name:        fmt.Sprintf("%d cans monthly", qty),
		Units:       qty,
		UnitOff:     CustomUnitOff,
		Interval:    "month",
		IsCustomQty: true,
	}, nil
}
