package membership

import "strings"

// Plan is a membership tier. PlanUnknown covers every key outside the catalog.
type Plan int

const (
	PlanUnknown Plan = iota
	PlanBronze
	PlanSilver
	PlanGold
)

// DefaultAccentColor is used for plans outside the catalog.
const DefaultAccentColor = "#7c3aed"

// PlanDetails is the display data derived from a plan key.
type PlanDetails struct {
	Plan        Plan
	DisplayName string
	Price       string
	AccentColor string
}

var catalog = map[Plan]PlanDetails{
	PlanBronze: {Plan: PlanBronze, DisplayName: "Bronze Membership", Price: "€453.32", AccentColor: "#cd7f32"},
	PlanSilver: {Plan: PlanSilver, DisplayName: "Silver Membership", Price: "€649.99", AccentColor: "#c0c0c0"},
	PlanGold:   {Plan: PlanGold, DisplayName: "Gold Membership", Price: "€999.99", AccentColor: "#ffd700"},
}

// ParsePlan maps a case-insensitive key to a Plan.
func ParsePlan(key string) Plan {
	switch strings.ToLower(key) {
	case "bronze":
		return PlanBronze
	case "silver":
		return PlanSilver
	case "gold":
		return PlanGold
	default:
		return PlanUnknown
	}
}

func (p Plan) String() string {
	switch p {
	case PlanBronze:
		return "bronze"
	case PlanSilver:
		return "silver"
	case PlanGold:
		return "gold"
	default:
		return "unknown"
	}
}

// Lookup resolves any key to its details. Unknown keys keep the raw key as
// display name with price "N/A"; the function never fails.
func Lookup(key string) PlanDetails {
	if d, ok := catalog[ParsePlan(key)]; ok {
		return d
	}
	return PlanDetails{
		Plan:        PlanUnknown,
		DisplayName: key,
		Price:       "N/A",
		AccentColor: DefaultAccentColor,
	}
}
