package analytics

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Rhymond/go-money"
)

// Mood selects the phrasing of insight text.
type Mood string

const (
	MoodNeutral Mood = "neutral"
	MoodPlayful Mood = "playful"
)

// ParseMood maps user input to a Mood, defaulting to neutral.
func ParseMood(s string) Mood {
	switch Mood(strings.ToLower(strings.TrimSpace(s))) {
	case MoodPlayful:
		return MoodPlayful
	default:
		return MoodNeutral
	}
}

// DirectionThreshold is the minimum |overall percent change| that earns a direction headline.
const DirectionThreshold = 2.0

// InsightKind names the rule that produced a headline.
type InsightKind string

const (
	InsightDirection   InsightKind = "direction"
	InsightTopCategory InsightKind = "top_category"
	InsightGeneric     InsightKind = "generic"
)

// InsightInput is what the composer reads.
type InsightInput struct {
	Totals      CategoryTotals
	Comparison  Comparison
	Budget      BudgetComparison
	Leaderboard Leaderboard
	Currency    string
}

// Insight is short template text describing a snapshot.
type Insight struct {
	Mood     Mood        `json:"mood"`
	Kind     InsightKind `json:"kind"`
	Headline string      `json:"headline"`
	Details  []string    `json:"details"`
}

type phrasebook struct {
	up, down    string // percent, current, previous
	top         string // category, amount, share
	generic     string
	empty       string
	overBudget  string // category, overage
	topMerchant string // merchant, amount
}

var phrasebooks = map[Mood]phrasebook{
	MoodNeutral: {
		up:          "Spending is up %s compared with the previous period (%s vs %s).",
		down:        "Spending is down %s compared with the previous period (%s vs %s).",
		top:         "%s is your largest category at %s (%s of spending).",
		generic:     "Spending is steady. Keep logging expenses to see more insights.",
		empty:       "No spending recorded for this period yet.",
		overBudget:  "%s is over budget by %s.",
		topMerchant: "Top merchant: %s (%s).",
	},
	MoodPlayful: {
		up:          "Whoa, spending climbed %s versus last period (%s vs %s). Your wallet felt that one.",
		down:        "Nice! Spending dropped %s versus last period (%s vs %s). Treat yourself... modestly.",
		top:         "%s is stealing the show with %s (%s of everything you spent).",
		generic:     "Smooth sailing. Feed me more receipts and I'll dig up some gossip.",
		empty:       "Nothing spent yet? Either you're a saint or the receipts are hiding.",
		overBudget:  "%s blew past its budget by %s. Oops.",
		topMerchant: "Your favorite hangout: %s (%s).",
	},
}

// ComposeInsight applies the headline rules in priority order: a spending direction when
// the overall change is at least DirectionThreshold percent, then a dominant category,
// then a generic line. Details list over-budget categories and the top merchant.
func ComposeInsight(in InsightInput, mood Mood) Insight {
	mood = ParseMood(string(mood))
	pb := phrasebooks[mood]
	cur := in.Currency

	ins := Insight{Mood: mood, Details: []string{}}
	overall := in.Comparison.Overall

	switch {
	case in.Comparison.Available && overall.Percent != nil && math.Abs(*overall.Percent) >= DirectionThreshold:
		ins.Kind = InsightDirection
		tmpl := pb.up
		if *overall.Percent < 0 {
			tmpl = pb.down
		}
		ins.Headline = fmt.Sprintf(tmpl,
			trimFloat(math.Abs(math.Round(*overall.Percent*10)/10))+"%",
			FormatMoney(overall.Current, cur), FormatMoney(overall.Previous, cur))
	default:
		if name, amt, ok := dominantCategory(in.Totals); ok {
			ins.Kind = InsightTopCategory
			share := 0.0
			if in.Totals.Total > 0 {
				share = amt / in.Totals.Total * 100
			}
			ins.Headline = fmt.Sprintf(pb.top, name, FormatMoney(amt, cur), trimFloat(math.Round(share))+"%")
			break
		}
		ins.Kind = InsightGeneric
		if in.Totals.Total > 0 {
			ins.Headline = pb.generic
		} else {
			ins.Headline = pb.empty
		}
	}

	for _, name := range in.Budget.OverBudget {
		line, ok := in.Budget.Line(name)
		if !ok || line.Budget <= 0 {
			continue
		}
		ins.Details = append(ins.Details, fmt.Sprintf(pb.overBudget, name, FormatMoney(-line.Remaining, cur)))
	}
	if len(in.Leaderboard.Merchants) > 0 {
		top := in.Leaderboard.Merchants[0]
		ins.Details = append(ins.Details, fmt.Sprintf(pb.topMerchant, top.Name, FormatMoney(top.Total, cur)))
	}
	return ins
}

// dominantCategory returns the category with the strictly largest positive total. A tie
// for the maximum means there is no dominant category.
func dominantCategory(t CategoryTotals) (string, float64, bool) {
	var (
		best   string
		most   float64
		unique bool
	)
	for name, amt := range t.ByCategory {
		switch {
		case amt > most:
			best, most, unique = name, amt, true
		case amt == most && most > 0:
			unique = false
		}
	}
	if !unique || most <= 0 {
		return "", 0, false
	}
	return best, most, true
}

// FormatMoney renders an amount in the given ISO currency, falling back to USD formatting
// for unknown codes.
func FormatMoney(amount float64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" || money.GetCurrency(code) == nil {
		code = DefaultCurrency
	}
	return money.New(Cents(amount), code).Display()
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
