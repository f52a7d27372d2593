// Package actionable turns a batch insight into recommendations for supervisors.
package actionable

import (
	"fmt"
	"sort"

	"call-analytics-go/internal/aggregator"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

// Thresholds above which a card is raised.
const (
	negativeEndingThreshold = 0.35
	escalationThreshold     = 0.25
	categoryShareThreshold  = 0.5
	minCallsForCategory     = 3
)

// Generate returns the cards triggered by ins. A batch with no pattern gets a single
// monitoring card.
func Generate(ins aggregator.Insight) []ActionCard {
	var cards []ActionCard

	if neg := ins.EndingSentimentShare["negative"]; neg >= negativeEndingThreshold {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("%.0f%% of calls ended negative", neg*100),
			Action:  "Review closing scripts and coach agents on de-escalation before wrap-up",
			Impact:  "Fewer repeat contacts and complaints after the call",
		})
	}

	if ins.EscalationRate >= escalationThreshold {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("Escalation requested on %.0f%% of calls", ins.EscalationRate*100),
			Action:  "Widen first-line resolution authority for the top escalation reasons",
			Impact:  "Lower tier-2 load and shorter time to resolution",
		})
	}

	if ins.Calls >= minCallsForCategory {
		cats := make([]string, 0, len(ins.CategoryCounts))
		for c := range ins.CategoryCounts {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			share := float64(ins.CategoryCounts[c]) / float64(ins.Calls)
			if share >= categoryShareThreshold {
				cards = append(cards, ActionCard{
					Insight: fmt.Sprintf("%q drives %.0f%% of calls", c, share*100),
					Action:  "Publish self-service guidance for this category and flag it to the owning team",
					Impact:  "Call volume deflection on the dominant topic",
				})
			}
		}
	}

	if len(cards) == 0 {
		return []ActionCard{{
			Insight: "No strong pattern detected",
			Action:  "Monitor and collect more data",
			Impact:  "Low immediate intervention",
		}}
	}
	return cards
}
