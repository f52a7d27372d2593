package actionable_test

import (
	"testing"

	"call-analytics-go/internal/actionable"
	"call-analytics-go/internal/aggregator"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerate(t *testing.T) {
	Convey("Given a batch with many negative endings and one dominant category", t, func() {
		cards := actionable.Generate(aggregator.Insight{
			Calls:                4,
			EndingSentimentShare: map[string]float64{"negative": 0.5, "positive": 0.5},
			CategoryCounts:       map[string]int{"billing": 3, "tech": 1},
			EscalationRate:       0.1,
		})

		Convey("Then a sentiment card and a category card are raised", func() {
			So(len(cards), ShouldEqual, 2)
			So(cards[0].Insight, ShouldContainSubstring, "ended negative")
			So(cards[1].Insight, ShouldContainSubstring, "billing")
		})
	})

	Convey("Given a quiet batch", t, func() {
		cards := actionable.Generate(aggregator.Insight{Calls: 2, EndingSentimentShare: map[string]float64{"positive": 1}})

		Convey("Then a single monitoring card is returned", func() {
			So(len(cards), ShouldEqual, 1)
			So(cards[0].Action, ShouldEqual, "Monitor and collect more data")
		})
	})
}
