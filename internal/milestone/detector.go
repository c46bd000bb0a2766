package milestone

import (
	"sort"
	"time"

	"devpulse.app/syncd/internal/model"
)

// Crossing is one threshold first reached at a given date.
type Crossing struct {
	Bucket int64
	At     time.Time
}

// DetectSeries replays an ordered score history and returns one crossing
// per threshold, dated at the first sample that reached it. Detection may
// run long after the fact; the sample date, not the detection date, is
// what ends up on the milestone item. Dips in the history never re-emit a
// threshold that was already reached.
func DetectSeries(samples []model.HistoricalScore) []Crossing {
	ordered := make([]model.HistoricalScore, len(samples))
	copy(ordered, samples)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SampleDate.Before(ordered[j].SampleDate)
	})

	var (
		crossings []Crossing
		prevMax   int64
	)
	for _, sample := range ordered {
		for _, bucket := range Crossed(prevMax, sample.Score) {
			crossings = append(crossings, Crossing{Bucket: bucket, At: sample.SampleDate})
		}
		if sample.Score > prevMax {
			prevMax = sample.Score
		}
	}
	return crossings
}

// DetectSnapshot returns every threshold at or below a point-in-time
// score, all dated at the snapshot time. Used when no history exists.
func DetectSnapshot(score int64, at time.Time) []Crossing {
	var crossings []Crossing
	for _, bucket := range Thresholds(score) {
		crossings = append(crossings, Crossing{Bucket: bucket, At: at})
	}
	return crossings
}
