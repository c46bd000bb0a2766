package milestone_test

import (
	"time"

	"devpulse.app/syncd/internal/milestone"
	"devpulse.app/syncd/internal/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func sample(day int, score int64) model.HistoricalScore {
	return model.HistoricalScore{
		Kind:       model.ScoreKindFollowers,
		SampleDate: time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC),
		Score:      score,
	}
}

var _ = Describe("DetectSeries", func() {
	It("dates each crossing at the first sample that reached it", func() {
		crossings := milestone.DetectSeries([]model.HistoricalScore{
			sample(1, 0),
			sample(2, 400),
			sample(3, 1200),
			sample(4, 2600),
			sample(5, 9800),
		})

		Expect(crossings).To(HaveLen(3))
		Expect(crossings[0].Bucket).To(Equal(int64(1000)))
		Expect(crossings[0].At).To(Equal(sample(3, 0).SampleDate))
		Expect(crossings[1].Bucket).To(Equal(int64(2000)))
		Expect(crossings[1].At).To(Equal(sample(4, 0).SampleDate))
		Expect(crossings[2].Bucket).To(Equal(int64(5000)))
		Expect(crossings[2].At).To(Equal(sample(5, 0).SampleDate))
	})

	It("does not re-emit a threshold after a dip", func() {
		crossings := milestone.DetectSeries([]model.HistoricalScore{
			sample(1, 1500),
			sample(2, 800),
			sample(3, 1600),
		})

		Expect(crossings).To(HaveLen(1))
		Expect(crossings[0].Bucket).To(Equal(int64(1000)))
		Expect(crossings[0].At).To(Equal(sample(1, 0).SampleDate))
	})

	It("sorts unordered histories before replaying", func() {
		crossings := milestone.DetectSeries([]model.HistoricalScore{
			sample(5, 2600),
			sample(1, 0),
			sample(3, 1200),
		})

		Expect(crossings).To(HaveLen(2))
		Expect(crossings[0].Bucket).To(Equal(int64(1000)))
		Expect(crossings[0].At).To(Equal(sample(3, 0).SampleDate))
		Expect(crossings[1].Bucket).To(Equal(int64(2000)))
		Expect(crossings[1].At).To(Equal(sample(5, 0).SampleDate))
	})

	It("returns nothing for a history that never reaches the floor", func() {
		Expect(milestone.DetectSeries([]model.HistoricalScore{
			sample(1, 100),
			sample(2, 900),
		})).To(BeEmpty())
	})
})

var _ = Describe("DetectSnapshot", func() {
	It("dates every reached threshold at the snapshot time", func() {
		at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		crossings := milestone.DetectSnapshot(3000, at)

		Expect(crossings).To(HaveLen(2))
		Expect(crossings[0].Bucket).To(Equal(int64(1000)))
		Expect(crossings[1].Bucket).To(Equal(int64(2000)))
		for _, c := range crossings {
			Expect(c.At).To(Equal(at))
		}
	})
})
