package provider_test

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"devpulse.app/syncd/internal/jobstate"
	"devpulse.app/syncd/internal/model"
	"devpulse.app/syncd/internal/provider"
	"devpulse.app/syncd/internal/store"
)

var _ = Describe("YouTube", func() {
	var (
		ctx       context.Context
		conns     *mockConnectionStore
		timeline  *mockTimelineStore
		scrapes   *mockScrapeStore
		scores    *mockScoreStore
		ingestor  *mockIngestor
		requester *mockScrapeRequester
		yt        *provider.YouTube
	)

	newRun := func(kind model.SyncKind, stage provider.Stage) *provider.Run {
		return &provider.Run{
			Connection: &model.Connection{
				ID:       42,
				UserID:   7,
				Provider: model.ProviderYouTube,
				Username: "devpulse",
			},
			Kind:  kind,
			JobID: "job-1",
			State: &jobstate.State{
				Stage:     string(stage),
				StartedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			},
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		conns = newMockConnectionStore()
		timeline = &mockTimelineStore{existing: make(map[string]bool)}
		scrapes = &mockScrapeStore{scrapes: make(map[model.ScrapeKind]*model.Scrape)}
		scores = &mockScoreStore{}
		ingestor = &mockIngestor{}
		requester = &mockScrapeRequester{}

		yt = provider.NewYouTube(provider.Deps{
			Stores: &store.Stores{
				Connections: conns,
				Timeline:    timeline,
				Scrapes:     scrapes,
				Scores:      scores,
			},
			Ingestor: ingestor,
			Scrapes:  requester,
		}, provider.YouTubeConfig{MinViews: 1000})
	})

	Describe("timeline", func() {
		var machine provider.Machine

		BeforeEach(func() {
			machine = yt.Machine(model.SyncKindTimeline)
		})

		It("requests the videos scrape when none is cached", func() {
			run := newRun(model.SyncKindTimeline, machine.First())

			_, err := machine.Run(ctx, run)

			Expect(err).To(MatchError(provider.ErrScrapeMissing))
			Expect(requester.requests).To(Equal([]model.ScrapeKind{model.ScrapeKindVideos}))
		})

		It("ingests uploads above the view floor and advances", func() {
			videos := []map[string]any{
				{
					"video_id": "vid-1", "title": "Writing a sync pipeline",
					"link": "https://youtube.com/watch?v=vid-1", "views": 52000,
					"published_at": "2025-05-10T00:00:00Z",
				},
				{
					"video_id": "vid-2", "title": "Unlisted test upload",
					"link": "https://youtube.com/watch?v=vid-2", "views": 40,
					"published_at": "2025-05-11T00:00:00Z",
				},
			}
			raw, err := json.Marshal(videos)
			Expect(err).NotTo(HaveOccurred())
			scrapes.scrapes[model.ScrapeKindVideos] = &model.Scrape{
				ConnectionID: 42,
				Kind:         model.ScrapeKindVideos,
				ScrapedAt:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
				Payload:      raw,
			}

			run := newRun(model.SyncKindTimeline, machine.First())
			outcome, err := machine.Run(ctx, run)

			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(provider.OutcomeAdvance))

			items := ingestor.items()
			Expect(items).To(HaveLen(1))
			Expect(items[0].UniqueID).To(Equal("video-vid-1"))
			Expect(items[0].Kind).To(Equal(model.ItemKindInteraction))
			Expect(items[0].Score).To(Equal(int64(52000)))
			Expect(items[0].PostedAt).To(Equal(time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)))
		})

		It("records the run start as the watermark at finish", func() {
			run := newRun(model.SyncKindTimeline, provider.StageFinish)

			outcome, err := machine.Run(ctx, run)

			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(provider.OutcomeDone))
			Expect(conns.watermarks[model.SyncKindTimeline]).To(Equal(run.State.StartedAt))
		})
	})

	Describe("milestones", func() {
		var machine provider.Machine

		BeforeEach(func() {
			machine = yt.Machine(model.SyncKindMilestones)
		})

		It("dates subscriber crossings to the sample that crossed", func() {
			day := func(d int) time.Time {
				return time.Date(2025, 5, d, 0, 0, 0, 0, time.UTC)
			}
			scores.samples = []model.HistoricalScore{
				{ConnectionID: 42, Kind: model.ScoreKindSubscribers, SampleDate: day(1), Score: 400},
				{ConnectionID: 42, Kind: model.ScoreKindSubscribers, SampleDate: day(2), Score: 1200},
				{ConnectionID: 42, Kind: model.ScoreKindSubscribers, SampleDate: day(3), Score: 2600},
			}

			run := newRun(model.SyncKindMilestones, machine.First())
			outcome, err := machine.Run(ctx, run)

			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(provider.OutcomeAdvance))

			items := ingestor.items()
			Expect(items).To(HaveLen(2))
			Expect(items[0].UniqueID).To(Equal("milestone-1000"))
			Expect(items[0].Kind).To(Equal(model.ItemKindMilestone))
			Expect(items[0].PostedAt).To(Equal(day(2)))
			Expect(items[1].UniqueID).To(Equal("milestone-2000"))
			Expect(items[1].PostedAt).To(Equal(day(3)))
		})

		It("ingests nothing for a flat series", func() {
			scores.samples = []model.HistoricalScore{
				{ConnectionID: 42, Kind: model.ScoreKindSubscribers, SampleDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), Score: 800},
			}

			run := newRun(model.SyncKindMilestones, machine.First())
			outcome, err := machine.Run(ctx, run)

			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(provider.OutcomeAdvance))
			Expect(ingestor.items()).To(BeEmpty())
		})
	})
})
