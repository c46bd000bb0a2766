package provider_test

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"devpulse.app/syncd/internal/jobstate"
	"devpulse.app/syncd/internal/milestone"
	"devpulse.app/syncd/internal/model"
	"devpulse.app/syncd/internal/provider"
	"devpulse.app/syncd/internal/store"
)

var _ = Describe("GitLab milestones", func() {
	var (
		ctx       context.Context
		conns     *mockConnectionStore
		scrapes   *mockScrapeStore
		scores    *mockScoreStore
		ingestor  *mockIngestor
		requester *mockScrapeRequester
		machine   provider.Machine
		run       *provider.Run
	)

	scrapedAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	contributedAt := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	seedContributions := func(repos []milestone.RepoContribution) {
		raw, err := json.Marshal(repos)
		Expect(err).NotTo(HaveOccurred())
		scrapes.scrapes[model.ScrapeKindContributedProjects] = &model.Scrape{
			ConnectionID: 42,
			Kind:         model.ScrapeKindContributedProjects,
			ScrapedAt:    scrapedAt,
			Payload:      raw,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		conns = newMockConnectionStore()
		scrapes = &mockScrapeStore{scrapes: make(map[model.ScrapeKind]*model.Scrape)}
		scores = &mockScoreStore{}
		ingestor = &mockIngestor{}
		requester = &mockScrapeRequester{}

		g := provider.NewGitLab(provider.Deps{
			Stores: &store.Stores{
				Connections: conns,
				Scrapes:     scrapes,
				Scores:      scores,
			},
			Ingestor: ingestor,
			Scrapes:  requester,
		}, provider.GitLabConfig{})
		machine = g.Machine(model.SyncKindMilestones)

		run = &provider.Run{
			Connection: &model.Connection{
				ID:       42,
				UserID:   7,
				Provider: model.ProviderGitLab,
				Username: "dev",
			},
			Kind:  model.SyncKindMilestones,
			JobID: "job-1",
			State: &jobstate.State{
				Stage:     string(machine.First()),
				StartedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			},
		}
	})

	Describe("contributions_by_repo", func() {
		It("requests the contributed projects scrape when none is cached", func() {
			_, err := machine.Run(ctx, run)

			Expect(err).To(MatchError(provider.ErrScrapeMissing))
			Expect(requester.requests).To(Equal([]model.ScrapeKind{model.ScrapeKindContributedProjects}))
		})

		It("checkpoints contribution shares in job state", func() {
			seedContributions([]milestone.RepoContribution{
				{Name: "grp/app", UserCommits: 25, TotalCommits: 100},
				{Name: "grp/lib", UserCommits: 10, TotalCommits: 10},
			})

			outcome, err := machine.Run(ctx, run)

			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(provider.OutcomeAdvance))
			Expect(run.State.RepoShare).To(Equal(map[string]float64{
				"grp/app": 0.25,
				"grp/lib": 1.0,
			}))
		})
	})

	Describe("follower_milestones", func() {
		BeforeEach(func() {
			run.State.Stage = "follower_milestones"
		})

		It("emits one item per follower crossing", func() {
			day := func(d int) time.Time {
				return time.Date(2025, 5, d, 0, 0, 0, 0, time.UTC)
			}
			scores.samples = []model.HistoricalScore{
				{ConnectionID: 42, Kind: model.ScoreKindFollowers, SampleDate: day(1), Score: 900},
				{ConnectionID: 42, Kind: model.ScoreKindFollowers, SampleDate: day(2), Score: 1500},
			}

			outcome, err := machine.Run(ctx, run)

			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(provider.OutcomeAdvance))

			items := ingestor.items()
			Expect(items).To(HaveLen(1))
			Expect(items[0].UniqueID).To(Equal("milestone-1000"))
			Expect(items[0].Kind).To(Equal(model.ItemKindMilestone))
			Expect(items[0].PostedAt).To(Equal(day(2)))
			Expect(items[0].Subtitle[0].Href).To(HaveValue(Equal("https://gitlab.com/dev")))
		})
	})

	Describe("language_milestones", func() {
		BeforeEach(func() {
			run.State.Stage = "language_milestones"
		})

		It("attributes stars using the checkpointed shares", func() {
			seedContributions([]milestone.RepoContribution{
				{
					Name:         "grp/app",
					UserCommits:  1,
					TotalCommits: 100,
					Languages:    map[string]int64{"Go": 1000},
					StarHistory: []milestone.StarSample{
						{Date: contributedAt.AddDate(0, -1, 0), Stars: 4000},
					},
					ContributedAt: contributedAt,
				},
			})
			// The share computed in the first stage wins over the raw ratio.
			run.State.RepoShare = map[string]float64{"grp/app": 0.5}

			outcome, err := machine.Run(ctx, run)

			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(provider.OutcomeAdvance))

			items := ingestor.items()
			Expect(items).To(HaveLen(2)) // 0.5 * 4000 = 2000 attributed Go stars
			for _, item := range items {
				Expect(*item.Language).To(Equal("Go"))
				Expect(item.PostedAt).To(Equal(scrapedAt))
			}
			Expect(items[0].UniqueID).To(Equal("lang-go-1000"))
			Expect(items[1].UniqueID).To(Equal("lang-go-2000"))
		})

		It("emits nothing when attribution stays below the first bucket", func() {
			seedContributions([]milestone.RepoContribution{
				{
					Name:         "grp/tiny",
					UserCommits:  1,
					TotalCommits: 2,
					Languages:    map[string]int64{"Go": 1000},
					StarHistory: []milestone.StarSample{
						{Date: contributedAt.AddDate(0, -1, 0), Stars: 30},
					},
					ContributedAt: contributedAt,
				},
			})

			outcome, err := machine.Run(ctx, run)

			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(provider.OutcomeAdvance))
			Expect(ingestor.items()).To(BeEmpty())
		})
	})

	Describe("finish", func() {
		It("records the run start as the milestones watermark", func() {
			run.State.Stage = string(provider.StageFinish)

			outcome, err := machine.Run(ctx, run)

			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(provider.OutcomeDone))
			Expect(conns.watermarks[model.SyncKindMilestones]).To(Equal(run.State.StartedAt))
		})
	})
})
