package provider_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"devpulse.app/syncd/internal/jobstate"
	"devpulse.app/syncd/internal/model"
	"devpulse.app/syncd/internal/provider"
	"devpulse.app/syncd/internal/store"
)

// eventsAPI fakes the GitLab contribution events endpoint, one canned JSON
// body per page number, and records which pages were requested.
type eventsAPI struct {
	pages      map[int]string
	nextPage   map[int]int
	pagesAsked []int
}

func (a *eventsAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/users/dev/events" {
			http.NotFound(w, r)
			return
		}
		page := 1
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
		a.pagesAsked = append(a.pagesAsked, page)

		body, ok := a.pages[page]
		if !ok {
			body = "[]"
		}
		w.Header().Set("Content-Type", "application/json")
		if next := a.nextPage[page]; next > 0 {
			w.Header().Set("X-Next-Page", fmt.Sprint(next))
		}
		fmt.Fprint(w, body)
	})
}

func glEvent(id int, createdAt, actionName, targetTitle string, extra map[string]any) string {
	event := map[string]any{
		"id":           id,
		"created_at":   createdAt,
		"action_name":  actionName,
		"target_title": targetTitle,
	}
	for k, v := range extra {
		event[k] = v
	}
	raw, err := json.Marshal(event)
	Expect(err).NotTo(HaveOccurred())
	return string(raw)
}

var _ = Describe("GitLab timeline", func() {
	var (
		ctx      context.Context
		conns    *mockConnectionStore
		ingestor *mockIngestor
		api      *eventsAPI
		server   *httptest.Server
		machine  provider.Machine
		run      *provider.Run
	)

	newMachine := func() provider.Machine {
		g := provider.NewGitLab(provider.Deps{
			Stores:   &store.Stores{Connections: conns},
			Ingestor: ingestor,
		}, provider.GitLabConfig{
			BaseURL:  server.URL,
			PageSize: 2,
			RPS:      1000,
		})
		return g.Machine(model.SyncKindTimeline)
	}

	newRun := func(stage provider.Stage) *provider.Run {
		return &provider.Run{
			Connection: &model.Connection{
				ID:       42,
				UserID:   7,
				Provider: model.ProviderGitLab,
				Username: "dev",
			},
			Kind:  model.SyncKindTimeline,
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
		ingestor = &mockIngestor{}
		api = &eventsAPI{pages: map[int]string{}, nextPage: map[int]int{}}
		server = httptest.NewServer(api.handler())
		DeferCleanup(server.Close)
		machine = newMachine()
		run = newRun("events")
	})

	Describe("events", func() {
		It("repeats with the cursor advanced while pages are all new", func() {
			api.pages[1] = "[" +
				glEvent(101, "2025-05-10T00:00:00Z", "opened", "Fix flaky retry", nil) + "," +
				glEvent(102, "2025-05-09T00:00:00Z", "commented on", "Fix flaky retry", nil) +
				"]"
			api.nextPage[1] = 2

			outcome, err := machine.Run(ctx, run)

			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(provider.OutcomeRepeat))
			Expect(run.State.Cursor).To(Equal("2"))
			Expect(run.State.Events).To(HaveLen(2))
			Expect(api.pagesAsked).To(Equal([]int{1}))
		})

		It("resumes from the persisted cursor on the next invocation", func() {
			api.pages[1] = "[" + glEvent(101, "2025-05-10T00:00:00Z", "opened", "Fix flaky retry", nil) + "]"
			api.nextPage[1] = 2
			api.pages[2] = "[" + glEvent(100, "2025-05-08T00:00:00Z", "commented on", "Fix flaky retry", nil) + "]"

			outcome, err := machine.Run(ctx, run)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(provider.OutcomeRepeat))

			// The first invocation checkpointed the cursor; run the same
			// stage again from the state it left behind.
			outcome, err = machine.Run(ctx, run)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(provider.OutcomeAdvance))
			Expect(api.pagesAsked).To(Equal([]int{1, 2}))
			Expect(run.State.Events).To(HaveLen(2))
		})

		It("stops paging once the watermark is reached", func() {
			watermark := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
			run.Connection.LastSyncTimelineAt = &watermark
			api.pages[1] = "[" +
				glEvent(101, "2025-05-10T00:00:00Z", "opened", "Fix flaky retry", nil) + "," +
				glEvent(90, "2025-04-20T00:00:00Z", "commented on", "Old thread", nil) +
				"]"
			api.nextPage[1] = 2 // deeper pages exist, but everything there is older

			outcome, err := machine.Run(ctx, run)

			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(provider.OutcomeAdvance))
			Expect(run.State.Cursor).To(BeEmpty())
			Expect(run.State.Events).To(HaveLen(1))
			Expect(api.pagesAsked).To(Equal([]int{1}))
		})
	})

	Describe("timeline", func() {
		It("builds one scored item per accumulated event", func() {
			run.State.Stage = "timeline"
			for _, raw := range []string{
				glEvent(101, "2025-05-10T00:00:00Z", "opened", "Fix flaky retry",
					map[string]any{"target_type": "MergeRequest"}),
				glEvent(102, "2025-05-11T00:00:00Z", "pushed to", "",
					map[string]any{"push_data": map[string]any{"commit_count": 4, "ref": "main"}}),
			} {
				run.State.Events = append(run.State.Events, json.RawMessage(raw))
			}

			outcome, err := machine.Run(ctx, run)

			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(provider.OutcomeAdvance))

			items := ingestor.items()
			Expect(items).To(HaveLen(2))

			Expect(items[0].UniqueID).To(Equal("event-101"))
			Expect(items[0].Kind).To(Equal(model.ItemKindInteraction))
			Expect(items[0].Score).To(Equal(int64(10)))
			Expect(items[0].Title[0].Text).To(Equal("opened Fix flaky retry"))
			Expect(items[0].PostedAt).To(Equal(time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)))

			// No target title on a push: the ref stands in.
			Expect(items[1].UniqueID).To(Equal("event-102"))
			Expect(items[1].Score).To(Equal(int64(4)))
			Expect(items[1].Title[0].Text).To(Equal("pushed to main"))
		})
	})
})
