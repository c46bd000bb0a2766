package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"devpulse.app/syncd/internal/model"
	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/time/rate"
)

type GitLabConfig struct {
	// BaseURL is the instance root (e.g. https://gitlab.example.com).
	// Empty means gitlab.com.
	BaseURL  string
	PageSize int
	// RPS caps event API calls across all connections of this worker.
	RPS float64
}

type GitLab struct {
	deps    Deps
	cfg     GitLabConfig
	limiter *rate.Limiter
}

func NewGitLab(deps Deps, cfg GitLabConfig) *GitLab {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 5
	}
	return &GitLab{
		deps:    deps,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (g *GitLab) Provider() model.Provider {
	return model.ProviderGitLab
}

func (g *GitLab) Machine(kind model.SyncKind) Machine {
	switch kind {
	case model.SyncKindTimeline:
		return &gitlabTimeline{g: g}
	case model.SyncKindMilestones:
		return &gitlabMilestones{g: g}
	default:
		return nil
	}
}

func (g *GitLab) client(conn *model.Connection) (*gitlab.Client, error) {
	var opts []gitlab.ClientOptionFunc
	if g.cfg.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(strings.TrimSuffix(g.cfg.BaseURL, "/")+"/api/v4"))
	}
	client, err := gitlab.NewClient(conn.AccessToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return client, nil
}

func (g *GitLab) profileURL(username string) string {
	base := g.cfg.BaseURL
	if base == "" {
		base = "https://gitlab.com"
	}
	return strings.TrimSuffix(base, "/") + "/" + username
}

// --- timeline: events -> timeline -> finish ---------------------------------

const (
	gitlabStageEvents   Stage = "events"
	gitlabStageTimeline Stage = "timeline"
)

type gitlabTimeline struct {
	g *GitLab
}

func (m *gitlabTimeline) First() Stage {
	return gitlabStageEvents
}

func (m *gitlabTimeline) Next(s Stage) Stage {
	switch s {
	case gitlabStageEvents:
		return gitlabStageTimeline
	case gitlabStageTimeline:
		return StageFinish
	case StageFinish:
		panic("gitlab timeline: finish stage re-entered")
	default:
		panic(fmt.Sprintf("gitlab timeline: unknown stage %q", s))
	}
}

func (m *gitlabTimeline) Run(ctx context.Context, run *Run) (Outcome, error) {
	switch Stage(run.State.Stage) {
	case gitlabStageEvents:
		return m.fetchEventsPage(ctx, run)
	case gitlabStageTimeline:
		return m.buildTimeline(ctx, run)
	case StageFinish:
		return finish(ctx, m.g.deps.Stores.Connections, run)
	default:
		panic(fmt.Sprintf("gitlab timeline: unknown stage %q", run.State.Stage))
	}
}

// fetchEventsPage pulls exactly one page of the user's contribution events
// so a single invocation never blocks for an account's full history. The
// page number is the cursor persisted in job state.
func (m *gitlabTimeline) fetchEventsPage(ctx context.Context, run *Run) (Outcome, error) {
	client, err := m.g.client(run.Connection)
	if err != nil {
		return 0, err
	}

	page := 1
	if run.State.Cursor != "" {
		page, err = strconv.Atoi(run.State.Cursor)
		if err != nil {
			return 0, fmt.Errorf("invalid page cursor %q: %w", run.State.Cursor, err)
		}
	}

	if err := m.g.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	events, resp, err := client.Users.ListUserContributionEvents(
		run.Connection.Username,
		&gitlab.ListContributionEventsOptions{
			ListOptions: gitlab.ListOptions{Page: int64(page), PerPage: int64(m.g.cfg.PageSize)},
		},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return 0, fmt.Errorf("listing gitlab events (page %d): %w", page, err)
	}
	m.g.deps.Metrics.RecordPageFetched(string(model.ProviderGitLab))

	watermark := run.Connection.Watermark(run.Kind)
	reachedWatermark := false
	collected := 0
	for _, event := range events {
		if event.CreatedAt == nil {
			continue
		}
		if watermark != nil && !event.CreatedAt.After(*watermark) {
			reachedWatermark = true
			continue
		}
		raw, err := json.Marshal(event)
		if err != nil {
			return 0, fmt.Errorf("encoding gitlab event: %w", err)
		}
		run.State.Events = append(run.State.Events, raw)
		collected++
	}

	slog.InfoContext(ctx, "fetched gitlab events page",
		"page", page,
		"events", len(events),
		"collected", collected,
		"total_collected", len(run.State.Events))

	if resp.NextPage > 0 && !reachedWatermark {
		run.State.Cursor = strconv.FormatInt(resp.NextPage, 10)
		return OutcomeRepeat, nil
	}
	return OutcomeAdvance, nil
}

func (m *gitlabTimeline) buildTimeline(ctx context.Context, run *Run) (Outcome, error) {
	conn := run.Connection
	items := make([]model.TimelineItem, 0, len(run.State.Events))
	for _, raw := range run.State.Events {
		var event gitlab.ContributionEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return 0, fmt.Errorf("decoding gitlab event: %w", err)
		}
		if event.CreatedAt == nil {
			continue
		}

		title := event.TargetTitle
		if title == "" {
			title = event.PushData.Ref
		}
		items = append(items, model.TimelineItem{
			UserID:       conn.UserID,
			ConnectionID: conn.ID,
			Kind:         model.ItemKindInteraction,
			Provider:     model.ProviderGitLab,
			PostedAt:     *event.CreatedAt,
			Score:        gitlabEventScore(&event),
			Title:        []model.Fragment{model.Text(event.ActionName + " " + title)},
			Subtitle:     []model.Fragment{model.Link(conn.Username, m.g.profileURL(conn.Username))},
			UniqueID:     fmt.Sprintf("event-%d", event.ID),
		})
	}

	if _, err := m.g.deps.Ingestor.Ingest(ctx, items); err != nil {
		return 0, err
	}
	return OutcomeAdvance, nil
}

func gitlabEventScore(event *gitlab.ContributionEvent) int64 {
	switch event.ActionName {
	case "pushed to", "pushed new":
		if event.PushData.CommitCount > 0 {
			return int64(event.PushData.CommitCount)
		}
		return 1
	case "opened":
		if event.TargetType == "MergeRequest" {
			return 10
		}
		return 3
	case "accepted", "merged":
		return 10
	case "commented on":
		return 1
	default:
		return 1
	}
}
