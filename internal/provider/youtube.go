package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"devpulse.app/syncd/internal/milestone"
	"devpulse.app/syncd/internal/model"
	"devpulse.app/syncd/internal/store"
)

type YouTubeConfig struct {
	// MinViews is the significance floor for video timeline items.
	MinViews int64
}

// YouTube syncs video uploads from the cached videos scrape and channel
// subscriber milestones from the historical score series.
type YouTube struct {
	deps Deps
	cfg  YouTubeConfig
}

func NewYouTube(deps Deps, cfg YouTubeConfig) *YouTube {
	if cfg.MinViews <= 0 {
		cfg.MinViews = 1000
	}
	return &YouTube{deps: deps, cfg: cfg}
}

func (y *YouTube) Provider() model.Provider {
	return model.ProviderYouTube
}

func (y *YouTube) Machine(kind model.SyncKind) Machine {
	switch kind {
	case model.SyncKindTimeline:
		return &youTubeTimeline{y: y}
	case model.SyncKindMilestones:
		return &youTubeMilestones{y: y}
	default:
		return nil
	}
}

// --- timeline: videos -> finish ---------------------------------------------

const ytStageVideos Stage = "videos"

type ytVideo struct {
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Views       int64     `json:"views"`
	PublishedAt time.Time `json:"published_at"`
}

type youTubeTimeline struct {
	y *YouTube
}

func (m *youTubeTimeline) First() Stage {
	return ytStageVideos
}

func (m *youTubeTimeline) Next(s Stage) Stage {
	switch s {
	case ytStageVideos:
		return StageFinish
	case StageFinish:
		panic("youtube timeline: finish stage re-entered")
	default:
		panic(fmt.Sprintf("youtube timeline: unknown stage %q", s))
	}
}

func (m *youTubeTimeline) Run(ctx context.Context, run *Run) (Outcome, error) {
	switch Stage(run.State.Stage) {
	case ytStageVideos:
		return m.scanVideos(ctx, run)
	case StageFinish:
		return finish(ctx, m.y.deps.Stores.Connections, run)
	default:
		panic(fmt.Sprintf("youtube timeline: unknown stage %q", run.State.Stage))
	}
}

func (m *youTubeTimeline) scanVideos(ctx context.Context, run *Run) (Outcome, error) {
	conn := run.Connection
	scrape, err := m.y.deps.Stores.Scrapes.Get(ctx, conn.ID, model.ScrapeKindVideos)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if reqErr := m.y.deps.Scrapes.RequestScrape(ctx, conn.ID, model.ScrapeKindVideos); reqErr != nil {
				return 0, reqErr
			}
			return 0, ErrScrapeMissing
		}
		return 0, err
	}

	var videos []ytVideo
	if err := json.Unmarshal(scrape.Payload, &videos); err != nil {
		return 0, fmt.Errorf("decoding videos scrape: %w", err)
	}

	var items []model.TimelineItem
	for _, video := range videos {
		if video.Views < m.y.cfg.MinViews {
			continue
		}
		items = append(items, model.TimelineItem{
			UserID:       conn.UserID,
			ConnectionID: conn.ID,
			Kind:         model.ItemKindInteraction,
			Provider:     model.ProviderYouTube,
			PostedAt:     video.PublishedAt,
			Score:        video.Views,
			Title:        []model.Fragment{model.Link(video.Title, video.Link)},
			Subtitle:     []model.Fragment{model.Text(fmt.Sprintf("Published a video with %d views", video.Views))},
			UniqueID:     "video-" + video.VideoID,
		})
	}

	if _, err := m.y.deps.Ingestor.Ingest(ctx, items); err != nil {
		return 0, err
	}
	return OutcomeAdvance, nil
}

// --- milestones: subscriber_milestones -> finish ----------------------------

const ytStageSubscribers Stage = "subscriber_milestones"

type youTubeMilestones struct {
	y *YouTube
}

func (m *youTubeMilestones) First() Stage {
	return ytStageSubscribers
}

func (m *youTubeMilestones) Next(s Stage) Stage {
	switch s {
	case ytStageSubscribers:
		return StageFinish
	case StageFinish:
		panic("youtube milestones: finish stage re-entered")
	default:
		panic(fmt.Sprintf("youtube milestones: unknown stage %q", s))
	}
}

func (m *youTubeMilestones) Run(ctx context.Context, run *Run) (Outcome, error) {
	switch Stage(run.State.Stage) {
	case ytStageSubscribers:
		return m.subscriberMilestones(ctx, run)
	case StageFinish:
		return finish(ctx, m.y.deps.Stores.Connections, run)
	default:
		panic(fmt.Sprintf("youtube milestones: unknown stage %q", run.State.Stage))
	}
}

// subscriberMilestones replays the daily subscriber series so a crossing
// is dated when it happened, not when this stage finally ran.
func (m *youTubeMilestones) subscriberMilestones(ctx context.Context, run *Run) (Outcome, error) {
	conn := run.Connection
	samples, err := m.y.deps.Stores.Scores.ListByConnection(ctx, conn.ID, model.ScoreKindSubscribers)
	if err != nil {
		return 0, err
	}

	var items []model.TimelineItem
	for _, crossing := range milestone.DetectSeries(samples) {
		items = append(items, model.TimelineItem{
			UserID:       conn.UserID,
			ConnectionID: conn.ID,
			Kind:         model.ItemKindMilestone,
			Provider:     model.ProviderYouTube,
			PostedAt:     crossing.At,
			Score:        crossing.Bucket,
			Title:        []model.Fragment{model.Text(fmt.Sprintf("Reached %d subscribers", crossing.Bucket))},
			UniqueID:     milestone.UniqueID(crossing.Bucket),
		})
	}

	if _, err := m.y.deps.Ingestor.Ingest(ctx, items); err != nil {
		return 0, err
	}
	return OutcomeAdvance, nil
}
