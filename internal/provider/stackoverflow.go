package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"devpulse.app/syncd/internal/model"
	"devpulse.app/syncd/internal/store"
)

type StackOverflowConfig struct {
	// MinScore is the significance floor: answers below it never become
	// timeline items.
	MinScore int64
}

// StackOverflow syncs Q&A activity from the cached answers scrape; it has
// no live API stage and no milestone pipeline.
type StackOverflow struct {
	deps Deps
	cfg  StackOverflowConfig
}

func NewStackOverflow(deps Deps, cfg StackOverflowConfig) *StackOverflow {
	if cfg.MinScore <= 0 {
		cfg.MinScore = 5
	}
	return &StackOverflow{deps: deps, cfg: cfg}
}

func (s *StackOverflow) Provider() model.Provider {
	return model.ProviderStackOverflow
}

func (s *StackOverflow) Machine(kind model.SyncKind) Machine {
	if kind == model.SyncKindTimeline {
		return &stackOverflowTimeline{s: s}
	}
	return nil
}

const soStageAnswers Stage = "answers"

type soAnswer struct {
	AnswerID      int64     `json:"answer_id"`
	QuestionTitle string    `json:"question_title"`
	Link          string    `json:"link"`
	Score         int64     `json:"score"`
	CreatedAt     time.Time `json:"created_at"`
}

type stackOverflowTimeline struct {
	s *StackOverflow
}

func (m *stackOverflowTimeline) First() Stage {
	return soStageAnswers
}

func (m *stackOverflowTimeline) Next(s Stage) Stage {
	switch s {
	case soStageAnswers:
		return StageFinish
	case StageFinish:
		panic("stackoverflow timeline: finish stage re-entered")
	default:
		panic(fmt.Sprintf("stackoverflow timeline: unknown stage %q", s))
	}
}

func (m *stackOverflowTimeline) Run(ctx context.Context, run *Run) (Outcome, error) {
	switch Stage(run.State.Stage) {
	case soStageAnswers:
		return m.scanAnswers(ctx, run)
	case StageFinish:
		return finish(ctx, m.s.deps.Stores.Connections, run)
	default:
		panic(fmt.Sprintf("stackoverflow timeline: unknown stage %q", run.State.Stage))
	}
}

// scanAnswers is a snapshot-scan stage: one full pass over the cached
// answers scrape, filtering by significance and by a pre-insert duplicate
// check. The conflict-ignored insert remains the real idempotency
// guarantee; the existence check just keeps re-runs from rebuilding
// payloads for items that already landed.
func (m *stackOverflowTimeline) scanAnswers(ctx context.Context, run *Run) (Outcome, error) {
	conn := run.Connection
	scrape, err := m.s.deps.Stores.Scrapes.Get(ctx, conn.ID, model.ScrapeKindAnswers)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if reqErr := m.s.deps.Scrapes.RequestScrape(ctx, conn.ID, model.ScrapeKindAnswers); reqErr != nil {
				return 0, reqErr
			}
			return 0, ErrScrapeMissing
		}
		return 0, err
	}

	var answers []soAnswer
	if err := json.Unmarshal(scrape.Payload, &answers); err != nil {
		return 0, fmt.Errorf("decoding answers scrape: %w", err)
	}

	var items []model.TimelineItem
	for _, answer := range answers {
		if answer.Score < m.s.cfg.MinScore {
			continue
		}
		uniqueID := fmt.Sprintf("answer-%d", answer.AnswerID)
		exists, err := m.s.deps.Stores.Timeline.ExistsByUniqueID(ctx, conn.UserID, conn.ID, uniqueID)
		if err != nil {
			return 0, err
		}
		if exists {
			continue
		}
		items = append(items, model.TimelineItem{
			UserID:       conn.UserID,
			ConnectionID: conn.ID,
			Kind:         model.ItemKindInteraction,
			Provider:     model.ProviderStackOverflow,
			PostedAt:     answer.CreatedAt,
			Score:        answer.Score,
			Title:        []model.Fragment{model.Link(answer.QuestionTitle, answer.Link)},
			Subtitle:     []model.Fragment{model.Text(fmt.Sprintf("Answered with a score of %d", answer.Score))},
			UniqueID:     uniqueID,
		})
	}

	inserted, err := m.s.deps.Ingestor.Ingest(ctx, items)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "scanned answers snapshot",
		"answers", len(answers),
		"candidates", len(items),
		"inserted", len(inserted))
	return OutcomeAdvance, nil
}
