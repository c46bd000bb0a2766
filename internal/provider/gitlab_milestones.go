package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"devpulse.app/syncd/internal/milestone"
	"devpulse.app/syncd/internal/model"
	"devpulse.app/syncd/internal/store"
)

// Milestone stages: contributions_by_repo -> follower_milestones ->
// language_milestones -> finish.
const (
	gitlabStageContributions      Stage = "contributions_by_repo"
	gitlabStageFollowerMilestones Stage = "follower_milestones"
	gitlabStageLanguageMilestones Stage = "language_milestones"
)

type gitlabMilestones struct {
	g *GitLab
}

func (m *gitlabMilestones) First() Stage {
	return gitlabStageContributions
}

func (m *gitlabMilestones) Next(s Stage) Stage {
	switch s {
	case gitlabStageContributions:
		return gitlabStageFollowerMilestones
	case gitlabStageFollowerMilestones:
		return gitlabStageLanguageMilestones
	case gitlabStageLanguageMilestones:
		return StageFinish
	case StageFinish:
		panic("gitlab milestones: finish stage re-entered")
	default:
		panic(fmt.Sprintf("gitlab milestones: unknown stage %q", s))
	}
}

func (m *gitlabMilestones) Run(ctx context.Context, run *Run) (Outcome, error) {
	switch Stage(run.State.Stage) {
	case gitlabStageContributions:
		return m.computeContributions(ctx, run)
	case gitlabStageFollowerMilestones:
		return m.followerMilestones(ctx, run)
	case gitlabStageLanguageMilestones:
		return m.languageMilestones(ctx, run)
	case StageFinish:
		return finish(ctx, m.g.deps.Stores.Connections, run)
	default:
		panic(fmt.Sprintf("gitlab milestones: unknown stage %q", run.State.Stage))
	}
}

// computeContributions derives the user's contribution fraction per
// repository from the contributed-projects scrape and checkpoints the map
// in job state for the attribution stage.
func (m *gitlabMilestones) computeContributions(ctx context.Context, run *Run) (Outcome, error) {
	repos, _, err := m.loadContributions(ctx, run)
	if err != nil {
		return 0, err
	}

	shares := make(map[string]float64, len(repos))
	for _, repo := range repos {
		shares[repo.Name] = repo.Share()
	}
	run.State.RepoShare = shares

	slog.InfoContext(ctx, "computed contribution shares", "repos", len(shares))
	return OutcomeAdvance, nil
}

func (m *gitlabMilestones) followerMilestones(ctx context.Context, run *Run) (Outcome, error) {
	conn := run.Connection
	samples, err := m.g.deps.Stores.Scores.ListByConnection(ctx, conn.ID, model.ScoreKindFollowers)
	if err != nil {
		return 0, err
	}

	var items []model.TimelineItem
	for _, crossing := range milestone.DetectSeries(samples) {
		items = append(items, model.TimelineItem{
			UserID:       conn.UserID,
			ConnectionID: conn.ID,
			Kind:         model.ItemKindMilestone,
			Provider:     model.ProviderGitLab,
			PostedAt:     crossing.At,
			Score:        crossing.Bucket,
			Title:        []model.Fragment{model.Text(fmt.Sprintf("Reached %d followers", crossing.Bucket))},
			Subtitle:     []model.Fragment{model.Link(conn.Username, m.g.profileURL(conn.Username))},
			UniqueID:     milestone.UniqueID(crossing.Bucket),
		})
	}

	if _, err := m.g.deps.Ingestor.Ingest(ctx, items); err != nil {
		return 0, err
	}
	return OutcomeAdvance, nil
}

// languageMilestones attributes each repository's stars across the user's
// contribution share and the repo's language byte fractions, then emits
// one milestone per (language, bucket) reached.
func (m *gitlabMilestones) languageMilestones(ctx context.Context, run *Run) (Outcome, error) {
	conn := run.Connection
	repos, scrapedAt, err := m.loadContributions(ctx, run)
	if err != nil {
		return 0, err
	}

	var items []model.TimelineItem
	for language, stars := range milestone.AttributeLanguageStars(repos, run.State.RepoShare) {
		lang := language
		// Attributed stars have no history to replay, only the scrape's
		// point-in-time total.
		for _, crossing := range milestone.DetectSnapshot(stars, scrapedAt.UTC()) {
			items = append(items, model.TimelineItem{
				UserID:       conn.UserID,
				ConnectionID: conn.ID,
				Kind:         model.ItemKindMilestone,
				Provider:     model.ProviderGitLab,
				PostedAt:     crossing.At,
				Score:        crossing.Bucket,
				Title:        []model.Fragment{model.Text(fmt.Sprintf("Earned %d stars writing %s", crossing.Bucket, lang))},
				Subtitle:     []model.Fragment{model.Link(conn.Username, m.g.profileURL(conn.Username))},
				Language:     &lang,
				UniqueID:     milestone.LanguageUniqueID(lang, crossing.Bucket),
			})
		}
	}

	if _, err := m.g.deps.Ingestor.Ingest(ctx, items); err != nil {
		return 0, err
	}
	return OutcomeAdvance, nil
}

func (m *gitlabMilestones) loadContributions(ctx context.Context, run *Run) ([]milestone.RepoContribution, time.Time, error) {
	scrape, err := m.g.deps.Stores.Scrapes.Get(ctx, run.Connection.ID, model.ScrapeKindContributedProjects)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if reqErr := m.g.deps.Scrapes.RequestScrape(ctx, run.Connection.ID, model.ScrapeKindContributedProjects); reqErr != nil {
				return nil, time.Time{}, reqErr
			}
			return nil, time.Time{}, ErrScrapeMissing
		}
		return nil, time.Time{}, err
	}

	var repos []milestone.RepoContribution
	if err := json.Unmarshal(scrape.Payload, &repos); err != nil {
		return nil, time.Time{}, fmt.Errorf("decoding contributed projects scrape: %w", err)
	}
	return repos, scrape.ScrapedAt, nil
}
