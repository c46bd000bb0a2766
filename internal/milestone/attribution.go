package milestone

import (
	"sort"
	"time"
)

// StarSample is one dated star count for a repository.
type StarSample struct {
	Date  time.Time `json:"date"`
	Stars int64     `json:"stars"`
}

// RepoContribution describes one repository a user contributed to, as
// delivered by the contributed-projects scrape.
type RepoContribution struct {
	Name          string           `json:"name"`
	UserCommits   int64            `json:"user_commits"`
	TotalCommits  int64            `json:"total_commits"`
	Languages     map[string]int64 `json:"languages"` // bytes per language
	StarHistory   []StarSample     `json:"star_history"`
	ContributedAt time.Time        `json:"contributed_at"`
}

// Share is the user's contribution fraction for the repository.
func (r RepoContribution) Share() float64 {
	if r.TotalCommits <= 0 {
		return 0
	}
	return float64(r.UserCommits) / float64(r.TotalCommits)
}

// StarsAt returns the repository's star count at a past date: the latest
// sample at or before the date, or 0 when the history starts later.
func StarsAt(history []StarSample, at time.Time) int64 {
	ordered := make([]StarSample, len(history))
	copy(ordered, history)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	var stars int64
	for _, sample := range ordered {
		if sample.Date.After(at) {
			break
		}
		stars = sample.Stars
	}
	return stars
}

// AttributeLanguageStars multiplies, per repository, the user's
// contribution share by the star count at the repo's contribution date and
// by each language's share of the repo's bytes, then sums the result per
// language. The shares argument overrides the per-repo contribution
// fraction when non-nil (it is computed once by an earlier stage and
// carried in job state).
func AttributeLanguageStars(repos []RepoContribution, shares map[string]float64) map[string]int64 {
	totals := make(map[string]float64)
	for _, repo := range repos {
		share := repo.Share()
		if shares != nil {
			if s, ok := shares[repo.Name]; ok {
				share = s
			}
		}
		if share <= 0 {
			continue
		}

		stars := StarsAt(repo.StarHistory, repo.ContributedAt)
		if stars <= 0 {
			continue
		}

		var totalBytes int64
		for _, b := range repo.Languages {
			totalBytes += b
		}
		if totalBytes <= 0 {
			continue
		}

		for language, bytes := range repo.Languages {
			langShare := float64(bytes) / float64(totalBytes)
			totals[language] += share * float64(stars) * langShare
		}
	}

	out := make(map[string]int64, len(totals))
	for language, total := range totals {
		out[language] = int64(total)
	}
	return out
}
