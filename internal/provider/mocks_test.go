package provider_test

import (
	"context"
	"time"

	"devpulse.app/syncd/internal/model"
	"devpulse.app/syncd/internal/store"
)

type mockConnectionStore struct {
	watermarks map[model.SyncKind]time.Time
}

func newMockConnectionStore() *mockConnectionStore {
	return &mockConnectionStore{watermarks: make(map[model.SyncKind]time.Time)}
}

func (m *mockConnectionStore) GetByID(ctx context.Context, id int64) (*model.Connection, error) {
	return nil, store.ErrNotFound
}

func (m *mockConnectionStore) ListSyncable(ctx context.Context, errorCeiling int32) ([]model.Connection, error) {
	return nil, nil
}

func (m *mockConnectionStore) SetWatermark(ctx context.Context, id int64, kind model.SyncKind, at time.Time) error {
	m.watermarks[kind] = at
	return nil
}

func (m *mockConnectionStore) IncrementErrorCount(ctx context.Context, id int64) (int32, error) {
	return 0, nil
}

func (m *mockConnectionStore) ResetErrorCount(ctx context.Context, id int64) error {
	return nil
}

type mockTimelineStore struct {
	existing map[string]bool
}

func (m *mockTimelineStore) GetByID(ctx context.Context, id int64) (*model.TimelineItem, error) {
	return nil, store.ErrNotFound
}

func (m *mockTimelineStore) InsertBatch(ctx context.Context, items []model.TimelineItem) ([]int64, error) {
	return nil, nil
}

func (m *mockTimelineStore) ExistsByUniqueID(ctx context.Context, userID, connectionID int64, uniqueID string) (bool, error) {
	return m.existing[uniqueID], nil
}

type mockScrapeStore struct {
	scrapes map[model.ScrapeKind]*model.Scrape
}

func (m *mockScrapeStore) Get(ctx context.Context, connectionID int64, kind model.ScrapeKind) (*model.Scrape, error) {
	if s, ok := m.scrapes[kind]; ok {
		return s, nil
	}
	return nil, store.ErrNotFound
}

type mockScoreStore struct {
	samples []model.HistoricalScore
}

func (m *mockScoreStore) ListByConnection(ctx context.Context, connectionID int64, kind model.ScoreKind) ([]model.HistoricalScore, error) {
	return m.samples, nil
}

type mockIngestor struct {
	batches [][]model.TimelineItem
	err     error
}

func (m *mockIngestor) Ingest(ctx context.Context, items []model.TimelineItem) ([]int64, error) {
	m.batches = append(m.batches, items)
	if m.err != nil {
		return nil, m.err
	}
	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = int64(i + 1)
	}
	return ids, nil
}

func (m *mockIngestor) items() []model.TimelineItem {
	var out []model.TimelineItem
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

type mockScrapeRequester struct {
	requests []model.ScrapeKind
}

func (m *mockScrapeRequester) RequestScrape(ctx context.Context, connectionID int64, kind model.ScrapeKind) error {
	m.requests = append(m.requests, kind)
	return nil
}
