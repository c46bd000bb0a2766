package syncer_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"devpulse.app/syncd/internal/model"
	"devpulse.app/syncd/internal/queue"
	"devpulse.app/syncd/internal/syncer"
)

var _ = Describe("Ingestor", func() {
	var (
		ctx      context.Context
		timeline *mockTimelineStore
		producer *mockProducer
		ingestor *syncer.Ingestor
	)

	newItem := func(uniqueID string) model.TimelineItem {
		return model.TimelineItem{
			UserID:       7,
			ConnectionID: 42,
			Kind:         model.ItemKindInteraction,
			Provider:     model.ProviderGitLab,
			UniqueID:     uniqueID,
			Title:        []model.Fragment{model.Text("pushed 3 commits")},
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		timeline = &mockTimelineStore{}
		producer = &mockProducer{}
		ingestor = syncer.NewIngestor(timeline, producer, nil)
	})

	It("assigns ids and fans out every inserted item", func() {
		var captured []model.TimelineItem
		timeline.insertBatchFn = func(_ context.Context, items []model.TimelineItem) ([]int64, error) {
			captured = items
			return []int64{items[0].ID, items[1].ID}, nil
		}

		inserted, err := ingestor.Ingest(ctx, []model.TimelineItem{
			newItem("event-1"), newItem("event-2"),
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(inserted).To(HaveLen(2))
		for _, item := range captured {
			Expect(item.ID).NotTo(BeZero())
		}

		tasks := producer.enqueued()
		Expect(tasks).To(HaveLen(2))
		for i, task := range tasks {
			Expect(task.TaskType).To(Equal(queue.TaskTypeFanOut))
			Expect(task.TimelineItemID).To(Equal(captured[i].ID))
		}
	})

	It("fans out only the rows that actually landed", func() {
		timeline.insertBatchFn = func(_ context.Context, items []model.TimelineItem) ([]int64, error) {
			// First candidate was a duplicate.
			return []int64{items[1].ID}, nil
		}

		inserted, err := ingestor.Ingest(ctx, []model.TimelineItem{
			newItem("event-1"), newItem("event-2"),
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(inserted).To(HaveLen(1))
		Expect(producer.enqueued()).To(HaveLen(1))
	})

	It("does nothing for an empty batch", func() {
		inserted, err := ingestor.Ingest(ctx, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(inserted).To(BeEmpty())
		Expect(producer.enqueued()).To(BeEmpty())
	})

	It("propagates insert failures", func() {
		timeline.insertBatchFn = func(_ context.Context, _ []model.TimelineItem) ([]int64, error) {
			return nil, errors.New("constraint violation")
		}

		_, err := ingestor.Ingest(ctx, []model.TimelineItem{newItem("event-1")})

		Expect(err).To(HaveOccurred())
		Expect(producer.enqueued()).To(BeEmpty())
	})
})
