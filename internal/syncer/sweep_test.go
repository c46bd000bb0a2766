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

var _ = Describe("Sweeper", func() {
	var (
		ctx      context.Context
		conns    *mockConnectionStore
		jobs     *memJobStore
		producer *mockProducer
		sweeper  *syncer.Sweeper
	)

	BeforeEach(func() {
		ctx = context.Background()
		conns = &mockConnectionStore{}
		jobs = newMemJobStore()
		producer = &mockProducer{}
		sweeper = syncer.NewSweeper(conns, jobs, producer, 5)
	})

	It("enqueues one sync task per eligible connection", func() {
		conns.listSyncableFn = func(_ context.Context, ceiling int32) ([]model.Connection, error) {
			Expect(ceiling).To(Equal(int32(5)))
			return []model.Connection{
				{ID: 1, Provider: model.ProviderGitLab},
				{ID: 2, Provider: model.ProviderYouTube},
			}, nil
		}

		Expect(sweeper.SweepTimeline(ctx)).To(Succeed())

		tasks := producer.enqueued()
		Expect(tasks).To(HaveLen(2))
		for _, task := range tasks {
			Expect(task.TaskType).To(Equal(queue.TaskTypeSync))
			Expect(task.SyncKind).To(Equal(string(model.SyncKindTimeline)))
			Expect(task.JobID).NotTo(BeEmpty())
			Expect(task.Attempt).To(Equal(1))
		}
		Expect(tasks[0].JobID).NotTo(Equal(tasks[1].JobID))
	})

	It("reuses the active job id of an unfinished run", func() {
		conns.listSyncableFn = func(_ context.Context, _ int32) ([]model.Connection, error) {
			return []model.Connection{{ID: 1, Provider: model.ProviderGitLab}}, nil
		}
		Expect(jobs.SetActiveJob(ctx, 1, model.SyncKindTimeline, "job-open")).To(Succeed())

		Expect(sweeper.SweepTimeline(ctx)).To(Succeed())

		tasks := producer.enqueued()
		Expect(tasks).To(HaveLen(1))
		Expect(tasks[0].JobID).To(Equal("job-open"))
	})

	It("records a fresh job id as the active job", func() {
		conns.listSyncableFn = func(_ context.Context, _ int32) ([]model.Connection, error) {
			return []model.Connection{{ID: 1, Provider: model.ProviderGitLab}}, nil
		}

		Expect(sweeper.SweepMilestones(ctx)).To(Succeed())

		tasks := producer.enqueued()
		Expect(tasks).To(HaveLen(1))

		active, err := jobs.ActiveJob(ctx, 1, model.SyncKindMilestones)
		Expect(err).NotTo(HaveOccurred())
		Expect(active).To(Equal(tasks[0].JobID))
	})

	It("propagates listing failures", func() {
		conns.listSyncableFn = func(_ context.Context, _ int32) ([]model.Connection, error) {
			return nil, errors.New("db down")
		}

		Expect(sweeper.SweepTimeline(ctx)).NotTo(Succeed())
		Expect(producer.enqueued()).To(BeEmpty())
	})
})
