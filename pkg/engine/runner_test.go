package engine

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/fableforge/fableforge/pkg/generation"
	testutils "github.com/fableforge/fableforge/pkg/utils/test"
)

var _ = Describe("SyncRunner", func() {
	It("generates the reply in one call", func() {
		generator := testutils.NewMockGenerator("a reply")
		runner := NewSyncRunner(generator)

		reply, err := runner.Run(context.Background(), "conv-1", "a prompt")
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal("a reply"))
		Expect(generator.LastPrompt()).To(Equal("a prompt"))
	})

	It("propagates generation errors", func() {
		generator := testutils.NewMockGenerator("")
		generator.Err = context.Canceled
		runner := NewSyncRunner(generator)

		_, err := runner.Run(context.Background(), "conv-1", "a prompt")
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("ThreadRunner", func() {
	var (
		service *testutils.MockThreadService
		runner  *ThreadRunner
		ctx     context.Context
	)

	BeforeEach(func() {
		service = testutils.NewMockThreadService()
		service.AssistantText = "the dragon stirs"
		runner = NewThreadRunner(service, time.Millisecond, zap.NewNop())
		ctx = context.Background()
	})

	It("submits the prompt and polls the run to completion", func() {
		service.Statuses = []generation.Status{
			generation.StatusQueued,
			generation.StatusInProgress,
			generation.StatusCompleted,
		}

		reply, err := runner.Run(ctx, "conv-1", "a prompt")
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal("the dragon stirs"))

		messages := service.Messages["thread-1"]
		Expect(messages).To(HaveLen(1))
		Expect(messages[0].Role).To(Equal("user"))
		Expect(messages[0].Content).To(Equal("a prompt"))
	})

	It("reuses one thread per conversation", func() {
		_, err := runner.Run(ctx, "conv-1", "first")
		Expect(err).NotTo(HaveOccurred())
		_, err = runner.Run(ctx, "conv-1", "second")
		Expect(err).NotTo(HaveOccurred())

		Expect(service.ThreadCount()).To(Equal(1))
		Expect(service.Messages["thread-1"]).To(HaveLen(2))
	})

	It("creates separate threads for separate conversations", func() {
		_, err := runner.Run(ctx, "conv-1", "first")
		Expect(err).NotTo(HaveOccurred())
		_, err = runner.Run(ctx, "conv-2", "second")
		Expect(err).NotTo(HaveOccurred())

		Expect(service.ThreadCount()).To(Equal(2))
	})

	It("fails on a non-completed terminal status", func() {
		service.Statuses = []generation.Status{
			generation.StatusInProgress,
			generation.StatusFailed,
		}

		_, err := runner.Run(ctx, "conv-1", "a prompt")
		Expect(err).To(MatchError(generation.ErrGeneration))
		Expect(err.Error()).To(ContainSubstring("failed"))
	})

	It("surfaces context expiry from the poll loop", func() {
		service.Statuses = []generation.Status{generation.StatusInProgress}

		expiring, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := runner.Run(expiring, "conv-1", "a prompt")
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("propagates thread creation failures", func() {
		service.FailCreate = true

		_, err := runner.Run(ctx, "conv-1", "a prompt")
		Expect(err).To(MatchError(ContainSubstring("ensuring thread")))
	})

	It("propagates status retrieval failures", func() {
		service.FailStatus = true

		_, err := runner.Run(ctx, "conv-1", "a prompt")
		Expect(err).To(MatchError(ContainSubstring("retrieving run status")))
	})
})
