package mq_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/SimonCaignart/plant-e/pkg/mq"
	"github.com/SimonCaignart/plant-e/pkg/mq/mock"
)

var _ = Describe("Worker", func() {
	var (
		client *mock.MockClient
		ack    *mock.Acknowledger
		logger *slog.Logger
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		client = mock.NewMockClient()
		ack = mock.NewAcknowledger()
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		cancel()
	})

	run := func(w *mq.Worker) chan error {
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()
		return done
	}

	It("settles deliveries according to the handler's action", func() {
		w := mq.NewWorker(client, logger, func(_ context.Context, body []byte) mq.Action {
			switch string(body) {
			case "retry":
				return mq.Requeue
			case "drop":
				return mq.Reject
			default:
				return mq.Ack
			}
		})
		done := run(w)

		client.Deliver([]byte("ok"), ack)
		client.Deliver([]byte("retry"), ack)
		client.Deliver([]byte("drop"), ack)

		Eventually(ack.Outcomes).Should(Equal([]mock.Outcome{mock.Acked, mock.Requeued, mock.Rejected}))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("reports every settled delivery to the observer", func() {
		var seen atomic.Int32
		w := mq.NewWorker(client, logger,
			func(context.Context, []byte) mq.Action { return mq.Ack },
			mq.WithObserver(func(action mq.Action, start time.Time) {
				Expect(action).To(Equal(mq.Ack))
				Expect(start).NotTo(BeZero())
				seen.Add(1)
			}),
		)
		run(w)

		client.Deliver([]byte("a"), ack)
		client.Deliver([]byte("b"), ack)

		Eventually(seen.Load).Should(Equal(int32(2)))
	})

	It("keeps retrying while the queue is unavailable", func() {
		client.ConsumeError = errors.New("not connected")
		w := mq.NewWorker(client, logger,
			func(context.Context, []byte) mq.Action { return mq.Ack },
			mq.WithRetryDelay(10*time.Millisecond),
		)
		done := run(w)

		Eventually(client.ConsumeCallCount).Should(BeNumerically(">=", 3))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("names its actions", func() {
		Expect(mq.Ack.String()).To(Equal("ack"))
		Expect(mq.Requeue.String()).To(Equal("requeue"))
		Expect(mq.Reject.String()).To(Equal("reject"))
	})
})
