package recorder

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cspr/pkg/checkpoint"
	"github.com/papercomputeco/cspr/pkg/checkpoint/inmemory"
	"github.com/papercomputeco/cspr/pkg/events"
	"github.com/papercomputeco/cspr/pkg/eventstream"
	"github.com/papercomputeco/cspr/pkg/eventstream/nop"
)

const testNode = "10.0.0.1:18101"

// recordingPublisher keeps every published event, failing for ids in fail.
type recordingPublisher struct {
	mu        sync.Mutex
	published []*eventstream.NodeEventPublished
	fail      map[uint64]bool
	block     chan struct{}
}

func (p *recordingPublisher) Publish(_ context.Context, ev *eventstream.NodeEventPublished) error {
	if p.block != nil {
		<-p.block
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[ev.Record.ID] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ids() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]uint64, 0, len(p.published))
	for _, ev := range p.published {
		ids = append(ids, ev.Record.ID)
	}
	return ids
}

func job(channel events.Channel, t events.Type, id uint64) Job {
	return Job{Record: events.Record{
		ID:      id,
		Channel: channel,
		Type:    t,
		Name:    t.String(),
		Payload: []byte(`{}`),
	}}
}

var _ = Describe("Worker Pool", func() {
	var (
		ctx   context.Context
		store *inmemory.Store
		pub   *recordingPublisher
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewStore()
		pub = &recordingPublisher{fail: map[uint64]bool{}}
	})

	newPool := func(c *Config) *Pool {
		wp, err := NewPool(c)
		Expect(err).NotTo(HaveOccurred())
		return wp
	}

	It("requires a publisher", func() {
		_, err := NewPool(&Config{})
		Expect(err).To(HaveOccurred())
	})

	It("applies default sizes", func() {
		c := &Config{Publisher: nop.NewPublisher()}
		wp := newPool(c)
		defer wp.Close()

		Expect(c.NumWorkers).To(Equal(defaultNumWorkers))
		Expect(c.QueueSize).To(Equal(defaultJobQueueSize))
	})

	It("publishes records and advances the channel checkpoint", func() {
		wp := newPool(&Config{Publisher: pub, Checkpoints: store, Node: testNode})

		Expect(wp.Enqueue(job(events.Main, events.BlockAdded, 10))).To(BeTrue())
		Expect(wp.Enqueue(job(events.Main, events.Step, 11))).To(BeTrue())
		Expect(wp.Enqueue(job(events.Main, events.BlockAdded, 12))).To(BeTrue())
		wp.Close()

		Expect(pub.ids()).To(Equal([]uint64{10, 11, 12}))

		id, err := store.Load(ctx, checkpoint.Key(testNode, events.Main))
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(uint64(12)))

		stats := wp.Stats()
		Expect(stats.Processed).To(Equal(uint64(3)))
		Expect(stats.Failed).To(BeZero())
		Expect(stats.LastEventID).To(HaveKeyWithValue("BlockAdded", uint64(12)))
		Expect(stats.LastEventID).To(HaveKeyWithValue("Step", uint64(11)))
	})

	It("stamps the node and channel on published envelopes", func() {
		wp := newPool(&Config{Publisher: pub, Node: testNode})
		wp.Enqueue(job(events.Sigs, events.FinalitySignature, 3))
		wp.Close()

		Expect(pub.published).To(HaveLen(1))
		Expect(pub.published[0].Source.Node).To(Equal(testNode))
		Expect(pub.published[0].Source.Channel).To(Equal("sigs"))
	})

	It("keeps checkpoints per channel", func() {
		wp := newPool(&Config{Publisher: pub, Checkpoints: store, Node: testNode, NumWorkers: 2})
		wp.Enqueue(job(events.Main, events.BlockAdded, 40))
		wp.Enqueue(job(events.Deploys, events.DeployAccepted, 7))
		wp.Close()

		list, err := store.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(2))
	})

	It("does not advance the checkpoint when publishing fails", func() {
		pub.fail[5] = true
		wp := newPool(&Config{Publisher: pub, Checkpoints: store, Node: testNode})
		wp.Enqueue(job(events.Main, events.BlockAdded, 5))
		wp.Close()

		_, err := store.Load(ctx, checkpoint.Key(testNode, events.Main))
		Expect(checkpoint.IsNotFound(err)).To(BeTrue())
		Expect(wp.Stats().Failed).To(Equal(uint64(1)))
		Expect(wp.Stats().Processed).To(BeZero())
	})

	It("holds the checkpoint below an event that failed to publish", func() {
		pub.fail[2] = true
		wp := newPool(&Config{Publisher: pub, Checkpoints: store, Node: testNode, NumWorkers: 1})
		defer wp.Close()
		key := checkpoint.Key(testNode, events.Main)

		for id := uint64(1); id <= 3; id++ {
			Expect(wp.Enqueue(job(events.Main, events.BlockAdded, id))).To(BeTrue())
		}
		wp.pending[0].Wait()

		Expect(pub.ids()).To(Equal([]uint64{1}))
		start, err := checkpoint.ResumeFrom(ctx, store, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(start).To(Equal(uint64(2)))

		h := wp.Handler()
		err = h(job(events.Main, events.BlockAdded, 4).Record)
		Expect(err).To(MatchError(ErrGap))
		var gap *GapError
		Expect(errors.As(err, &gap)).To(BeTrue())
		Expect(gap.ID).To(Equal(uint64(2)))
		Expect(gap.Channel).To(Equal(events.Main))

		// Other channels keep recording.
		Expect(h(job(events.Sigs, events.FinalitySignature, 9).Record)).To(Succeed())

		delete(pub.fail, 2)
		wp.Recover(events.Main)
		for id := start; id <= 4; id++ {
			Expect(h(job(events.Main, events.BlockAdded, id).Record)).To(Succeed())
		}
		wp.pending[0].Wait()

		Expect(pub.ids()).To(Equal([]uint64{1, 9, 2, 3, 4}))
		id, err := store.Load(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(uint64(4)))
	})

	It("fails the handler when a job is dropped", func() {
		pub.block = make(chan struct{})
		wp := newPool(&Config{Publisher: pub, Checkpoints: store, Node: testNode, NumWorkers: 1, QueueSize: 1})
		h := wp.Handler()

		Expect(h(job(events.Main, events.BlockAdded, 1).Record)).To(Succeed())
		Eventually(func() int { return len(wp.queues[0]) }).Should(BeZero())
		Expect(h(job(events.Main, events.BlockAdded, 2).Record)).To(Succeed())
		Expect(h(job(events.Main, events.BlockAdded, 3).Record)).To(MatchError(ErrGap))
		Expect(h(job(events.Main, events.BlockAdded, 4).Record)).To(MatchError(ErrGap))

		close(pub.block)
		wp.Close()

		id, err := store.Load(ctx, checkpoint.Key(testNode, events.Main))
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(uint64(2)))
	})

	It("drops jobs when the queue is full", func() {
		pub.block = make(chan struct{})
		wp := newPool(&Config{Publisher: pub, NumWorkers: 1, QueueSize: 1})

		// The worker takes the first job and blocks in Publish; the second
		// fills the queue.
		Expect(wp.Enqueue(job(events.Main, events.BlockAdded, 1))).To(BeTrue())
		Eventually(func() int { return len(wp.queues[0]) }).Should(BeZero())
		Expect(wp.Enqueue(job(events.Main, events.BlockAdded, 2))).To(BeTrue())
		Expect(wp.Enqueue(job(events.Main, events.BlockAdded, 3))).To(BeFalse())

		close(pub.block)
		wp.Close()

		Expect(pub.ids()).To(Equal([]uint64{1, 2}))
		Expect(wp.Stats().Dropped).To(Equal(uint64(1)))
	})

	It("rejects jobs after Close and tolerates repeated Close", func() {
		wp := newPool(&Config{Publisher: pub})
		wp.Close()
		wp.Close()

		Expect(wp.Enqueue(job(events.Main, events.BlockAdded, 1))).To(BeFalse())
		Expect(wp.Stats().Dropped).To(Equal(uint64(1)))
	})

	It("adapts to a Consume handler", func() {
		wp := newPool(&Config{Publisher: pub})
		h := wp.Handler()
		Expect(h(job(events.Main, events.Step, 9).Record)).To(Succeed())
		wp.Close()

		Expect(pub.ids()).To(Equal([]uint64{9}))
	})
})
