package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cspr/pkg/checkpoint"
	"github.com/papercomputeco/cspr/pkg/checkpoint/inmemory"
	"github.com/papercomputeco/cspr/pkg/events"
	"github.com/papercomputeco/cspr/pkg/logger"
	"github.com/papercomputeco/cspr/pkg/recorder"
)

const testNode = "127.0.0.1:18101"

type staticStats recorder.Stats

func (s staticStats) Stats() recorder.Stats { return recorder.Stats(s) }

// get issues a request against the fiber app and decodes the JSON body into out.
func get(s *Server, path string, out any) int {
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	if out != nil {
		Expect(json.Unmarshal(body, out)).To(Succeed())
	}
	return resp.StatusCode
}

var _ = Describe("Server", func() {
	var (
		store  *inmemory.Store
		server *Server
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		store = inmemory.NewStore()
		stats := staticStats{Processed: 4, Dropped: 1, LastEventID: map[string]uint64{"BlockAdded": 12}}
		server, err = NewServer(Config{ListenAddr: ":0", Node: testNode}, store, stats, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a checkpoint store", func() {
		_, err := NewServer(Config{}, nil, nil, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("answers ping", func() {
		var body string
		Expect(get(server, "/ping", &body)).To(Equal(http.StatusOK))
		Expect(body).To(Equal("pong"))
	})

	Describe("checkpoints", func() {
		BeforeEach(func() {
			Expect(store.Save(ctx, checkpoint.Key(testNode, events.Main), 41)).To(Succeed())
			Expect(store.Save(ctx, checkpoint.Key(testNode, events.Sigs), 9)).To(Succeed())
		})

		It("lists every checkpoint", func() {
			var body []CheckpointResponse
			Expect(get(server, "/checkpoints", &body)).To(Equal(http.StatusOK))
			Expect(body).To(HaveLen(2))
			Expect(body[0].Key).To(Equal(testNode + "/main"))
			Expect(body[0].EventID).To(Equal(uint64(41)))
		})

		It("returns one channel's checkpoint", func() {
			var body CheckpointResponse
			Expect(get(server, "/checkpoints/sigs", &body)).To(Equal(http.StatusOK))
			Expect(body.EventID).To(Equal(uint64(9)))
		})

		It("returns 404 for a channel without a checkpoint", func() {
			var body ErrorResponse
			Expect(get(server, "/checkpoints/deploys", &body)).To(Equal(http.StatusNotFound))
			Expect(body.Error).To(Equal("checkpoint not found"))
		})

		It("returns 400 for an unknown channel", func() {
			Expect(get(server, "/checkpoints/blocks", nil)).To(Equal(http.StatusBadRequest))
		})
	})

	It("returns recorder stats", func() {
		var body recorder.Stats
		Expect(get(server, "/stats", &body)).To(Equal(http.StatusOK))
		Expect(body.Processed).To(Equal(uint64(4)))
		Expect(body.LastEventID).To(HaveKeyWithValue("BlockAdded", uint64(12)))
	})

	It("returns 503 for stats without a recorder", func() {
		s, err := NewServer(Config{Node: testNode}, store, nil, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(get(s, "/stats", nil)).To(Equal(http.StatusServiceUnavailable))
	})

	It("serves expvar diagnostics", func() {
		var body map[string]json.RawMessage
		Expect(get(server, "/debug/vars", &body)).To(Equal(http.StatusOK))
		Expect(body).To(HaveKey("recorder"))
		Expect(body).To(HaveKey("memstats"))
	})
})
