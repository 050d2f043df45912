package eventstream_test

import (
	"encoding/json"

	"github.com/google/uuid"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cspr/pkg/events"
	"github.com/papercomputeco/cspr/pkg/eventstream"
)

var _ = Describe("NodeEventPublished", func() {
	rec := events.Record{
		Idx:     2,
		ID:      88,
		Channel: events.Sigs,
		Type:    events.FinalitySignature,
		Name:    "FinalitySignature",
		Payload: json.RawMessage(`{"era_id":3}`),
	}

	It("wraps a record in a versioned envelope", func() {
		ev := eventstream.NewNodeEventPublished("10.0.0.1:18101", rec)

		Expect(ev.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(ev.EventType).To(Equal(eventstream.EventTypeNodeEvent))
		Expect(uuid.Validate(ev.EventID)).To(Succeed())
		Expect(ev.Source.Node).To(Equal("10.0.0.1:18101"))
		Expect(ev.Source.Channel).To(Equal("sigs"))
		Expect(ev.Record.Type).To(Equal("FinalitySignature"))
		Expect(ev.EmittedAt).NotTo(BeZero())
	})

	It("assigns a new id to every envelope", func() {
		a := eventstream.NewNodeEventPublished("n", rec)
		b := eventstream.NewNodeEventPublished("n", rec)
		Expect(a.EventID).NotTo(Equal(b.EventID))
	})

	It("marshals with the expected top-level keys", func() {
		payload, err := json.Marshal(eventstream.NewNodeEventPublished("n", rec))
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		Expect(json.Unmarshal(payload, &decoded)).To(Succeed())
		Expect(decoded).To(HaveKey("schema_version"))
		Expect(decoded).To(HaveKey("event_type"))
		Expect(decoded).To(HaveKey("event_id"))
		Expect(decoded).To(HaveKey("emitted_at"))
		Expect(decoded).To(HaveKey("source"))
		Expect(decoded["record"]).To(HaveKeyWithValue("payload", map[string]any{"era_id": float64(3)}))
	})
})
