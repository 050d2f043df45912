package events_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cspr/pkg/events"
	"github.com/papercomputeco/cspr/pkg/sse"
)

var _ = Describe("Decode", func() {
	It("types the event by its single top-level key", func() {
		raw, err := events.Decode(events.Main, &sse.Event{
			ID:    "42",
			HasID: true,
			Data:  `{"BlockAdded":{"block_hash":"abc"}}`,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(raw.Type).To(Equal(events.BlockAdded))
		Expect(raw.Name).To(Equal("BlockAdded"))
		Expect(raw.ID).To(Equal(uint64(42)))
		Expect(raw.HasID).To(BeTrue())
		Expect(raw.Channel).To(Equal(events.Main))
		Expect(string(raw.Payload)).To(MatchJSON(`{"block_hash":"abc"}`))
	})

	It("recognises the handshake without an id", func() {
		raw, err := events.Decode(events.Main, &sse.Event{Data: `{"ApiVersion":"1.5.6"}`})
		Expect(err).NotTo(HaveOccurred())
		Expect(raw.Type).To(Equal(events.APIVersion))
		Expect(raw.HasID).To(BeFalse())
	})

	It("maps unknown keys to Unknown", func() {
		raw, err := events.Decode(events.Main, &sse.Event{ID: "7", HasID: true, Data: `{"TransactionAccepted":{}}`})
		Expect(err).NotTo(HaveOccurred())
		Expect(raw.Type).To(Equal(events.Unknown))
		Expect(raw.Name).To(Equal("TransactionAccepted"))
	})

	DescribeTable("rejects malformed records",
		func(ev *sse.Event) {
			_, err := events.Decode(events.Main, ev)
			Expect(err).To(MatchError(events.ErrMalformedEvent))

			var malformed *events.MalformedEventError
			Expect(errors.As(err, &malformed)).To(BeTrue())
		},
		Entry("non-JSON data", &sse.Event{Data: "not json"}),
		Entry("JSON array", &sse.Event{Data: `[1,2]`}),
		Entry("no keys", &sse.Event{Data: `{}`}),
		Entry("two keys", &sse.Event{Data: `{"BlockAdded":{},"Step":{}}`}),
		Entry("empty data", &sse.Event{ID: "1", HasID: true}),
		Entry("non-numeric id", &sse.Event{ID: "abc", HasID: true, Data: `{"Step":{}}`}),
	)
})

var _ = Describe("Type and Channel", func() {
	It("parses channel names", func() {
		c, err := events.ParseChannel("SIGS")
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(Equal(events.Sigs))
		Expect(c.Path()).To(Equal("sigs"))

		_, err = events.ParseChannel("blocks")
		Expect(err).To(MatchError(events.ErrPrecondition))
	})

	It("parses type names", func() {
		t, err := events.ParseType("blockadded")
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(Equal(events.BlockAdded))

		t, err = events.ParseType("all")
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(Equal(events.All))

		_, err = events.ParseType("Unknown")
		Expect(err).To(MatchError(events.ErrPrecondition))
	})

	It("knows which channel carries which type", func() {
		Expect(events.Main.Carries(events.Step)).To(BeTrue())
		Expect(events.Main.Carries(events.FinalitySignature)).To(BeFalse())
		Expect(events.Deploys.Carries(events.DeployAccepted)).To(BeTrue())
		Expect(events.Sigs.Carries(events.All)).To(BeTrue())
	})

	It("rejects unknown channels and unfilterable types", func() {
		Expect(events.Query{Channel: events.Main, Type: events.BlockAdded}.Validate()).To(Succeed())
		Expect(events.Query{Channel: events.Sigs, Type: events.BlockAdded}.Validate()).To(Succeed())
		Expect(events.Query{Channel: events.Main, Type: events.Unknown}.Validate()).To(MatchError(events.ErrPrecondition))
		Expect(events.Query{Channel: events.Main, Type: events.APIVersion}.Validate()).To(MatchError(events.ErrPrecondition))
		Expect(events.Query{Channel: events.Channel(9)}.Validate()).To(MatchError(events.ErrPrecondition))
	})
})
