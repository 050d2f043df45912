package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cspr/pkg/logger"
)

var _ = Describe("New", func() {
	It("writes slog text by default", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf))
		l.Info("subscribed", "channel", "main")

		Expect(buf.String()).To(ContainSubstring("msg=subscribed"))
		Expect(buf.String()).To(ContainSubstring("channel=main"))
	})

	It("filters debug unless enabled", func() {
		var quiet, loud bytes.Buffer
		logger.New(logger.WithWriter(&quiet)).Debug("skipping malformed event")
		logger.New(logger.WithWriter(&loud), logger.WithDebug(true)).Debug("skipping malformed event")

		Expect(quiet.String()).To(BeEmpty())
		Expect(loud.String()).To(ContainSubstring("skipping malformed event"))
	})

	It("writes JSON lines", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
		l.Info("block added", "height", 1204)

		var parsed map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &parsed)).To(Succeed())
		Expect(parsed["msg"]).To(Equal("block added"))
		Expect(parsed["height"]).To(BeNumerically("==", 1204))
	})

	It("includes the source location when asked", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithSource(true))
		l.Info("with source")

		var parsed map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &parsed)).To(Succeed())
		Expect(parsed).To(HaveKey("source"))
	})

	It("writes pretty output through charm log", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true), logger.WithDebug(true))
		l.Debug("era switched", "era", 7)

		Expect(buf.String()).To(ContainSubstring("era switched"))
		Expect(buf.String()).To(ContainSubstring("era"))
	})

	It("writes to every writer", func() {
		var a, b bytes.Buffer
		logger.New(logger.WithWriters(&a, &b)).Info("fan out")

		Expect(a.String()).To(ContainSubstring("fan out"))
		Expect(b.String()).To(ContainSubstring("fan out"))
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		l := logger.Nop()
		for _, lvl := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelError} {
			Expect(l.Handler().Enabled(context.Background(), lvl)).To(BeFalse())
		}
		Expect(func() {
			l.With("k", "v").WithGroup("g").Error("dropped")
		}).NotTo(Panic())
	})
})

var _ = Describe("Multi", func() {
	It("dispatches to every logger", func() {
		var text, js bytes.Buffer
		multi := logger.Multi(
			logger.New(logger.WithWriter(&text)),
			logger.New(logger.WithWriter(&js), logger.WithJSON(true)),
		)
		multi.Info("recorded", "id", 3)

		Expect(text.String()).To(ContainSubstring("recorded"))
		Expect(js.String()).To(ContainSubstring(`"msg":"recorded"`))
	})

	It("only forwards to enabled handlers", func() {
		var info, debug bytes.Buffer
		multi := logger.Multi(
			logger.New(logger.WithWriter(&info)),
			logger.New(logger.WithWriter(&debug), logger.WithDebug(true)),
		)
		multi.Debug("details")

		Expect(info.String()).To(BeEmpty())
		Expect(debug.String()).To(ContainSubstring("details"))
	})

	It("carries attributes and groups", func() {
		var buf bytes.Buffer
		multi := logger.Multi(logger.New(logger.WithWriter(&buf), logger.WithJSON(true)))
		multi.With("component", "recorder").WithGroup("record").Info("published", "type", "Step")

		var parsed map[string]any
		Expect(json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed)).To(Succeed())
		Expect(parsed["component"]).To(Equal("recorder"))
		Expect(parsed["record"]).To(HaveKeyWithValue("type", "Step"))
	})
})
