package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/SimonCaignart/plant-e/pkg/logger"
)

var _ = Describe("Logger", func() {
	var buf *bytes.Buffer

	BeforeEach(func() {
		buf = &bytes.Buffer{}
	})

	decode := func() map[string]any {
		var entry map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &entry)).To(Succeed())
		return entry
	}

	Describe("New", func() {
		It("should create a logger with defaults from a nil config", func() {
			Expect(logger.New(nil)).NotTo(BeNil())
			Expect(logger.NewDefault()).NotTo(BeNil())
		})

		It("should write JSON records with the standard keys", func() {
			log := logger.New(&logger.Config{Level: slog.LevelInfo, Output: buf})
			log.Info("plant watered", "plant_id", "basil", "quantity_ml", 200)

			entry := decode()
			Expect(entry).To(HaveKey("time"))
			Expect(entry).To(HaveKeyWithValue("level", "INFO"))
			Expect(entry).To(HaveKeyWithValue("msg", "plant watered"))
			Expect(entry).To(HaveKeyWithValue("plant_id", "basil"))
			Expect(entry).To(HaveKeyWithValue("quantity_ml", float64(200)))
		})

		It("should write text records when asked", func() {
			log := logger.New(&logger.Config{Output: buf, Format: logger.FormatText})
			log.Info("scheduler started")

			Expect(buf.String()).To(ContainSubstring(`msg="scheduler started"`))
			Expect(json.Valid(buf.Bytes())).To(BeFalse())
		})

		It("should tag records with the service name", func() {
			log := logger.New(&logger.Config{Output: buf, Service: "backend"})
			log.Info("started")

			Expect(decode()).To(HaveKeyWithValue("service", "backend"))
		})

		It("should include the source position when enabled", func() {
			log := logger.New(&logger.Config{Output: buf, AddSource: true})
			log.Info("with source")

			Expect(decode()).To(HaveKey("source"))
		})
	})

	Describe("Levels", func() {
		DescribeTable("should respect log level filtering",
			func(level slog.Level, logFunc func(*slog.Logger), shouldAppear bool) {
				log := logger.New(&logger.Config{Level: level, Output: buf})
				logFunc(log)
				Expect(len(strings.TrimSpace(buf.String())) > 0).To(Equal(shouldAppear))
			},
			Entry("debug logged when level is debug", slog.LevelDebug, func(l *slog.Logger) { l.Debug("m") }, true),
			Entry("debug not logged when level is info", slog.LevelInfo, func(l *slog.Logger) { l.Debug("m") }, false),
			Entry("warn logged when level is info", slog.LevelInfo, func(l *slog.Logger) { l.Warn("m") }, true),
			Entry("info not logged when level is error", slog.LevelError, func(l *slog.Logger) { l.Info("m") }, false),
		)

		It("should build a logger at a fixed level", func() {
			Expect(logger.NewWithLevel(slog.LevelWarn).Enabled(context.Background(), slog.LevelInfo)).To(BeFalse())
		})
	})

	Describe("ParseLevel", func() {
		DescribeTable("should parse level strings",
			func(input string, expected slog.Level) {
				Expect(logger.ParseLevel(input)).To(Equal(expected))
			},
			Entry("debug", "debug", slog.LevelDebug),
			Entry("upper case", "DEBUG", slog.LevelDebug),
			Entry("info", "info", slog.LevelInfo),
			Entry("warn", "warn", slog.LevelWarn),
			Entry("warning", " warning ", slog.LevelWarn),
			Entry("error", "error", slog.LevelError),
			Entry("invalid defaults to info", "verbose", slog.LevelInfo),
			Entry("empty defaults to info", "", slog.LevelInfo),
		)
	})

	Describe("ParseFormat", func() {
		It("should recognize text and default to json", func() {
			Expect(logger.ParseFormat("TEXT")).To(Equal(logger.FormatText))
			Expect(logger.ParseFormat("json")).To(Equal(logger.FormatJSON))
			Expect(logger.ParseFormat("logfmt")).To(Equal(logger.FormatJSON))
		})
	})

	Describe("WithContext and WithPlant", func() {
		It("should add fields to every record", func() {
			base := logger.New(&logger.Config{Output: buf})
			log := logger.WithPlant(logger.WithContext(base, slog.String("component", "scheduler")), "fern")
			log.Info("evaluated")

			entry := decode()
			Expect(entry).To(HaveKeyWithValue("component", "scheduler"))
			Expect(entry).To(HaveKeyWithValue("plant_id", "fern"))
		})
	})

	Describe("DefaultConfig", func() {
		It("should default to info level JSON without source", func() {
			cfg := logger.DefaultConfig()
			Expect(cfg.Level).To(Equal(slog.LevelInfo))
			Expect(cfg.Format).To(Equal(logger.FormatJSON))
			Expect(cfg.AddSource).To(BeFalse())
		})
	})
})
