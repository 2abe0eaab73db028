package store_test

import (
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/SimonCaignart/plant-e/internal/store"
)

var _ = Describe("Database", func() {
	var (
		logger *slog.Logger
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	})

	Describe("NewDB", func() {
		Context("with invalid configuration", func() {
			It("should return error when config is nil", func() {
				db, err := store.NewDB(nil)
				Expect(err).To(MatchError(ContainSubstring("config cannot be nil")))
				Expect(db).To(BeNil())
			})

			It("should return error when logger is nil", func() {
				db, err := store.NewDB(&store.DBConfig{Host: "localhost", Port: 5432})
				Expect(err).To(MatchError(ContainSubstring("logger")))
				Expect(db).To(BeNil())
			})

			It("should return error when host is empty", func() {
				db, err := store.NewDB(&store.DBConfig{Logger: logger, Port: 5432})
				Expect(err).To(MatchError(ContainSubstring("host")))
				Expect(db).To(BeNil())
			})
		})

		Context("connection validation", func() {
			It("should fail with an unreachable host", func() {
				db, err := store.NewDB(&store.DBConfig{
					Logger:   logger,
					Host:     "invalid-host-that-does-not-exist",
					Port:     5432,
					User:     "plant",
					Password: "password",
					DBName:   "plante",
					SSLMode:  "disable",
				})
				Expect(err).To(HaveOccurred())
				Expect(db).To(BeNil())
			})
		})
	})

	Describe("DSN", func() {
		It("should render every connection parameter", func() {
			cfg := &store.DBConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "plants", SSLMode: "disable"}
			Expect(cfg.DSN()).To(Equal("host=db port=5433 user=u password=p dbname=plants sslmode=disable TimeZone=UTC"))
		})
	})

	Describe("CloseDB", func() {
		It("should accept a nil database", func() {
			Expect(store.CloseDB(nil, logger)).To(Succeed())
		})
	})

	Describe("NewPostgres", func() {
		It("should require a database", func() {
			_, err := store.NewPostgres(nil, logger, nil)
			Expect(err).To(MatchError(ContainSubstring("database cannot be nil")))
		})
	})
})
