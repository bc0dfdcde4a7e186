package sqlite

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/fableforge/fableforge/pkg/convo"
)

var _ = Describe("Store", func() {
	var (
		store *Store
		ctx   context.Context
	)

	newTestStore := func(preamble string) *Store {
		logger, _ := zap.NewDevelopment()
		s, err := NewStore(Config{
			DBPath:   ":memory:",
			Preamble: preamble,
		}, logger)
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	BeforeEach(func() {
		store = newTestStore("")
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	Describe("NewStore", func() {
		It("requires a database path", func() {
			logger, _ := zap.NewDevelopment()
			_, err := NewStore(Config{}, logger)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Create", func() {
		It("round-trips campaign and player ids", func() {
			id, err := store.Create(ctx, "campaign-1", "player-1")
			Expect(err).NotTo(HaveOccurred())

			c, err := store.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.ID).To(Equal(id))
			Expect(c.CampaignID).To(Equal("campaign-1"))
			Expect(c.PlayerID).To(Equal("player-1"))
		})

		Context("with a preamble", func() {
			BeforeEach(func() {
				store.Close()
				store = newTestStore("You are the Game Master.")
			})

			It("records the preamble as the first system turn", func() {
				id, err := store.Create(ctx, "campaign-1", "")
				Expect(err).NotTo(HaveOccurred())

				turns, err := store.Turns(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(HaveLen(1))
				Expect(turns[0].Role).To(Equal(convo.RoleSystem))
				Expect(turns[0].Content).To(Equal("You are the Game Master."))
			})
		})
	})

	Describe("Append and Turns", func() {
		It("returns turns in append order", func() {
			id, err := store.Create(ctx, "campaign-1", "")
			Expect(err).NotTo(HaveOccurred())

			for i := range 5 {
				role := convo.RoleUser
				if i%2 == 1 {
					role = convo.RoleAssistant
				}
				Expect(store.Append(ctx, id, role, fmt.Sprintf("turn-%d", i))).To(Succeed())
			}

			turns, err := store.Turns(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(5))
			for i, turn := range turns {
				Expect(turn.Content).To(Equal(fmt.Sprintf("turn-%d", i)))
			}
		})

		It("keeps per-conversation order under interleaved appends", func() {
			a, err := store.Create(ctx, "campaign-1", "")
			Expect(err).NotTo(HaveOccurred())
			b, err := store.Create(ctx, "campaign-1", "")
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Append(ctx, a, convo.RoleUser, "a-1")).To(Succeed())
			Expect(store.Append(ctx, b, convo.RoleUser, "b-1")).To(Succeed())
			Expect(store.Append(ctx, a, convo.RoleAssistant, "a-2")).To(Succeed())
			Expect(store.Append(ctx, b, convo.RoleAssistant, "b-2")).To(Succeed())

			turnsA, err := store.Turns(ctx, a)
			Expect(err).NotTo(HaveOccurred())
			Expect(turnsA[0].Content).To(Equal("a-1"))
			Expect(turnsA[1].Content).To(Equal("a-2"))

			turnsB, err := store.Turns(ctx, b)
			Expect(err).NotTo(HaveOccurred())
			Expect(turnsB[0].Content).To(Equal("b-1"))
			Expect(turnsB[1].Content).To(Equal("b-2"))
		})

		It("returns a typed not-found error for unknown conversations", func() {
			err := store.Append(ctx, "missing", convo.RoleUser, "hello")
			Expect(err).To(MatchError(convo.NotFoundError{ID: "missing"}))

			_, err = store.Get(ctx, "missing")
			Expect(err).To(MatchError(convo.NotFoundError{ID: "missing"}))
		})
	})
})
