package inmemory

import (
	"context"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fableforge/fableforge/pkg/convo"
)

var _ = Describe("Store", func() {
	var (
		store *Store
		ctx   context.Context
	)

	BeforeEach(func() {
		store = NewStore()
		ctx = context.Background()
	})

	Describe("Create", func() {
		It("allocates a conversation with a unique id", func() {
			a, err := store.Create(ctx, "campaign-1", "player-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(a).NotTo(BeEmpty())

			b, err := store.Create(ctx, "campaign-1", "player-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(b).NotTo(Equal(a))
		})

		It("records campaign and player ids", func() {
			id, err := store.Create(ctx, "campaign-1", "player-1")
			Expect(err).NotTo(HaveOccurred())

			c, err := store.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.CampaignID).To(Equal("campaign-1"))
			Expect(c.PlayerID).To(Equal("player-1"))
		})

		It("starts with an empty turn log by default", func() {
			id, err := store.Create(ctx, "campaign-1", "")
			Expect(err).NotTo(HaveOccurred())

			turns, err := store.Turns(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(BeEmpty())
		})

		Context("with a preamble", func() {
			BeforeEach(func() {
				store = NewStore(WithPreamble("You are the Game Master."))
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

	Describe("Append", func() {
		var id string

		BeforeEach(func() {
			var err error
			id, err = store.Create(ctx, "campaign-1", "")
			Expect(err).NotTo(HaveOccurred())
		})

		It("preserves append order", func() {
			Expect(store.Append(ctx, id, convo.RoleUser, "first")).To(Succeed())
			Expect(store.Append(ctx, id, convo.RoleAssistant, "second")).To(Succeed())
			Expect(store.Append(ctx, id, convo.RoleUser, "third")).To(Succeed())

			turns, err := store.Turns(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(3))
			Expect(turns[0].Content).To(Equal("first"))
			Expect(turns[1].Content).To(Equal("second"))
			Expect(turns[2].Content).To(Equal("third"))
		})

		It("returns a typed not-found error for unknown conversations", func() {
			err := store.Append(ctx, "missing", convo.RoleUser, "hello")
			Expect(err).To(MatchError(convo.NotFoundError{ID: "missing"}))
		})

		It("keeps order under concurrent appends to separate conversations", func() {
			other, err := store.Create(ctx, "campaign-2", "")
			Expect(err).NotTo(HaveOccurred())

			var wg sync.WaitGroup
			for i := range 20 {
				wg.Add(2)
				go func(n int) {
					defer wg.Done()
					_ = store.Append(ctx, id, convo.RoleUser, fmt.Sprintf("a-%d", n))
				}(i)
				go func(n int) {
					defer wg.Done()
					_ = store.Append(ctx, other, convo.RoleUser, fmt.Sprintf("b-%d", n))
				}(i)
			}
			wg.Wait()

			turns, err := store.Turns(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(20))

			turns, err = store.Turns(ctx, other)
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(20))
		})
	})

	Describe("Turns", func() {
		It("returns a copy that does not alias internal state", func() {
			id, err := store.Create(ctx, "campaign-1", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Append(ctx, id, convo.RoleUser, "original")).To(Succeed())

			turns, err := store.Turns(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			turns[0].Content = "mutated"

			fresh, err := store.Turns(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(fresh[0].Content).To(Equal("original"))
		})

		It("returns a typed not-found error for unknown conversations", func() {
			_, err := store.Turns(ctx, "missing")
			var notFound convo.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(notFound))
		})
	})

	Describe("Get", func() {
		It("returns the full record with copied turns", func() {
			id, err := store.Create(ctx, "campaign-1", "player-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Append(ctx, id, convo.RoleUser, "hello")).To(Succeed())

			c, err := store.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.ID).To(Equal(id))
			Expect(c.Turns).To(HaveLen(1))

			c.Turns[0].Content = "mutated"
			fresh, err := store.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(fresh.Turns[0].Content).To(Equal("hello"))
		})
	})

	Describe("LastTurn", func() {
		It("returns nil for an empty conversation", func() {
			id, err := store.Create(ctx, "campaign-1", "")
			Expect(err).NotTo(HaveOccurred())

			c, err := store.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.LastTurn()).To(BeNil())
		})

		It("returns the most recent turn", func() {
			id, err := store.Create(ctx, "campaign-1", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Append(ctx, id, convo.RoleUser, "first")).To(Succeed())
			Expect(store.Append(ctx, id, convo.RoleAssistant, "second")).To(Succeed())

			c, err := store.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			last := c.LastTurn()
			Expect(last).NotTo(BeNil())
			Expect(last.Role).To(Equal(convo.RoleAssistant))
			Expect(last.Content).To(Equal("second"))
		})
	})
})
