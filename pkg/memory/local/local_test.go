package local

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fableforge/fableforge/pkg/memory"
	testutils "github.com/fableforge/fableforge/pkg/utils/test"
)

var _ = Describe("Index", func() {
	var (
		index    *Index
		embedder *testutils.MockEmbedder
		ctx      context.Context
	)

	BeforeEach(func() {
		embedder = testutils.NewMockEmbedder()
		index = NewIndex(embedder)
		ctx = context.Background()
	})

	Describe("QueryRelevant", func() {
		It("returns an empty result for a campaign with no entries", func() {
			results, err := index.QueryRelevant(ctx, "empty-campaign", "anything", memory.KindScene, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("ranks entries by cosine similarity, most relevant first", func() {
			embedder.Embeddings["the dragon awakens"] = []float32{1, 0, 0}
			embedder.Embeddings["a quiet market day"] = []float32{0, 1, 0}
			embedder.Embeddings["dragon"] = []float32{0.9, 0.1, 0}

			Expect(index.RecordScene(ctx, "c1", "the dragon awakens")).To(Succeed())
			Expect(index.RecordScene(ctx, "c1", "a quiet market day")).To(Succeed())

			results, err := index.QueryRelevant(ctx, "c1", "dragon", memory.KindScene, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0]).To(Equal("the dragon awakens"))
			Expect(results[1]).To(Equal("a quiet market day"))
		})

		It("caps results at the requested limit", func() {
			for _, s := range []string{"one", "two", "three"} {
				Expect(index.RecordScene(ctx, "c1", s)).To(Succeed())
			}

			results, err := index.QueryRelevant(ctx, "c1", "query", memory.KindScene, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
		})

		It("falls back to the default limit for non-positive limits", func() {
			for i := 0; i < memory.DefaultLimit+4; i++ {
				Expect(index.RecordFact(ctx, "c1", "fact")).To(Succeed())
			}

			results, err := index.QueryRelevant(ctx, "c1", "query", memory.KindFact, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(memory.DefaultLimit))
		})

		It("keeps scenes and facts separate", func() {
			Expect(index.RecordScene(ctx, "c1", "a scene")).To(Succeed())
			Expect(index.RecordFact(ctx, "c1", "a fact")).To(Succeed())

			scenes, err := index.QueryRelevant(ctx, "c1", "query", memory.KindScene, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(scenes).To(ConsistOf("a scene"))

			facts, err := index.QueryRelevant(ctx, "c1", "query", memory.KindFact, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(ConsistOf("a fact"))
		})

		It("keeps campaigns isolated", func() {
			Expect(index.RecordScene(ctx, "c1", "campaign one scene")).To(Succeed())

			results, err := index.QueryRelevant(ctx, "c2", "query", memory.KindScene, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("rejects unknown kinds", func() {
			Expect(index.RecordScene(ctx, "c1", "a scene")).To(Succeed())

			_, err := index.QueryRelevant(ctx, "c1", "query", memory.Kind("bogus"), 5)
			Expect(err).To(MatchError(memory.ErrUnknownKind))
		})

		It("propagates embedding failures", func() {
			Expect(index.RecordScene(ctx, "c1", "a scene")).To(Succeed())
			embedder.FailOn = "bad query"

			_, err := index.QueryRelevant(ctx, "c1", "bad query", memory.KindScene, 5)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("RecordScene", func() {
		It("propagates embedding failures", func() {
			embedder.FailOn = "unembeddable"
			Expect(index.RecordScene(ctx, "c1", "unembeddable")).NotTo(Succeed())
		})
	})

	Describe("Canon", func() {
		It("returns an empty canon for an unknown campaign", func() {
			canon, err := index.Canon(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(canon).To(BeEmpty())
		})

		It("replaces canon wholesale", func() {
			Expect(index.SetCanon(ctx, "c1", memory.Canon{"location": "tavern", "gold": 10})).To(Succeed())
			Expect(index.SetCanon(ctx, "c1", memory.Canon{"location": "forest"})).To(Succeed())

			canon, err := index.Canon(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(canon).To(HaveLen(1))
			Expect(canon["location"]).To(Equal("forest"))
		})

		It("returns a copy that does not alias internal state", func() {
			Expect(index.SetCanon(ctx, "c1", memory.Canon{"location": "tavern"})).To(Succeed())

			canon, err := index.Canon(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			canon["location"] = "mutated"

			fresh, err := index.Canon(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(fresh["location"]).To(Equal("tavern"))
		})

		It("keeps canon per campaign", func() {
			Expect(index.SetCanon(ctx, "c1", memory.Canon{"location": "tavern"})).To(Succeed())
			Expect(index.SetCanon(ctx, "c2", memory.Canon{"location": "keep"})).To(Succeed())

			canon, err := index.Canon(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(canon["location"]).To(Equal("tavern"))
		})
	})
})
