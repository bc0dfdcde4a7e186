package profile

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RegexExtractor", func() {
	var extractor *RegexExtractor

	BeforeEach(func() {
		extractor = NewRegexExtractor()
	})

	It("extracts a name from 'my name is'", func() {
		p := extractor.Extract("Hello, my name is Thorin and I seek adventure")
		Expect(p.Name).To(Equal("Thorin"))
	})

	It("extracts a name from 'call me'", func() {
		p := extractor.Extract("You can call me Elara")
		Expect(p.Name).To(Equal("Elara"))
	})

	It("prefers 'my name is' over 'call me'", func() {
		p := extractor.Extract("my name is Thorin but call me Oakenshield")
		Expect(p.Name).To(Equal("Thorin"))
	})

	It("extracts a known class", func() {
		p := extractor.Extract("I am a wizard of the grey order")
		Expect(p.Class).To(Equal("wizard"))
	})

	It("extracts a class from the contracted form", func() {
		p := extractor.Extract("I'm a rogue, quiet as a shadow")
		Expect(p.Class).To(Equal("rogue"))
	})

	It("only considers the first class declaration", func() {
		p := extractor.Extract("I am an elf, though I trained as a ranger")
		Expect(p.Class).To(BeEmpty())
	})

	It("ignores unknown classes", func() {
		p := extractor.Extract("I am a blacksmith by trade")
		Expect(p.Class).To(BeEmpty())
	})

	It("matches case-insensitively and normalizes class to lowercase", func() {
		p := extractor.Extract("MY NAME IS Brienne and I AM A PALADIN")
		Expect(p.Name).To(Equal("Brienne"))
		Expect(p.Class).To(Equal("paladin"))
	})

	It("accepts apostrophes and hyphens in names", func() {
		p := extractor.Extract("call me D'Artagnan-Rex")
		Expect(p.Name).To(Equal("D'Artagnan-Rex"))
	})

	It("returns an empty profile for plain narration", func() {
		p := extractor.Extract("I open the door and step inside")
		Expect(p.Empty()).To(BeTrue())
	})
})

var _ = Describe("Profile", func() {
	Describe("Merge", func() {
		It("overwrites with non-empty values", func() {
			p := Profile{Name: "Thorin", Class: "warrior"}
			p.Merge(Profile{Name: "Elara"})
			Expect(p.Name).To(Equal("Elara"))
			Expect(p.Class).To(Equal("warrior"))
		})

		It("never erases with empty values", func() {
			p := Profile{Name: "Thorin", Class: "warrior"}
			p.Merge(Profile{})
			Expect(p.Name).To(Equal("Thorin"))
			Expect(p.Class).To(Equal("warrior"))
		})
	})

	Describe("Empty", func() {
		It("reports true only when nothing is inferred", func() {
			Expect((&Profile{}).Empty()).To(BeTrue())
			Expect((&Profile{Name: "Thorin"}).Empty()).To(BeFalse())
			Expect((&Profile{Class: "rogue"}).Empty()).To(BeFalse())
		})
	})
})

var _ = Describe("NopExtractor", func() {
	It("always returns an empty profile", func() {
		p := NopExtractor{}.Extract("my name is Thorin and I am a wizard")
		Expect(p.Empty()).To(BeTrue())
	})
})
