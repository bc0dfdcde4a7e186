package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fableforge/fableforge/pkg/embeddings"
	"github.com/fableforge/fableforge/pkg/embeddings/openai"
)

var _ = Describe("Embedder", func() {
	It("requires an api key", func() {
		_, err := openai.NewEmbedder(openai.Config{})
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
		Expect(err.Error()).To(ContainSubstring("api key"))
	})

	It("embeds text with bearer auth against /v1/embeddings", func() {
		var gotPath, gotAuth string
		var gotBody map[string]any

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data": [{"embedding": [0.5, 0.6]}]}`))
		}))
		defer server.Close()

		embedder, err := openai.NewEmbedder(openai.Config{
			BaseURL: server.URL,
			APIKey:  "sk-test",
		})
		Expect(err).NotTo(HaveOccurred())
		defer embedder.Close()

		vec, err := embedder.Embed(context.Background(), "a dark cellar")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal([]float32{0.5, 0.6}))

		Expect(gotPath).To(Equal("/v1/embeddings"))
		Expect(gotAuth).To(Equal("Bearer sk-test"))
		Expect(gotBody["model"]).To(Equal(openai.DefaultEmbeddingModel))
		Expect(gotBody["input"]).To(Equal("a dark cellar"))
	})

	It("surfaces API error payloads", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data": [], "error": {"message": "model overloaded"}}`))
		}))
		defer server.Close()

		embedder, err := openai.NewEmbedder(openai.Config{BaseURL: server.URL, APIKey: "sk-test"})
		Expect(err).NotTo(HaveOccurred())

		_, err = embedder.Embed(context.Background(), "text")
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
		Expect(err.Error()).To(ContainSubstring("model overloaded"))
	})

	It("fails on a non-200 response", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}))
		defer server.Close()

		embedder, err := openai.NewEmbedder(openai.Config{BaseURL: server.URL, APIKey: "sk-bad"})
		Expect(err).NotTo(HaveOccurred())

		_, err = embedder.Embed(context.Background(), "text")
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
		Expect(err.Error()).To(ContainSubstring("401"))
	})

	It("fails when the data array is empty", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data": []}`))
		}))
		defer server.Close()

		embedder, err := openai.NewEmbedder(openai.Config{BaseURL: server.URL, APIKey: "sk-test"})
		Expect(err).NotTo(HaveOccurred())

		_, err = embedder.Embed(context.Background(), "text")
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
		Expect(err.Error()).To(ContainSubstring("no embeddings"))
	})
})
