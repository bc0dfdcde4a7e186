package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fableforge/fableforge/pkg/generation"
	"github.com/fableforge/fableforge/pkg/generation/openai"
)

var _ = Describe("Service", func() {
	It("requires an api key", func() {
		_, err := openai.NewService(openai.Config{})
		Expect(err).To(MatchError(generation.ErrGeneration))
		Expect(err.Error()).To(ContainSubstring("api key"))
	})

	It("generates a reply through chat completions", func() {
		var gotPath, gotAuth string
		var gotBody map[string]any

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "You enter the tavern."}}]}`))
		}))
		defer server.Close()

		service, err := openai.NewService(openai.Config{BaseURL: server.URL, APIKey: "sk-test"})
		Expect(err).NotTo(HaveOccurred())
		defer service.Close()

		reply, err := service.Generate(context.Background(), "I open the door")
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal("You enter the tavern."))

		Expect(gotPath).To(Equal("/v1/chat/completions"))
		Expect(gotAuth).To(Equal("Bearer sk-test"))
		Expect(gotBody["model"]).To(Equal(openai.DefaultModel))
	})

	It("surfaces API error payloads", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices": [], "error": {"message": "rate limited"}}`))
		}))
		defer server.Close()

		service, err := openai.NewService(openai.Config{BaseURL: server.URL, APIKey: "sk-test"})
		Expect(err).NotTo(HaveOccurred())

		_, err = service.Generate(context.Background(), "prompt")
		Expect(err).To(MatchError(generation.ErrGeneration))
		Expect(err.Error()).To(ContainSubstring("rate limited"))
	})

	It("fails when no choices come back", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices": []}`))
		}))
		defer server.Close()

		service, err := openai.NewService(openai.Config{BaseURL: server.URL, APIKey: "sk-test"})
		Expect(err).NotTo(HaveOccurred())

		_, err = service.Generate(context.Background(), "prompt")
		Expect(err).To(MatchError(generation.ErrGeneration))
		Expect(err.Error()).To(ContainSubstring("no choices"))
	})
})

var _ = Describe("ThreadService", func() {
	It("requires an api key and assistant id", func() {
		_, err := openai.NewThreadService(openai.Config{AssistantID: "asst_1"})
		Expect(err).To(MatchError(generation.ErrGeneration))

		_, err = openai.NewThreadService(openai.Config{APIKey: "sk-test"})
		Expect(err).To(MatchError(generation.ErrGeneration))
		Expect(err.Error()).To(ContainSubstring("assistant id"))
	})

	Describe("against a stub assistants API", func() {
		var (
			server  *httptest.Server
			service *openai.ThreadService
			// requests records method+path of every call, in order.
			requests []string
		)

		BeforeEach(func() {
			requests = nil
			mux := http.NewServeMux()

			mux.HandleFunc("POST /v1/threads", func(w http.ResponseWriter, r *http.Request) {
				requests = append(requests, "POST /v1/threads")
				Expect(r.Header.Get("OpenAI-Beta")).To(Equal("assistants=v2"))
				_, _ = w.Write([]byte(`{"id": "thread_abc"}`))
			})
			mux.HandleFunc("POST /v1/threads/thread_abc/messages", func(w http.ResponseWriter, r *http.Request) {
				requests = append(requests, "POST messages")
				var body map[string]string
				Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
				Expect(body["role"]).To(Equal("user"))
				Expect(body["content"]).To(Equal("a prompt"))
				_, _ = w.Write([]byte(`{"id": "msg_1"}`))
			})
			mux.HandleFunc("POST /v1/threads/thread_abc/runs", func(w http.ResponseWriter, r *http.Request) {
				requests = append(requests, "POST runs")
				var body map[string]string
				Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
				Expect(body["assistant_id"]).To(Equal("asst_1"))
				_, _ = w.Write([]byte(`{"id": "run_1", "status": "queued"}`))
			})
			mux.HandleFunc("GET /v1/threads/thread_abc/runs/run_1", func(w http.ResponseWriter, _ *http.Request) {
				requests = append(requests, "GET run")
				_, _ = w.Write([]byte(`{"id": "run_1", "status": "completed"}`))
			})
			mux.HandleFunc("GET /v1/threads/thread_abc/messages", func(w http.ResponseWriter, _ *http.Request) {
				requests = append(requests, "GET messages")
				_, _ = w.Write([]byte(`{"data": [
					{"role": "assistant", "content": [
						{"type": "text", "text": {"value": "The dragon"}},
						{"type": "text", "text": {"value": "stirs."}}
					]},
					{"role": "user", "content": [{"type": "text", "text": {"value": "a prompt"}}]}
				]}`))
			})

			server = httptest.NewServer(mux)

			var err error
			service, err = openai.NewThreadService(openai.Config{
				BaseURL:     server.URL,
				APIKey:      "sk-test",
				AssistantID: "asst_1",
			})
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			server.Close()
		})

		It("drives the full thread lifecycle", func() {
			ctx := context.Background()

			threadID, err := service.CreateThread(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(threadID).To(Equal("thread_abc"))

			Expect(service.AddMessage(ctx, threadID, "user", "a prompt")).To(Succeed())

			runID, err := service.StartRun(ctx, threadID)
			Expect(err).NotTo(HaveOccurred())
			Expect(runID).To(Equal("run_1"))

			status, err := service.RunStatus(ctx, threadID, runID)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(generation.StatusCompleted))

			text, err := service.LatestAssistantText(ctx, threadID)
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("The dragon\nstirs."))

			Expect(requests).To(Equal([]string{
				"POST /v1/threads",
				"POST messages",
				"POST runs",
				"GET run",
				"GET messages",
			}))
		})
	})

	It("returns empty text when no assistant message exists", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data": [{"role": "user", "content": [{"type": "text", "text": {"value": "hi"}}]}]}`))
		}))
		defer server.Close()

		service, err := openai.NewThreadService(openai.Config{
			BaseURL:     server.URL,
			APIKey:      "sk-test",
			AssistantID: "asst_1",
		})
		Expect(err).NotTo(HaveOccurred())

		text, err := service.LatestAssistantText(context.Background(), "thread_abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(BeEmpty())
	})
})
