package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/fableforge/fableforge/pkg/convo/inmemory"
	"github.com/fableforge/fableforge/pkg/dice"
	"github.com/fableforge/fableforge/pkg/engine"
	"github.com/fableforge/fableforge/pkg/prompt"
	"github.com/fableforge/fableforge/pkg/session"
	testutils "github.com/fableforge/fableforge/pkg/utils/test"
)

func postJSON(server *Server, path string, payload any) *http.Response {
	body, err := json.Marshal(payload)
	Expect(err).NotTo(HaveOccurred())

	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.app.Test(req)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func decodeJSON(resp *http.Response, out any) {
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(body, out)).To(Succeed())
}

var _ = Describe("GM Handlers", func() {
	var (
		server    *Server
		store     *inmemory.Store
		generator *testutils.MockGenerator
		index     *testutils.MockIndex
		synth     *testutils.MockSynthesizer
	)

	BeforeEach(func() {
		logger, _ := zap.NewDevelopment()
		store = inmemory.NewStore()
		index = testutils.NewMockIndex()
		generator = testutils.NewMockGenerator("You enter the tavern.")
		synth = testutils.NewMockSynthesizer()

		composer := prompt.NewComposer(prompt.Config{}, index, logger)
		runner := engine.NewSyncRunner(generator)
		eng := engine.New(engine.Config{}, store, composer, runner, testutils.NewMockUpdater(), logger)
		binder := session.NewBinder(store, nil, logger)

		server = NewServer(Config{ListenAddr: ":0"}, eng, binder, synth, logger)
	})

	createConversation := func(campaignID string) string {
		resp := postJSON(server, "/api/gm/conversation", CreateConversationRequest{
			CampaignID: campaignID,
		})
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		var created CreateConversationResponse
		decodeJSON(resp, &created)
		Expect(created.ConversationID).NotTo(BeEmpty())
		return created.ConversationID
	}

	Describe("GET /health", func() {
		It("reports ok", func() {
			req, err := http.NewRequest(http.MethodGet, "/health", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var body map[string]any
			decodeJSON(resp, &body)
			Expect(body["ok"]).To(BeTrue())
			Expect(body["service"]).To(Equal("fableforge"))
		})
	})

	Describe("GET /api/roll", func() {
		It("rolls a d20 by default", func() {
			req, err := http.NewRequest(http.MethodGet, "/api/roll", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var roll dice.Result
			decodeJSON(resp, &roll)
			Expect(roll.Sides).To(Equal(20))
			Expect(roll.Result).To(BeNumerically(">=", 1))
			Expect(roll.Result).To(BeNumerically("<=", 20))
		})

		It("honors the sides query parameter", func() {
			req, err := http.NewRequest(http.MethodGet, "/api/roll?sides=6", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var roll dice.Result
			decodeJSON(resp, &roll)
			Expect(roll.Sides).To(Equal(6))
			Expect(roll.Result).To(BeNumerically("<=", 6))
		})

		It("rejects non-numeric sides", func() {
			req, err := http.NewRequest(http.MethodGet, "/api/roll?sides=banana", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("POST /api/gm/conversation", func() {
		It("creates a conversation", func() {
			id := createConversation("campaign-1")

			c, err := store.Get(context.Background(), id)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.CampaignID).To(Equal("campaign-1"))
		})

		It("requires a campaign id", func() {
			resp := postJSON(server, "/api/gm/conversation", CreateConversationRequest{})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns the same conversation for a repeated session key", func() {
			first := postJSON(server, "/api/gm/conversation", CreateConversationRequest{
				CampaignID: "campaign-1",
				SessionKey: "discord:42",
			})
			Expect(first.StatusCode).To(Equal(fiber.StatusOK))

			second := postJSON(server, "/api/gm/conversation", CreateConversationRequest{
				CampaignID: "campaign-1",
				SessionKey: "discord:42",
			})
			Expect(second.StatusCode).To(Equal(fiber.StatusOK))

			var a, b CreateConversationResponse
			decodeJSON(first, &a)
			decodeJSON(second, &b)
			Expect(a.ConversationID).To(Equal(b.ConversationID))
		})
	})

	Describe("POST /api/gm/turn", func() {
		It("returns the narrator reply", func() {
			id := createConversation("campaign-1")

			resp := postJSON(server, "/api/gm/turn", MessageRequest{
				ConversationID: id,
				Text:           "I open the tavern door",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var reply ReplyResponse
			decodeJSON(resp, &reply)
			Expect(reply.ConversationID).To(Equal(id))
			Expect(reply.Reply).To(Equal("You enter the tavern."))
		})

		It("rejects empty text", func() {
			id := createConversation("campaign-1")

			resp := postJSON(server, "/api/gm/turn", MessageRequest{
				ConversationID: id,
				Text:           "   ",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 404 for an unknown conversation", func() {
			resp := postJSON(server, "/api/gm/turn", MessageRequest{
				ConversationID: "no-such-conversation",
				Text:           "hello",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("maps generation failures to 500", func() {
			id := createConversation("campaign-1")
			generator.Err = context.Canceled

			resp := postJSON(server, "/api/gm/turn", MessageRequest{
				ConversationID: id,
				Text:           "I open the tavern door",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})

	Describe("POST /api/gm/message and /api/gm/run", func() {
		It("submits then runs as separate calls", func() {
			id := createConversation("campaign-1")

			resp := postJSON(server, "/api/gm/message", MessageRequest{
				ConversationID: id,
				Text:           "I draw my sword",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusAccepted))

			resp = postJSON(server, "/api/gm/run", RunRequest{ConversationID: id})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var reply ReplyResponse
			decodeJSON(resp, &reply)
			Expect(reply.Reply).To(Equal("You enter the tavern."))
		})

		It("rejects running with no pending user message", func() {
			id := createConversation("campaign-1")

			resp := postJSON(server, "/api/gm/run", RunRequest{ConversationID: id})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("POST /api/gm/speech", func() {
		It("returns audio bytes", func() {
			resp := postJSON(server, "/api/gm/speech", SpeechRequest{Text: "Welcome, adventurer"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("audio/mpeg"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("audio")))
			Expect(synth.Spoken).To(ConsistOf("Welcome, adventurer"))
		})

		It("requires text", func() {
			resp := postJSON(server, "/api/gm/speech", SpeechRequest{})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 503 when speech is not configured", func() {
			logger, _ := zap.NewDevelopment()
			composer := prompt.NewComposer(prompt.Config{}, index, logger)
			runner := engine.NewSyncRunner(generator)
			eng := engine.New(engine.Config{}, store, composer, runner, testutils.NewMockUpdater(), logger)
			bare := NewServer(Config{ListenAddr: ":0"}, eng, session.NewBinder(store, nil, logger), nil, logger)

			resp := postJSON(bare, "/api/gm/speech", SpeechRequest{Text: "hello"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		})
	})
})
