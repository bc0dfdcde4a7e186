// Package chatcmder provides the chat command for playing a campaign
// interactively against the Game Master API.
package chatcmder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fableforge/fableforge/pkg/cliui"
	"github.com/fableforge/fableforge/pkg/config"
	"github.com/fableforge/fableforge/pkg/logger"
)

var (
	playerPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	gmPrompt     = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Render("gm> ")
)

type chatCommander struct {
	apiTarget string
	campaign  string
	player    string
	debug     bool

	conversationID string
	logger         *zap.Logger
	client         *http.Client
}

type createConversationRequest struct {
	CampaignID string `json:"campaign_id"`
	PlayerID   string `json:"player_id,omitempty"`
}

type createConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

type turnRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

type turnResponse struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
}

type rollResponse struct {
	Sides  int `json:"sides"`
	Result int `json:"result"`
}

const chatLongDesc string = `Play a campaign interactively against the Game Master API.

Each message you type becomes one turn: the server composes a prompt from
campaign memory, the narrator replies, and the exchange is distilled back
into memory for future turns.

Slash commands:
  /roll [sides]    Roll a die (d20 by default)
  /exit            Leave the table

Examples:
  fableforge chat --campaign shadowfen
  fableforge chat --campaign shadowfen --player aria --api-target http://localhost:8787`

const chatShortDesc string = "Play a campaign against the Game Master"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.apiTarget, "api-target", "a", defaults.Client.APITarget, "Game Master API server URL")
	cmd.Flags().StringVarP(&cmder.campaign, "campaign", "c", "default", "Campaign to play in")
	cmd.Flags().StringVarP(&cmder.player, "player", "p", "", "Player identifier")

	return cmd
}

func (c *chatCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	c.client = &http.Client{
		// Narration can be slow
		Timeout: 5 * time.Minute,
	}

	fmt.Println()
	err := cliui.Step(os.Stdout, "Joining campaign "+cliui.NameStyle.Render(c.campaign), func() error {
		var stepErr error
		c.conversationID, stepErr = c.createConversation()
		return stepErr
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("Type your action and press Enter. /roll to roll, /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(playerPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}
		if strings.HasPrefix(input, "/roll") {
			c.roll(strings.TrimSpace(strings.TrimPrefix(input, "/roll")))
			continue
		}

		reply, err := c.submitTurn(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			continue
		}

		fmt.Printf("%s%s\n\n", gmPrompt, reply)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}

// createConversation starts a conversation for the campaign and returns its id.
func (c *chatCommander) createConversation() (string, error) {
	var created createConversationResponse
	err := c.postJSON("/api/gm/conversation", createConversationRequest{
		CampaignID: c.campaign,
		PlayerID:   c.player,
	}, &created)
	if err != nil {
		return "", err
	}

	c.logger.Debug("conversation created",
		zap.String("conversation_id", created.ConversationID),
		zap.String("campaign", c.campaign),
	)

	return created.ConversationID, nil
}

// submitTurn sends one player action and returns the narrator's reply.
func (c *chatCommander) submitTurn(text string) (string, error) {
	var reply turnResponse
	err := c.postJSON("/api/gm/turn", turnRequest{
		ConversationID: c.conversationID,
		Text:           text,
	}, &reply)
	if err != nil {
		return "", err
	}

	return reply.Reply, nil
}

// roll asks the server for a die roll and prints the result.
func (c *chatCommander) roll(arg string) {
	path := "/api/roll"
	if arg != "" {
		if _, err := strconv.Atoi(arg); err != nil {
			fmt.Fprintf(os.Stderr, "  %s sides must be a number\n", cliui.FailMark)
			return
		}
		path += "?sides=" + arg
	}

	resp, err := c.client.Get(c.apiTarget + path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
		return
	}
	defer resp.Body.Close()

	var result rollResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
		return
	}

	fmt.Printf("  %s d%d → %s\n\n",
		cliui.SuccessMark,
		result.Sides,
		cliui.ValueStyle.Render(strconv.Itoa(result.Result)),
	)
}

// postJSON posts a JSON body to the API and decodes the JSON response into out.
func (c *chatCommander) postJSON(path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	url := c.apiTarget + path
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request to game master: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("game master returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
