package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/nathoo/fableforge/fault"
	"github.com/nathoo/fableforge/types"
)

// DefaultBaseURL is the OpenRouter chat-completions endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// chatMessage is one turn sent to the completions API.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the completions request body.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatResponse is the non-streaming completions response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// generatedEntity is the JSON shape the model is instructed to emit.
type generatedEntity struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	PortraitRef string      `json:"portraitRef"`
	Persona     string      `json:"persona"`
	Stats       types.Stats `json:"stats"`
}

// Client calls the generation service over HTTP. Create with NewClient.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps outgoing calls per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewClient creates a generation client for the given endpoint and model.
func NewClient(baseURL, apiKey, model string, log *slog.Logger, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(1), 3),
		log:     log,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "generation-service",
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("generation breaker state change", "from", from.String(), "to", to.String())
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const entitySystemPrompt = `You create characters for a fantasy adventure game.
Respond with a single JSON object and nothing else:
{"name": string, "description": string (2-3 sentences), "portraitRef": string
(a short visual portrait description), "persona": string (speaking style, only
for NPCs, otherwise empty), "stats": {"hp": int, "maxHp": int, "mp": int,
"maxMp": int, "atk": int, "def": int}}.
Stats are non-negative, hp equals maxHp, mp equals maxMp.`

// GenerateEntity asks the service for a character matching the prompt and
// category. The reply must parse as the documented JSON shape; anything else
// aborts with fault.ErrGeneration and no entity is committed.
func (c *Client) GenerateEntity(ctx context.Context, prompt string, cat types.Category, tags []string) (*types.Entity, error) {
	if !cat.Valid() {
		return nil, fault.Generation(fmt.Errorf("unknown category %q", cat))
	}

	user := fmt.Sprintf("Category: %s. Tags: %s. Prompt: %s",
		cat, strings.Join(tags, ", "), prompt)
	content, err := c.complete(ctx, []chatMessage{
		{Role: "system", Content: entitySystemPrompt},
		{Role: "user", Content: user},
	})
	if err != nil {
		return nil, err
	}

	var gen generatedEntity
	if err := json.Unmarshal([]byte(extractJSON(content)), &gen); err != nil {
		return nil, fault.Generation(fmt.Errorf("unparseable entity reply: %w", err))
	}
	if gen.Name == "" {
		return nil, fault.Generation(fmt.Errorf("entity reply missing name"))
	}
	if gen.Stats.MaxHP <= 0 {
		return nil, fault.Generation(fmt.Errorf("entity reply has invalid stats"))
	}
	gen.Stats.Clamp()

	e := &types.Entity{
		ID:             uuid.NewString(),
		Name:           gen.Name,
		Description:    gen.Description,
		Category:       cat,
		PortraitRef:    gen.PortraitRef,
		Stats:          gen.Stats,
		Tags:           append([]string(nil), tags...),
		OriginalPrompt: prompt,
	}
	if cat == types.CategoryNPC {
		e.DialoguePersona = gen.Persona
	}
	return e, nil
}

// GenerateDialogueReply asks the service for the NPC's next line.
func (c *Client) GenerateDialogueReply(ctx context.Context, persona string, history []types.DialogueTurn, message string) (string, error) {
	messages := []chatMessage{{
		Role: "system",
		Content: "You are roleplaying this character in a fantasy town. Stay in " +
			"character and answer in at most three sentences.\nPersona: " + persona,
	}}
	for _, turn := range history {
		role := "assistant"
		if turn.Speaker == "player" {
			role = "user"
		}
		messages = append(messages, chatMessage{Role: role, Content: turn.Text})
	}
	messages = append(messages, chatMessage{Role: "user", Content: message})

	reply, err := c.complete(ctx, messages)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fault.Generation(fmt.Errorf("empty dialogue reply"))
	}
	return reply, nil
}

// complete performs one chat-completions round trip through the rate limiter
// and circuit breaker.
func (c *Client) complete(ctx context.Context, messages []chatMessage) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fault.Generation(err)
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.doRequest(ctx, chatRequest{Model: c.model, Messages: messages})
	})
	if err != nil {
		return "", fault.Generation(err)
	}
	return result.(string), nil
}

func (c *Client) doRequest(ctx context.Context, body chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation service returned %d: %s",
			resp.StatusCode, truncate(string(data), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("bad completions response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completions response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// extractJSON strips markdown code fences the model sometimes wraps around
// its JSON payload.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
