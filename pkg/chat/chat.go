// Package chat is the LLM chat client. Responses are grounded with Scripture
// verses matching the user's message.
//
// Chat calls are not paced by the request queue: each user message is one
// call, bounded by its own retry executor.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/scripture-client/pkg/apierr"
	"github.com/Sternrassler/scripture-client/pkg/queue"
	"github.com/Sternrassler/scripture-client/pkg/retry"
	"github.com/Sternrassler/scripture-client/pkg/scripture"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Defaults for the chat provider.
const (
	DefaultModel        = "anthropic/claude-3.5-sonnet"
	DefaultMaxTokens    = 800
	DefaultTemperature  = 0.7
	DefaultTopP         = 0.9
	DefaultTitle        = "Bible Study App - AI Assistant"
	DefaultHistoryLimit = 5
	DefaultVerseLimit   = 2
	DefaultTimeout      = 30 * time.Second
)

const emptyResponse = "I'm sorry, I couldn't generate a response."

// Config holds the chat client configuration.
type Config struct {
	APIKey string
	APIURL string

	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64

	// Title and Referer identify the application to the provider.
	Title   string
	Referer string

	// HistoryLimit is the number of prior messages sent for context.
	HistoryLimit int

	// VerseLimit is the number of verses appended to the system prompt.
	VerseLimit int
}

// DefaultConfig returns the provider defaults.
func DefaultConfig() Config {
	return Config{
		Model:        DefaultModel,
		MaxTokens:    DefaultMaxTokens,
		Temperature:  DefaultTemperature,
		TopP:         DefaultTopP,
		Title:        DefaultTitle,
		HistoryLimit: DefaultHistoryLimit,
		VerseLimit:   DefaultVerseLimit,
	}
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is a chat answer with the verses used to ground it.
type Response struct {
	Text           string            `json:"response"`
	RelevantVerses []scripture.Verse `json:"relevant_verses"`
	Keywords       []string          `json:"keywords"`
}

// HasVerses reports whether the answer was grounded with verses.
func (r Response) HasVerses() bool {
	return len(r.RelevantVerses) > 0
}

// VerseSearcher finds verses for prompt enrichment.
type VerseSearcher interface {
	SearchVerses(ctx context.Context, query string, opts scripture.SearchOptions) ([]scripture.Verse, error)
}

// Client is the chat client.
type Client struct {
	config     Config
	httpClient *http.Client
	executor   *retry.Executor
	verses     VerseSearcher
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithExecutor overrides the retry executor.
func WithExecutor(ex *retry.Executor) Option {
	return func(c *Client) {
		c.executor = ex
	}
}

// WithVerseSearcher enables verse enrichment.
func WithVerseSearcher(vs VerseSearcher) Option {
	return func(c *Client) {
		c.verses = vs
	}
}

// New creates a chat client. Zero config fields take their defaults.
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.TopP <= 0 {
		cfg.TopP = def.TopP
	}
	if cfg.Title == "" {
		cfg.Title = def.Title
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.VerseLimit <= 0 {
		cfg.VerseLimit = def.VerseLimit
	}

	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: DefaultTimeout + 5*time.Second},
		logger:     log.With().Str("component", "chat-client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.executor == nil {
		rc := retry.DefaultConfig()
		rc.Timeout = DefaultTimeout
		c.executor = retry.New(rc)
	}

	if missing := c.Missing(); len(missing) > 0 {
		c.logger.Warn().Strs("missing", missing).Msg("Chat provider not configured")
	}
	return c
}

// Missing lists absent required settings.
func (c *Client) Missing() []string {
	var missing []string
	if c.config.APIKey == "" {
		missing = append(missing, "API key")
	}
	if c.config.APIURL == "" {
		missing = append(missing, "API URL")
	}
	return missing
}

// Configured reports whether the provider can be called.
func (c *Client) Configured() bool {
	return len(c.Missing()) == 0
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// GetChatResponse answers message in the context of history. Verses found
// for the message's keywords are added to the system prompt; failing to
// find them never fails the call.
func (c *Client) GetChatResponse(ctx context.Context, message string, history []Message) (Response, error) {
	if missing := c.Missing(); len(missing) > 0 {
		return Response{}, apierr.NotConfigured("chat provider", missing...)
	}

	keywords := ExtractKeywords(message)
	verses := c.findVerses(ctx, keywords, c.config.VerseLimit)

	if len(history) > c.config.HistoryLimit {
		history = history[len(history)-c.config.HistoryLimit:]
	}

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: SystemPrompt(verses)})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: message})

	text, err := retry.Do(ctx, c.executor, func(ctx context.Context) (string, error) {
		return c.complete(ctx, messages)
	})
	if err != nil {
		return Response{}, fmt.Errorf("chat completion: %w", err)
	}

	c.logger.Info().
		Int("keywords", len(keywords)).
		Int("verses", len(verses)).
		Int("history", len(history)).
		Msg("Chat response generated")

	return Response{Text: text, RelevantVerses: verses, Keywords: keywords}, nil
}

// Perspective is the answer of BiblicalPerspective.
type Perspective struct {
	Response
	Topic  string            `json:"topic"`
	Verses []scripture.Verse `json:"verses"`

	// Err is set when the provider failed and Text is the fallback.
	Err error `json:"-"`
}

// BiblicalPerspective asks for a Scripture-based view on topic. Provider
// failures produce a fallback answer instead of an error.
func (c *Client) BiblicalPerspective(ctx context.Context, topic string) Perspective {
	keywords := ExtractKeywords(topic)
	verses := c.findVerses(ctx, append([]string{topic}, keywords...), 3)

	prompt := fmt.Sprintf("Provide a biblical perspective on %q using relevant Scripture.", topic)
	resp, err := c.GetChatResponse(ctx, prompt, nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("topic", topic).Msg("Biblical perspective unavailable, using fallback")
		return Perspective{
			Response: Response{
				Text:           fmt.Sprintf("I'd encourage you to search the Scriptures about %q and seek guidance through prayer and study.", topic),
				RelevantVerses: verses,
				Keywords:       keywords,
			},
			Topic:  topic,
			Verses: verses,
			Err:    err,
		}
	}
	return Perspective{Response: resp, Topic: topic, Verses: verses}
}

func (c *Client) findVerses(ctx context.Context, keywords []string, limit int) []scripture.Verse {
	if c.verses == nil || len(keywords) == 0 {
		return nil
	}

	verses, err := c.verses.SearchVerses(ctx, strings.Join(keywords, " "), scripture.SearchOptions{
		Limit:    limit,
		Priority: queue.High,
	})
	if err != nil {
		c.logger.Warn().Err(err).Strs("keywords", keywords).Msg("Verse enrichment failed")
		return nil
	}
	if len(verses) > limit {
		verses = verses[:limit]
	}
	return verses
}

// complete performs one chat completion call.
func (c *Client) complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		TopP:        c.config.TopP,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("X-Title", c.config.Title)
	if c.config.Referer != "" {
		req.Header.Set("HTTP-Referer", c.config.Referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", apierr.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if apiErr := apierr.FromStatus(resp.StatusCode, resp.Header, b); apiErr != nil {
			return "", apiErr
		}
	}

	var cr completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return emptyResponse, nil
	}
	return cr.Choices[0].Message.Content, nil
}
