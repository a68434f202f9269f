// Package genai wraps the external text-generation service behind a narrow
// interface. The OpenAI-backed implementation is constructed explicitly with
// its API key, model names, token budgets, and timeout; nothing in this
// package holds process-wide state, so services receive an injected handle
// and tests substitute fakes.
package genai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/reino-app/bestias-backend/internal/archetype"
)

// ErrEmptyOutput indicates the service returned a completion with no text.
var ErrEmptyOutput = errors.New("generation returned empty output")

// Analyzer is the capability surface services depend on. All methods issue
// exactly one outbound generation call.
type Analyzer interface {
	// ResolveArchetype maps a quiz prompt to a validated triple using the
	// JSON-contract resolver call.
	ResolveArchetype(ctx context.Context, prompt, lang string) (archetype.Triple, error)

	// ShortProfile generates the short profile text for a prepared prompt.
	ShortProfile(ctx context.Context, prompt, lang string) (string, error)

	// FullProfile generates the full profile text for a prepared prompt.
	FullProfile(ctx context.Context, prompt, lang string) (string, error)

	// CompatibilityText generates the pairwise report body from the v3 system
	// prompt and a prepared payload.
	CompatibilityText(ctx context.Context, systemPrompt, payload string) (string, error)
}

// Config carries the construction parameters for the OpenAI client.
type Config struct {
	APIKey  string
	BaseURL string // optional override, e.g. a compatible-mode gateway

	FastModel   string // resolver + short profile
	StrongModel string // full profile + compatibility

	ResolverMaxTokens int
	ShortMaxTokens    int
	FullMaxTokens     int
	CompatMaxTokens   int

	Timeout time.Duration
}

// OpenAI implements Analyzer on top of the chat-completions API.
type OpenAI struct {
	client *openai.Client
	cfg    Config
}

// NewOpenAI constructs the generation client. Zero-valued budgets get the
// defaults the product was tuned with (120/520/1200/1200 tokens).
func NewOpenAI(cfg Config) *OpenAI {
	if cfg.ResolverMaxTokens <= 0 {
		cfg.ResolverMaxTokens = 120
	}
	if cfg.ShortMaxTokens <= 0 {
		cfg.ShortMaxTokens = 520
	}
	if cfg.FullMaxTokens <= 0 {
		cfg.FullMaxTokens = 1200
	}
	if cfg.CompatMaxTokens <= 0 {
		cfg.CompatMaxTokens = 1200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...), cfg: cfg}
}

// complete issues one chat completion and returns the trimmed text.
func (o *OpenAI) complete(ctx context.Context, model, system, user string, maxTokens int) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		}),
		Model:     openai.F(openai.ChatModel(model)),
		MaxTokens: openai.F(int64(maxTokens)),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyOutput
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

// ResolveArchetype calls the resolver with the strict JSON contract and
// validates the parsed triple. Animal/element failures surface as errors (the
// model is not trusted to invent archetypes); an out-of-enum genderForm is
// coerced by the archetype policy.
func (o *OpenAI) ResolveArchetype(ctx context.Context, prompt, lang string) (archetype.Triple, error) {
	raw, err := o.complete(ctx, o.cfg.FastModel, resolverSystemPrompt(lang), prompt, o.cfg.ResolverMaxTokens)
	if err != nil {
		return archetype.Triple{}, err
	}
	return ParseTriple(raw, lang)
}

// ShortProfile generates the short profile text.
func (o *OpenAI) ShortProfile(ctx context.Context, prompt, lang string) (string, error) {
	return o.complete(ctx, o.cfg.FastModel, shortSystemPrompt(lang), prompt, o.cfg.ShortMaxTokens)
}

// FullProfile generates the full profile text.
func (o *OpenAI) FullProfile(ctx context.Context, prompt, lang string) (string, error) {
	return o.complete(ctx, o.cfg.StrongModel, fullSystemPrompt(lang), prompt, o.cfg.FullMaxTokens)
}

// CompatibilityText generates the pairwise report body.
func (o *OpenAI) CompatibilityText(ctx context.Context, systemPrompt, payload string) (string, error) {
	return o.complete(ctx, o.cfg.StrongModel, systemPrompt, payload, o.cfg.CompatMaxTokens)
}
