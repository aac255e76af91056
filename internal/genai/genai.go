// Package genai optionally polishes scripted replies using the OpenAI API.
//
// The enhancer is strictly best-effort: it never mutates conversation memory
// and every failure falls back to the scripted reply unchanged, so the bot
// works identically with the enhancer disabled.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/autofondo/barbara/internal/models"
)

// ErrNoChoicesReturned indicates the API responded without any completion.
var ErrNoChoicesReturned = errors.New("no choices returned")

// DefaultModel is used when no model is configured.
const DefaultModel = openai.ChatModelGPT4oMini

const systemPrompt = `Eres Barbara, asesora digital de Autofondo Alese en Perú.
Reescribe la respuesta dada con un tono cálido y natural, en español peruano.
No cambies datos, precios, números de cotización ni correos.
No agregues información nueva. Mantén los emojis. Responde solo con el texto reescrito.`

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionService adapts the OpenAI SDK service to chatService.
type completionService struct {
	svc openai.ChatCompletionService
}

func (s completionService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  chatService
	model string
}

// NewClient creates a GenAI client, falling back to the OPENAI_API_KEY
// environment variable when no key option is given.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{Model: DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("GenAI client created", "model", cfg.Model)
	return &Client{chat: completionService{svc: cli.Chat.Completions}, model: cfg.Model}, nil
}

// GeneratePrompt generates a completion for the given system and user prompts.
func (c *Client) GeneratePrompt(ctx context.Context, system, user string) (string, error) {
	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// EnhanceReply rewrites a scripted reply in Barbara's voice. On any failure or
// empty rewrite, the scripted reply is returned unchanged. The conversation
// memory is read-only context and is never modified.
func (c *Client) EnhanceReply(ctx context.Context, mem *models.ConversationMemory, inbound, scripted string) string {
	if c == nil || scripted == "" {
		return scripted
	}

	var sb strings.Builder
	if mem != nil {
		fmt.Fprintf(&sb, "Estado de la conversación: %s\n", mem.State)
		if mem.UserName != "" {
			fmt.Fprintf(&sb, "Cliente: %s\n", mem.UserName)
		}
	}
	fmt.Fprintf(&sb, "Mensaje del cliente: %s\n", inbound)
	fmt.Fprintf(&sb, "Respuesta a reescribir: %s", scripted)

	out, err := c.GeneratePrompt(ctx, systemPrompt, sb.String())
	if err != nil {
		slog.Debug("GenAI enhancement skipped", "error", err)
		return scripted
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return scripted
	}
	return out
}
