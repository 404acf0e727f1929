package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	docerrors "github.com/randalmurphal/docflow/pkg/docflow/errors"
)

// Default OpenAI models.
const (
	DefaultChatModel   = "gpt-4o-mini"
	DefaultSpeechModel = "gpt-4o-mini-tts"
	DefaultImageModel  = "gpt-image-1"
)

// OpenAIOption configures the OpenAI adapters.
type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	timeout    time.Duration
}

// WithAPIKey sets the API key. Without it the client reads OPENAI_API_KEY.
func WithAPIKey(key string) OpenAIOption {
	return func(c *openAIConfig) { c.apiKey = key }
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) { c.baseURL = url }
}

// WithModel sets the default model.
func WithModel(model string) OpenAIOption {
	return func(c *openAIConfig) { c.model = model }
}

// WithMaxRetries sets the SDK-level retry count. Default: 2
func WithMaxRetries(n int) OpenAIOption {
	return func(c *openAIConfig) { c.maxRetries = n }
}

// WithTimeout sets the per-request timeout. Default: 5 minutes
func WithTimeout(d time.Duration) OpenAIOption {
	return func(c *openAIConfig) { c.timeout = d }
}

func newOpenAIConfig(defaultModel string, opts []OpenAIOption) openAIConfig {
	cfg := openAIConfig{model: defaultModel, maxRetries: 2, timeout: 5 * time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c openAIConfig) client() openai.Client {
	reqOpts := []option.RequestOption{
		option.WithMaxRetries(c.maxRetries),
		option.WithRequestTimeout(c.timeout),
	}
	if c.apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(c.apiKey))
	}
	if c.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(c.baseURL))
	}
	return openai.NewClient(reqOpts...)
}

// OpenAI implements Client using the chat completions API.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates a chat client.
func NewOpenAI(opts ...OpenAIOption) *OpenAI {
	cfg := newOpenAIConfig(DefaultChatModel, opts)
	return &OpenAI{client: cfg.client(), model: cfg.model}
}

// Complete implements Client.
func (c *OpenAI) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.model
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: chatMessages(req),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapOpenAIError("complete", ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewError("complete", errors.New("empty response from model"), false)
	}

	choice := resp.Choices[0]
	return &CompletionResponse{
		Content: choice.Message.Content,
		Usage: TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
		Model:        resp.Model,
		FinishReason: choice.FinishReason,
		Duration:     time.Since(start),
	}, nil
}

func chatMessages(req CompletionRequest) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return msgs
}

// wrapOpenAIError converts SDK errors into the docflow error taxonomy so that
// errors.Categorize sees status codes.
func wrapOpenAIError(op string, ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return NewError(op, ctx.Err(), false)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = strings.TrimSpace(apiErr.Error())
		}
		httpErr := &docerrors.HTTPError{StatusCode: apiErr.StatusCode, Message: msg}
		return NewError(op, httpErr, docerrors.IsRetryable(httpErr))
	}
	return NewError(op, err, docerrors.IsRetryable(err))
}

var _ Client = (*OpenAI)(nil)
