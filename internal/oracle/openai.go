package oracle

import (
	"context"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI serves both api.openai.com and OpenAI-compatible endpoints
// (DeepSeek, vLLM, LM Studio) selected by base URL.
type OpenAI struct {
	client      openai.Client
	provider    string
	model       string
	maxTokens   int64
	temperature *float64
}

func NewOpenAI(settings Settings, httpClient *http.Client) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(settings.APIKey),
		option.WithMaxRetries(settings.MaxRetries),
	}
	if baseURL := strings.TrimSpace(settings.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	provider := settings.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}

	return &OpenAI{
		client:      openai.NewClient(opts...),
		provider:    provider,
		model:       settings.Model,
		maxTokens:   int64(settings.MaxTokens),
		temperature: settings.Temperature,
	}
}

func (o *OpenAI) Complete(ctx context.Context, system string, conversation []Message) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(conversation)+1)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	for _, m := range conversation {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: messages,
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(o.maxTokens)
	}
	if o.temperature != nil {
		params.Temperature = openai.Float(*o.temperature)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &TransportError{Provider: o.provider, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
