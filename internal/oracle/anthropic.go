package oracle

import (
	"context"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
)

type Anthropic struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature *float64
}

func NewAnthropic(settings Settings, httpClient *http.Client) *Anthropic {
	opts := []aoption.RequestOption{
		aoption.WithAPIKey(settings.APIKey),
		aoption.WithMaxRetries(settings.MaxRetries),
	}
	if baseURL := strings.TrimSpace(settings.BaseURL); baseURL != "" {
		opts = append(opts, aoption.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, aoption.WithHTTPClient(httpClient))
	}

	maxTokens := int64(settings.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &Anthropic{
		client:      anthropic.NewClient(opts...),
		model:       settings.Model,
		maxTokens:   maxTokens,
		temperature: settings.Temperature,
	}
}

func (a *Anthropic) Complete(ctx context.Context, system string, conversation []Message) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(conversation))
	for _, m := range conversation {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(block))
		default:
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if a.temperature != nil {
		params.Temperature = anthropic.Float(*a.temperature)
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", &TransportError{Provider: ProviderAnthropic, Err: err}
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(text.Text)
		}
	}
	return out.String(), nil
}
