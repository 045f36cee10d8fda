package oracle

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

type Gemini struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature *float64
}

func NewGemini(ctx context.Context, settings Settings, httpClient *http.Client) (*Gemini, error) {
	cfg := &genai.ClientConfig{
		APIKey:  settings.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if baseURL := strings.TrimSpace(settings.BaseURL); baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{
		client:      client,
		model:       settings.Model,
		maxTokens:   int32(settings.MaxTokens),
		temperature: settings.Temperature,
	}, nil
}

func (g *Gemini) Complete(ctx context.Context, system string, conversation []Message) (string, error) {
	contents := make([]*genai.Content, 0, len(conversation))
	for _, m := range conversation {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if g.maxTokens > 0 {
		cfg.MaxOutputTokens = g.maxTokens
	}
	if g.temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*g.temperature))
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", &TransportError{Provider: ProviderGemini, Err: err}
	}

	return resp.Text(), nil
}
