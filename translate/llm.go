package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/javierasping/Markdown-translation/langmeta"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// LineSystemPrompt is the system prompt used by LLM backends. Each request
// carries one line or one metadata value of a Markdown document.
const LineSystemPrompt = `You are a professional translator of technical blog posts written in Markdown.

Translate the user's text from {{sourceLang}} to {{targetLang}}.

RULES:
- The text is a single line or a single metadata value of a Markdown document.
- Return ONLY the translated text: no explanations, no quotes, no code fences.
- Preserve Markdown markup exactly (heading hashes, list markers, emphasis, links, inline code).
- Preserve HTML tags, URLs, file paths and command names unchanged.
- Tokens like __PLACEHOLDER_0__ must appear in the output exactly as in the input.
- If the text needs no translation, return it unchanged.`

// linePrompt fills the language placeholders of LineSystemPrompt.
func linePrompt(source, target string) string {
	r := strings.NewReplacer(
		"{{sourceLang}}", langmeta.Resolve(source).Name,
		"{{targetLang}}", langmeta.Resolve(target).Name,
	)
	return r.Replace(LineSystemPrompt)
}

// ---------------------------------------------------------------------------
// OpenAI-compatible chat completions
// ---------------------------------------------------------------------------

// OpenAI translates through a chat completion endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	prompt string
}

// NewOpenAI returns a backend for prov. prov.BaseURL may point at any
// OpenAI-compatible server.
func NewOpenAI(prov Provider, source, target string) *OpenAI {
	cfg := openai.DefaultConfig(prov.APIKey)
	if prov.BaseURL != "" {
		cfg.BaseURL = prov.BaseURL
	}
	cfg.HTTPClient = makeHTTPClient(prov.Proxy, 0)
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  prov.Model,
		prompt: linePrompt(source, target),
	}
}

func (o *OpenAI) Translate(ctx context.Context, req Request) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.prompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Text},
		},
		Temperature: 0.2,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.HTTPStatusCode, Body: truncate(apiErr.Message, 200)}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return "", &StatusError{StatusCode: reqErr.HTTPStatusCode, Body: truncate(string(reqErr.Body), 200)}
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrService)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ---------------------------------------------------------------------------
// Google Gemini
// ---------------------------------------------------------------------------

// Gemini translates through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	prompt string
}

// NewGemini returns a backend for prov. An empty prov.APIKey lets the genai
// client read GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewGemini(ctx context.Context, prov Provider, source, target string) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     prov.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: makeHTTPClient(prov.Proxy, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{client: cli, model: prov.Model, prompt: linePrompt(source, target)}, nil
}

func (g *Gemini) Translate(ctx context.Context, req Request) (string, error) {
	temperature := float32(0.2)
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.Text}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: g.prompt}}},
			Temperature:       &temperature,
		},
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no candidates returned", ErrService)
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: empty candidate", ErrService)
	}
	return strings.TrimSpace(sb.String()), nil
}
