package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// LibreTranslate calls a LibreTranslate-compatible /translate endpoint.
type LibreTranslate struct {
	Endpoint string
	APIKey   string
	HTTP     *http.Client
}

// libreRequest is the JSON payload of a /translate call. api_key is always
// sent, empty for servers without keys.
type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key"`
}

type libreResponse struct {
	TranslatedText *string `json:"translatedText"`
}

// NewLibreTranslate returns a backend for prov.BaseURL.
func NewLibreTranslate(prov Provider) *LibreTranslate {
	return &LibreTranslate{
		Endpoint: prov.BaseURL,
		APIKey:   prov.APIKey,
		HTTP:     makeHTTPClient(prov.Proxy, 0),
	}
}

// Translate posts one text and returns the translatedText field of a 200
// response. Any other status, or a body without a string translatedText, is
// an ErrService failure.
func (l *LibreTranslate) Translate(ctx context.Context, req Request) (string, error) {
	format := req.Format
	if format == "" {
		format = FormatHTML
	}
	body, err := json.Marshal(libreRequest{
		Q:      req.Text,
		Source: req.Source,
		Target: req.Target,
		Format: format,
		APIKey: l.APIKey,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := l.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	var out libreResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("%w: malformed response: %v", ErrService, err)
	}
	if out.TranslatedText == nil {
		return "", fmt.Errorf("%w: response has no translatedText", ErrService)
	}
	return *out.TranslatedText, nil
}
