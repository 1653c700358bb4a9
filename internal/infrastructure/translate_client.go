package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const translateEndpoint = "https://translate.googleapis.com/translate_a/single"

// GoogleTranslateClient calls the Google Translate web endpoint. It is the
// raw backend; fallback-on-failure lives in usecases.TranslationService.
type GoogleTranslateClient struct {
	endpoint   string
	httpClient *http.Client
}

func NewGoogleTranslateClient(timeout time.Duration) *GoogleTranslateClient {
	return &GoogleTranslateClient{
		endpoint:   translateEndpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *GoogleTranslateClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == "" {
		source = "auto"
	}

	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", source)
	params.Set("tl", target)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate endpoint returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	// Response shape: [[["<translated>","<original>",...],...],null,"<lang>",...]
	var payload []interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("unexpected translate response: %w", err)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("empty translate response")
	}
	segments, ok := payload[0].([]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected translate response shape")
	}

	var sb strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]interface{})
		if !ok || len(parts) == 0 {
			continue
		}
		if piece, ok := parts[0].(string); ok {
			sb.WriteString(piece)
		}
	}

	translated := sb.String()
	if strings.TrimSpace(translated) == "" {
		return "", fmt.Errorf("translate returned empty result")
	}
	return translated, nil
}
