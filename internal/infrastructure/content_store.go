package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseContentStore uploads binary payloads to a Supabase-style storage
// bucket and returns the public URL for the stored object.
type SupabaseContentStore struct {
	baseURL    string
	apiKey     string
	bucket     string
	httpClient *http.Client
}

func NewSupabaseContentStore(baseURL, apiKey, bucket string, timeout time.Duration) *SupabaseContentStore {
	return &SupabaseContentStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *SupabaseContentStore) Configured() bool {
	return s.baseURL != "" && s.apiKey != ""
}

func (s *SupabaseContentStore) Upload(ctx context.Context, path, contentType string, data []byte) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("content store not configured")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload failed: HTTP %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, path), nil
}
