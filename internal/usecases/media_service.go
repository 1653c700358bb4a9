package usecases

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"omnidesk/internal/entities"
	"omnidesk/internal/interfaces"
)

// MediaInput is the heterogeneous attachment descriptor accepted at the
// channel boundary: a remote URL, an inline base64 payload, or both.
type MediaInput struct {
	URL  string `json:"url"`
	Data string `json:"data"` // base64, optionally with a data: prefix
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// mediaVariant is the tagged form a descriptor resolves to, exactly once,
// before any side effect happens.
type mediaVariant struct {
	remote *entities.Media
	inline *inlinePayload
}

type inlinePayload struct {
	data []byte
	name string
	mime string
}

// MediaService is the attachment normalizer. It exclusively owns the
// decode/upload step; normalized references are immutable.
type MediaService struct {
	store interfaces.ContentStore
	log   zerolog.Logger
}

func NewMediaService(store interfaces.ContentStore, logger zerolog.Logger) *MediaService {
	return &MediaService{
		store: store,
		log:   logger.With().Str("component", "media").Logger(),
	}
}

// Normalize resolves a batch of descriptors into canonical stored-media
// references, scoped by conversation id. Items are independent: one item's
// failure never aborts the rest, and the result is nil only when the input
// was empty or every item failed. Uploads run concurrently; the batch
// returns once all items were attempted, original order preserved.
func (s *MediaService) Normalize(ctx context.Context, conversationID string, items []MediaInput) []entities.Media {
	if len(items) == 0 {
		return nil
	}

	results := make([]*entities.Media, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item MediaInput) {
			defer wg.Done()
			results[i] = s.normalizeOne(ctx, conversationID, item)
		}(i, item)
	}
	wg.Wait()

	normalized := make([]entities.Media, 0, len(items))
	for _, m := range results {
		if m != nil {
			normalized = append(normalized, *m)
		}
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

func (s *MediaService) normalizeOne(ctx context.Context, conversationID string, item MediaInput) *entities.Media {
	variant, err := resolveVariant(item)
	if err != nil {
		s.log.Warn().Err(err).Str("name", item.Name).Msg("dropping attachment")
		return nil
	}

	if variant.remote != nil {
		return variant.remote
	}

	inline := variant.inline
	path := fmt.Sprintf("conversations/%s/%s-%s", conversationID, uuid.NewString(), inline.name)
	url, err := s.store.Upload(ctx, path, inline.mime, inline.data)
	if err != nil {
		s.log.Warn().Err(err).Str("name", inline.name).Msg("upload failed, dropping attachment")
		return nil
	}
	return &entities.Media{
		URL:  url,
		Name: inline.name,
		Type: inline.mime,
		Size: int64(len(inline.data)),
	}
}

// resolveVariant applies the per-item policy: URL without payload passes
// through, a payload (with or without URL) is decoded for upload, and an
// item with neither is dropped.
func resolveVariant(item MediaInput) (mediaVariant, error) {
	name := item.Name
	if name == "" {
		name = "media-" + uuid.NewString()
	}
	mime := item.Type
	if mime == "" {
		mime = "application/octet-stream"
	}

	if item.Data != "" {
		data, err := decodeBase64(item.Data)
		if err != nil {
			return mediaVariant{}, fmt.Errorf("decode payload: %w", err)
		}
		return mediaVariant{inline: &inlinePayload{
			data: data,
			name: sanitizeFilename(name),
			mime: mime,
		}}, nil
	}

	if item.URL != "" {
		return mediaVariant{remote: &entities.Media{
			URL:  item.URL,
			Name: name,
			Type: mime,
			Size: item.Size,
		}}, nil
	}

	return mediaVariant{}, fmt.Errorf("attachment has neither url nor payload")
}

// decodeBase64 accepts both bare base64 and data: URI payloads.
func decodeBase64(data string) ([]byte, error) {
	if idx := strings.Index(data, ","); idx >= 0 && strings.HasPrefix(data, "data:") {
		data = data[idx+1:]
	}
	return base64.StdEncoding.DecodeString(data)
}

func sanitizeFilename(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "file-" + uuid.NewString()
	}
	return sb.String()
}
