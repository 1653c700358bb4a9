package usecases

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"omnidesk/internal/entities"
	"omnidesk/internal/interfaces"
)

// TranslationService wraps the external translation backend in a total
// contract: neither direction ever fails or returns an empty string. Any
// backend failure, empty result or malformed input falls back to the input
// text verbatim, so callers need no error branch.
type TranslationService struct {
	backend      interfaces.TranslationBackend
	operatorLang string
	timeout      time.Duration
	log          zerolog.Logger
}

func NewTranslationService(backend interfaces.TranslationBackend, operatorLang string, timeout time.Duration, logger zerolog.Logger) *TranslationService {
	return &TranslationService{
		backend:      backend,
		operatorLang: operatorLang,
		timeout:      timeout,
		log:          logger.With().Str("component", "translator").Logger(),
	}
}

func (s *TranslationService) OperatorLanguage() string {
	return s.operatorLang
}

// ToOperatorLanguage renders customer text into the operator language.
func (s *TranslationService) ToOperatorLanguage(ctx context.Context, text, sourceLang string) string {
	return s.translate(ctx, text, sourceLang, s.operatorLang, sourceLang)
}

// FromOperatorLanguage renders operator text into the customer's language.
func (s *TranslationService) FromOperatorLanguage(ctx context.Context, text, targetLang string) string {
	return s.translate(ctx, text, s.operatorLang, targetLang, targetLang)
}

func (s *TranslationService) translate(ctx context.Context, text, source, target, other string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	// Same language or undetectable: no round-trip, return unchanged.
	if other == "" || other == s.operatorLang || other == entities.LanguageUnknown {
		return text
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	translated, err := s.backend.Translate(ctx, text, source, target)
	if err != nil {
		s.log.Warn().Err(err).Str("source", source).Str("target", target).Msg("translation failed, returning original text")
		return text
	}
	if strings.TrimSpace(translated) == "" {
		s.log.Warn().Str("target", target).Msg("translation returned empty result, returning original text")
		return text
	}
	return translated
}
