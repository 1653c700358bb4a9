package usecases

import (
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"omnidesk/internal/entities"
	"omnidesk/internal/interfaces"
)

const (
	// minDetectLength is the minimum number of normalized characters a
	// text needs before classification is attempted. Short text is not a
	// reliable detection signal.
	minDetectLength = 5

	// confidenceThreshold is the minimum top-1 probability to accept.
	confidenceThreshold = 0.85

	// separationMargin is the minimum gap required between the top two
	// candidates.
	separationMargin = 0.2
)

// LanguageService gates a probabilistic classifier into a language code or
// the first-class "unknown" outcome. "unknown" is not an error: it disables
// translation and blocks outbound sends downstream.
type LanguageService struct {
	classifier interfaces.LanguageClassifier
	log        zerolog.Logger
}

func NewLanguageService(classifier interfaces.LanguageClassifier, logger zerolog.Logger) *LanguageService {
	return &LanguageService{
		classifier: classifier,
		log:        logger.With().Str("component", "language").Logger(),
	}
}

// Detect classifies text into an ISO-639-1 code, or "unknown" when the
// text is too short or the classifier is not confident enough.
func (s *LanguageService) Detect(text string) string {
	normalized, letters := normalizeForDetection(text)
	if letters < minDetectLength {
		return entities.LanguageUnknown
	}

	candidates := s.classifier.Classify(normalized)
	if len(candidates) == 0 || candidates[0].Code == "" {
		return entities.LanguageUnknown
	}

	top := candidates[0]
	if top.Probability < confidenceThreshold {
		return entities.LanguageUnknown
	}
	if len(candidates) > 1 && top.Probability-candidates[1].Probability < separationMargin {
		return entities.LanguageUnknown
	}

	s.log.Debug().Str("language", top.Code).Float64("probability", top.Probability).Msg("language detected")
	return top.Code
}

// normalizeForDetection strips everything but letters and single spaces,
// returning the normalized text and its letter count.
func normalizeForDetection(text string) (string, int) {
	var sb strings.Builder
	letters := 0
	lastSpace := true
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			sb.WriteRune(r)
			letters++
			lastSpace = false
		case !lastSpace:
			sb.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(sb.String()), letters
}
