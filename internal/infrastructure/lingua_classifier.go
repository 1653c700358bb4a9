package infrastructure

import (
	"strings"

	"github.com/pemistahl/lingua-go"

	"omnidesk/internal/interfaces"
)

// LinguaClassifier ranks language candidates with lingua's statistical
// models. Confidence gating is done by the language service, not here.
type LinguaClassifier struct {
	detector lingua.LanguageDetector
}

func NewLinguaClassifier() *LinguaClassifier {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()
	return &LinguaClassifier{detector: detector}
}

func (c *LinguaClassifier) Classify(text string) []interfaces.LanguageCandidate {
	values := c.detector.ComputeLanguageConfidenceValues(text)
	candidates := make([]interfaces.LanguageCandidate, 0, len(values))
	for _, v := range values {
		code := strings.ToLower(v.Language().IsoCode639_1().String())
		candidates = append(candidates, interfaces.LanguageCandidate{
			Code:        code,
			Probability: v.Value(),
		})
	}
	return candidates
}
