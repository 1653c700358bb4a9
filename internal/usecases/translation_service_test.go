package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type stubTranslator struct {
	mu     sync.Mutex
	result string
	err    error
	calls  int
}

func (s *stubTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.result, s.err
}

func newTestTranslation(backend *stubTranslator) *TranslationService {
	return NewTranslationService(backend, "tr", time.Second, zerolog.Nop())
}

func TestTranslateToOperatorLanguage(t *testing.T) {
	backend := &stubTranslator{result: "Merhaba, nasılsınız?"}
	svc := newTestTranslation(backend)

	got := svc.ToOperatorLanguage(context.Background(), "Hello, how are you?", "en")
	assert.Equal(t, "Merhaba, nasılsınız?", got)
	assert.Equal(t, 1, backend.calls)
}

func TestTranslateSameLanguageSkipsBackend(t *testing.T) {
	backend := &stubTranslator{result: "should never be used"}
	svc := newTestTranslation(backend)

	got := svc.ToOperatorLanguage(context.Background(), "Merhaba", "tr")
	assert.Equal(t, "Merhaba", got)
	assert.Zero(t, backend.calls)
}

func TestTranslateUnknownLanguageSkipsBackend(t *testing.T) {
	backend := &stubTranslator{result: "should never be used"}
	svc := newTestTranslation(backend)

	got := svc.ToOperatorLanguage(context.Background(), "wer weiß", "unknown")
	assert.Equal(t, "wer weiß", got)
	assert.Zero(t, backend.calls)
}

func TestTranslateBackendErrorFallsBack(t *testing.T) {
	backend := &stubTranslator{err: errors.New("upstream 503")}
	svc := newTestTranslation(backend)

	got := svc.ToOperatorLanguage(context.Background(), "Bonjour", "fr")
	assert.Equal(t, "Bonjour", got)
}

func TestTranslateEmptyResultFallsBack(t *testing.T) {
	backend := &stubTranslator{result: ""}
	svc := newTestTranslation(backend)

	got := svc.FromOperatorLanguage(context.Background(), "Siparişiniz kargoya verildi", "de")
	assert.Equal(t, "Siparişiniz kargoya verildi", got)
}

func TestTranslateBlankTextSkipsBackend(t *testing.T) {
	backend := &stubTranslator{result: "noise"}
	svc := newTestTranslation(backend)

	assert.Equal(t, "   ", svc.ToOperatorLanguage(context.Background(), "   ", "en"))
	assert.Zero(t, backend.calls)
}

func TestOperatorLanguage(t *testing.T) {
	svc := newTestTranslation(&stubTranslator{})
	assert.Equal(t, "tr", svc.OperatorLanguage())
}
