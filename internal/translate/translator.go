package translate

import (
	"context"
	"errors"
)

// ErrEmptyResult is returned when the backend answers but produced no
// usable translations.
var ErrEmptyResult = errors.New("translation backend returned no translations")

// Translator is the contract for machine translation backends. A single
// call covers every target language for one text, so the caller issues
// exactly one request per message regardless of participant count.
//
// Implementations may return a subset of the requested languages; callers
// must treat a partial result as valid.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang string, targetLangs []string) (map[string]string, error)
}
