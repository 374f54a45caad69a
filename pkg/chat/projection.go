package chat

import "github.com/kaiwa-chat/kaiwa/internal/domain"

// Projection is the text a viewer actually sees for one message.
// SecondaryText, when non-empty, is the original shown under a translation.
type Projection struct {
	PrimaryText   string
	SecondaryText string
}

// Project maps a message and the viewer's preferred language to displayed
// text. The rule is identical for sender and recipients:
//
//   - same language as the source: original only, even if translations exist
//   - translation available: translation primary, original secondary
//   - no translation (pending or skipped): original only
//
// Non-text kinds carry no translatable text, so content passes through.
func Project(msg *domain.Message, viewerLang string) Projection {
	if msg.Kind != domain.MessageKindText {
		return Projection{PrimaryText: msg.Content}
	}

	if msg.SourceLanguage == viewerLang {
		return Projection{PrimaryText: msg.Content}
	}

	if translated, ok := msg.TranslationFor(viewerLang); ok {
		return Projection{PrimaryText: translated, SecondaryText: msg.Content}
	}

	return Projection{PrimaryText: msg.Content}
}
