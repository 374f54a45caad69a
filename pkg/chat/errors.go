package chat

import "errors"

var (
	// ErrValidation rejects empty or oversized message text before any I/O.
	ErrValidation = errors.New("invalid message text")

	// ErrPersist means the store insert failed. The optimistic local entry
	// is kept so the caller can offer a retry.
	ErrPersist = errors.New("message persist failed")

	// ErrDependencyUnavailable means participant languages could not be
	// read. The pipeline degrades to untranslated delivery.
	ErrDependencyUnavailable = errors.New("participant languages unavailable")

	// ErrTranslationFailed covers backend errors, timeouts and malformed
	// responses. Never surfaced to the sender; the message stays delivered.
	ErrTranslationFailed = errors.New("translation failed")

	// ErrUnknownMessage is returned by RetryTranslation for an id the
	// pipeline has never seen.
	ErrUnknownMessage = errors.New("unknown message id")

	// ErrConflict is returned by a MessageStore insert when the id already
	// exists. The pipeline treats it as success: the client-assigned id
	// makes a retried insert indistinguishable from a delivered one.
	ErrConflict = errors.New("message id already exists")
)
