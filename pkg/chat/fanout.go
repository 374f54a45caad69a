package chat

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// FanoutResolver computes the distinct set of languages a message must be
// translated into: every participant's preferred language minus the
// sender's. An empty result means translation is skipped entirely.
type FanoutResolver struct {
	source ParticipantSource
}

func NewFanoutResolver(source ParticipantSource) *FanoutResolver {
	return &FanoutResolver{source: source}
}

// ResolveTargetLanguages returns the target languages sorted for a stable
// request order. Lookup failures wrap ErrDependencyUnavailable.
func (r *FanoutResolver) ResolveTargetLanguages(ctx context.Context, conversationID uuid.UUID, sourceLang string) ([]string, error) {
	participants, err := r.source.ParticipantLanguages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}

	seen := make(map[string]struct{}, len(participants))
	var targets []string
	for _, p := range participants {
		if p.Language == "" || p.Language == sourceLang {
			continue
		}
		if _, ok := seen[p.Language]; ok {
			continue
		}
		seen[p.Language] = struct{}{}
		targets = append(targets, p.Language)
	}

	sort.Strings(targets)
	return targets, nil
}
