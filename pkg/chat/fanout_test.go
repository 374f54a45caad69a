package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiwa-chat/kaiwa/internal/domain"
)

func TestResolveTargetLanguages(t *testing.T) {
	tests := []struct {
		name       string
		languages  []string
		sourceLang string
		want       []string
	}{
		{
			name:       "dedupes and excludes source",
			languages:  []string{"en", "en", "ja", "zh"},
			sourceLang: "en",
			want:       []string{"ja", "zh"},
		},
		{
			name:       "all share source language",
			languages:  []string{"ja", "ja"},
			sourceLang: "ja",
			want:       nil,
		},
		{
			name:       "skips empty preference",
			languages:  []string{"", "ko"},
			sourceLang: "ja",
			want:       []string{"ko"},
		},
		{
			name:       "sorted output",
			languages:  []string{"zh", "en", "ko"},
			sourceLang: "ja",
			want:       []string{"en", "ko", "zh"},
		},
		{
			name:       "empty conversation",
			languages:  nil,
			sourceLang: "ja",
			want:       nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var members []domain.ParticipantLanguage
			for _, lang := range tt.languages {
				members = append(members, participant(lang))
			}
			resolver := NewFanoutResolver(&fakeParticipants{languages: members})

			got, err := resolver.ResolveTargetLanguages(context.Background(), uuid.New(), tt.sourceLang)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveTargetLanguagesWrapsLookupFailure(t *testing.T) {
	resolver := NewFanoutResolver(&fakeParticipants{err: errors.New("timeout")})

	_, err := resolver.ResolveTargetLanguages(context.Background(), uuid.New(), "ja")
	assert.ErrorIs(t, err, ErrDependencyUnavailable)
}
