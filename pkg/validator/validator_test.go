package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRegister(t *testing.T) {
	t.Run("valid input", func(t *testing.T) {
		errs := ValidateRegister("yuki@example.com", "yuki", "Yuki", "Password1", "ja")
		assert.False(t, errs.HasErrors())
	})

	t.Run("invalid email", func(t *testing.T) {
		errs := ValidateRegister("not-an-email", "yuki", "Yuki", "Password1", "ja")
		assert.Contains(t, errs, "email")
	})

	t.Run("short username", func(t *testing.T) {
		errs := ValidateRegister("yuki@example.com", "yu", "Yuki", "Password1", "ja")
		assert.Contains(t, errs, "username")
	})

	t.Run("username with invalid characters", func(t *testing.T) {
		errs := ValidateRegister("yuki@example.com", "yu ki!", "Yuki", "Password1", "ja")
		assert.Contains(t, errs, "username")
	})

	t.Run("unsupported language", func(t *testing.T) {
		errs := ValidateRegister("yuki@example.com", "yuki", "Yuki", "Password1", "xx")
		assert.Contains(t, errs, "preferred_language")
	})

	t.Run("missing language", func(t *testing.T) {
		errs := ValidateRegister("yuki@example.com", "yuki", "Yuki", "Password1", "")
		assert.Contains(t, errs, "preferred_language")
	})

	t.Run("weak password", func(t *testing.T) {
		errs := ValidateRegister("yuki@example.com", "yuki", "Yuki", "password", "ja")
		assert.Contains(t, errs, "password")
	})
}

func TestValidateMessage(t *testing.T) {
	url := "https://cdn.example.com/photo.jpg"

	t.Run("valid text message", func(t *testing.T) {
		errs := ValidateMessage("text", "こんにちは", nil, "ja")
		assert.False(t, errs.HasErrors())
	})

	t.Run("empty text", func(t *testing.T) {
		errs := ValidateMessage("text", "   ", nil, "ja")
		assert.Contains(t, errs, "content")
	})

	t.Run("text over the length cap", func(t *testing.T) {
		errs := ValidateMessage("text", strings.Repeat("あ", 2001), nil, "ja")
		assert.Contains(t, errs, "content")
	})

	t.Run("text at the length cap", func(t *testing.T) {
		errs := ValidateMessage("text", strings.Repeat("あ", 2000), nil, "ja")
		assert.False(t, errs.HasErrors())
	})

	t.Run("text message with media", func(t *testing.T) {
		errs := ValidateMessage("text", "hi", &url, "en")
		assert.Contains(t, errs, "media_url")
	})

	t.Run("valid image message", func(t *testing.T) {
		errs := ValidateMessage("image", "", &url, "en")
		assert.False(t, errs.HasErrors())
	})

	t.Run("image without media", func(t *testing.T) {
		errs := ValidateMessage("image", "", nil, "en")
		assert.Contains(t, errs, "media_url")
	})

	t.Run("image with text", func(t *testing.T) {
		errs := ValidateMessage("image", "caption", &url, "en")
		assert.Contains(t, errs, "content")
	})

	t.Run("unknown kind", func(t *testing.T) {
		errs := ValidateMessage("video", "", &url, "en")
		assert.Contains(t, errs, "kind")
	})

	t.Run("unsupported source language", func(t *testing.T) {
		errs := ValidateMessage("text", "hi", nil, "xx")
		assert.Contains(t, errs, "source_language")
	})
}
