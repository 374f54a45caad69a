package validator

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"github.com/kaiwa-chat/kaiwa/internal/domain"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func ValidateRegister(email, username, displayName, password, language string) ValidationErrors {
	errs := make(ValidationErrors)

	// Email
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}

	// Username
	username = strings.TrimSpace(username)
	if username == "" {
		errs.Add("username", "Username is required")
	} else if len(username) < 3 {
		errs.Add("username", "Username must be at least 3 characters")
	} else if len(username) > 50 {
		errs.Add("username", "Username is too long")
	} else if !usernameRegex.MatchString(username) {
		errs.Add("username", "Username can only contain letters, numbers, _ and -")
	}

	// Display name
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		errs.Add("display_name", "Display name is required")
	} else if len(displayName) > 100 {
		errs.Add("display_name", "Display name is too long")
	}

	// Preferred language
	if language == "" {
		errs.Add("preferred_language", "Preferred language is required")
	} else if !domain.IsSupportedLanguage(language) {
		errs.Add("preferred_language", "Unsupported language code")
	}

	// Password
	validatePassword(password, errs)

	return errs
}

// ValidateMessage checks a client-built message: exactly one of content or
// media reference must be present for its kind, and text must fit the
// length cap.
func ValidateMessage(kind, content string, mediaURL *string, sourceLang string) ValidationErrors {
	errs := make(ValidationErrors)

	switch kind {
	case domain.MessageKindText, domain.MessageKindSystem:
		if strings.TrimSpace(content) == "" {
			errs.Add("content", "Message text is required")
		} else if len([]rune(content)) > domain.MaxMessageLength {
			errs.Add("content", fmt.Sprintf("Message text must be at most %d characters", domain.MaxMessageLength))
		}
		if mediaURL != nil {
			errs.Add("media_url", "Text messages cannot carry media")
		}
	case domain.MessageKindImage:
		if mediaURL == nil || strings.TrimSpace(*mediaURL) == "" {
			errs.Add("media_url", "Image messages require a media reference")
		}
		if strings.TrimSpace(content) != "" {
			errs.Add("content", "Image messages cannot carry text")
		}
	default:
		errs.Add("kind", "Message kind must be text, image, or system")
	}

	if sourceLang == "" {
		errs.Add("source_language", "Source language is required")
	} else if !domain.IsSupportedLanguage(sourceLang) {
		errs.Add("source_language", "Unsupported language code")
	}

	return errs
}

func validatePassword(password string, errs ValidationErrors) {
	if len(password) < 8 {
		errs.Add("password", "Password must be at least 8 characters")
		return
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	missing := []string{}
	if !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "one number")
	}

	if len(missing) > 0 {
		errs.Add("password", fmt.Sprintf("Password must contain at least %s", strings.Join(missing, ", ")))
	}
}
