package errors

import (
	"net/url"
	"strings"
	"unicode"
)

// ValidateSource checks that submitted source text is worth sending to the
// analysis backend. Empty and whitespace-only text is rejected.
func ValidateSource(code string) error {
	if strings.TrimSpace(code) == "" {
		return New(ErrCodeInvalidInput, "source text cannot be empty")
	}
	return nil
}

// ValidateURL validates a backend base URL.
// It ensures the URL has a safe scheme (http or https) and a host.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid URL %q", rawURL)
	}
	if u.Host == "" {
		return New(ErrCodeInvalidInput, "URL %q has no host", rawURL)
	}

	return nil
}

// ValidateSurfaceID validates the name of a render surface.
//
// Surface ids end up in export filenames and URL paths, so the rules are
// conservative:
//   - No empty ids
//   - Maximum length of 64 characters
//   - Letters, digits, '-', '_' and '.' only
//   - No path traversal sequences
func ValidateSurfaceID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "surface id cannot be empty")
	}
	if len(id) > 64 {
		return New(ErrCodeInvalidInput, "surface id too long (max 64 characters)")
	}
	if strings.Contains(id, "..") {
		return New(ErrCodeInvalidInput, "surface id cannot contain path traversal sequences (..)")
	}
	for _, r := range id {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			continue
		}
		return New(ErrCodeInvalidInput, "surface id contains invalid character %q", r)
	}
	return nil
}
