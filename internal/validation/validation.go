package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrPlaceEmpty is returned when the place is empty or whitespace-only after trim.
	ErrPlaceEmpty = errors.New("place is required")
	// ErrPlaceTooShort is returned when the place length is below the minimum.
	ErrPlaceTooShort = errors.New("place too short")
	// ErrPlaceTooLong is returned when the place length exceeds the maximum.
	ErrPlaceTooLong = errors.New("place too long")
	// ErrPlaceInvalidChars is returned when the place contains control or other
	// non-printable characters.
	ErrPlaceInvalidChars = errors.New("place contains invalid characters")
	// ErrUnknownKind is returned for a recommendation kind outside walk/photo/sea/hotplace.
	ErrUnknownKind = errors.New("unknown recommendation kind")
)

var validate = validator.New()

// kindRule lists the recommendation kinds served under /api/naver-{kind}.
const kindRule = "required,oneof=walk photo sea hotplace"

// ValidatePlace trims the input, enforces length bounds (minLen, maxLen in runes)
// and rejects control and other non-printable runes. Punctuation such as
// "해운대(미포)" or "B&B" passes through to the search query. Returns the
// trimmed string or an error suitable for a 400 response.
func ValidatePlace(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrPlaceEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrPlaceTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrPlaceTooLong
	}
	for _, c := range r {
		if !isAllowedPlaceRune(c) {
			return "", ErrPlaceInvalidChars
		}
	}
	return s, nil
}

// ValidateKind checks a recommendation kind path segment.
func ValidateKind(kind string) error {
	if err := validate.Var(kind, kindRule); err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return nil
}

// isAllowedPlaceRune accepts graphic runes and the ASCII space.
func isAllowedPlaceRune(r rune) bool {
	return unicode.IsPrint(r)
}
