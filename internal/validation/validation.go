package validation

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// ErrQueryEmpty is returned when the city query is empty or whitespace-only after trim.
var ErrQueryEmpty = errors.New("city query is required")

// ErrQueryTooShort is returned when the city query length is below the minimum.
var ErrQueryTooShort = errors.New("city query too short")

// ErrQueryTooLong is returned when the city query length exceeds the maximum.
var ErrQueryTooLong = errors.New("city query too long")

// ErrQueryInvalidChars is returned when the city query contains disallowed characters.
var ErrQueryInvalidChars = errors.New("city query contains invalid characters")

// ErrCoordMissing is returned when a latitude or longitude parameter is absent.
var ErrCoordMissing = errors.New("missing lat/lon")

// ErrCoordInvalid is returned when a coordinate does not parse as a number.
var ErrCoordInvalid = errors.New("lat/lon must be numeric")

// ErrCoordOutOfRange is returned when a coordinate is outside its valid range.
var ErrCoordOutOfRange = errors.New("lat/lon out of range")

// ValidateCityQuery trims the input, enforces length bounds (minLen, maxLen
// in runes), and restricts to allowed characters: letters (Unicode), space,
// period, apostrophe, hyphen. Returns the trimmed string or an error
// suitable for a 400 response. All checks run before any upstream call.
func ValidateCityQuery(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrQueryEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrQueryTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrQueryTooLong
	}
	for _, c := range r {
		if !isAllowedQueryRune(c) {
			return "", ErrQueryInvalidChars
		}
	}
	return s, nil
}

// isAllowedQueryRune returns true for letters (Unicode), space, period, apostrophe, hyphen.
func isAllowedQueryRune(r rune) bool {
	if unicode.IsLetter(r) {
		return true
	}
	switch r {
	case ' ', '.', '\'', '-':
		return true
	}
	return false
}

// ParseCoords parses latitude and longitude query parameters and checks
// their ranges ([-90, 90] and [-180, 180]).
func ParseCoords(latStr, lonStr string) (lat, lon float64, err error) {
	if strings.TrimSpace(latStr) == "" || strings.TrimSpace(lonStr) == "" {
		return 0, 0, ErrCoordMissing
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, ErrCoordInvalid
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, ErrCoordInvalid
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, ErrCoordOutOfRange
	}
	return lat, lon, nil
}
