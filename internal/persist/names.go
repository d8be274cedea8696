package persist

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	minNameLen = 2
	maxNameLen = 16
)

var (
	accountCaser = cases.Lower(language.Und)
	nameFolder   = cases.Fold()
)

// NormalizeAccountName trims and lower-cases an account name. Account names
// are case-insensitive.
func NormalizeAccountName(name string) (string, error) {
	name = accountCaser.String(strings.TrimSpace(name))
	if err := checkName(name, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
	}); err != nil {
		return "", err
	}
	return name, nil
}

// NormalizeCharacterName validates a character name and returns the display
// form together with the case-folded key used for uniqueness.
func NormalizeCharacterName(name string) (display, key string, err error) {
	display = strings.TrimSpace(name)
	if err := checkName(display, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}); err != nil {
		return "", "", err
	}
	return display, nameFolder.String(display), nil
}

func checkName(name string, allowed func(rune) bool) error {
	n := utf8.RuneCountInString(name)
	if n < minNameLen || n > maxNameLen {
		return fmt.Errorf("%w: length %d not in [%d,%d]", ErrInvalidName, n, minNameLen, maxNameLen)
	}
	for _, r := range name {
		if !allowed(r) {
			return fmt.Errorf("%w: character %q", ErrInvalidName, r)
		}
	}
	return nil
}
