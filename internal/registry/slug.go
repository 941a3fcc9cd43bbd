package registry

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	minSlugLen = 3
	maxSlugLen = 100
)

var (
	slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	nonSlug     = regexp.MustCompile(`[^a-z0-9]+`)
)

// ValidSlug reports whether s is a lowercase, hyphen separated, URL-safe slug.
func ValidSlug(s string) bool {
	return len(s) >= minSlugLen && len(s) <= maxSlugLen && slugPattern.MatchString(s)
}

// Slugify folds accents and collapses everything that is not a-z or 0-9
// into single hyphens. "Yoga für Anfänger" becomes "yoga-fur-anfanger".
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	s := nonSlug.ReplaceAllString(strings.ToLower(folded), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLen-7 {
		s = strings.TrimRight(s[:maxSlugLen-7], "-")
	}
	return s
}

// RegisterValidation adds the "slug" tag to v. Empty values pass so the tag
// can be combined with omitempty.
func RegisterValidation(v *validator.Validate) error {
	return v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == "" || ValidSlug(value)
	})
}
