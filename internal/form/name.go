package form

import (
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
)

// DefaultMaxNameLength bounds generated resource names.
const DefaultMaxNameLength = validation.DNS1123SubdomainMaxLength

var (
	invalidNameChars = regexp.MustCompile(`[^a-z0-9-]`)
	hyphenRuns       = regexp.MustCompile(`-+`)
	leadingDigit     = regexp.MustCompile(`^[0-9]`)
)

// Criteria tunes TranslateDisplayName.
type Criteria struct {
	MaxLength    int
	SafePrefix   string
	StaticPrefix bool
}

// TranslateDisplayName derives a resource name from a free-form display name.
// Blank input yields "".
func TranslateDisplayName(display string, c Criteria) string {
	if strings.TrimSpace(display) == "" {
		return ""
	}
	maxLength := c.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxNameLength
	}

	name := strings.ToLower(display)
	name = invalidNameChars.ReplaceAllString(name, "-")
	name = hyphenRuns.ReplaceAllString(name, "-")
	name = strings.TrimPrefix(name, "-")
	name = strings.TrimSuffix(name, "-")

	prefix := ""
	if c.SafePrefix != "" && (c.StaticPrefix || leadingDigit.MatchString(name)) {
		prefix = c.SafePrefix
	}

	if available := maxLength - len(prefix); len(name) > available {
		name = strings.TrimSuffix(name[:max(available, 0)], "-")
	}
	if name == "" {
		name = "unnamed"
	}
	return prefix + name
}

// NameField is the display name plus the resource name derived from it.
// Until the resource name is edited directly it follows the display name.
type NameField struct {
	Display      string
	Value        string
	MaxLength    int
	Regexp       *regexp.Regexp
	SafePrefix   string
	StaticPrefix bool
	Immutable    bool

	edited bool
}

// NewNameField builds a field whose resource name tracks display.
func NewNameField(display string) NameField {
	f := NameField{MaxLength: DefaultMaxNameLength}
	f.SetDisplay(display)
	return f
}

// SetDisplay updates the display name and, unless overridden, the resource name.
func (f *NameField) SetDisplay(display string) {
	f.Display = display
	if f.Immutable || f.edited {
		return
	}
	f.Value = TranslateDisplayName(display, f.criteria())
}

// SetValue overrides the resource name.
func (f *NameField) SetValue(value string) {
	if f.Immutable {
		return
	}
	f.Value = value
	f.edited = strings.TrimSpace(value) != ""
	if !f.edited {
		f.Value = TranslateDisplayName(f.Display, f.criteria())
	}
}

// InvalidLength reports a resource name over the maximum length.
func (f NameField) InvalidLength() bool {
	return len(f.Value) > f.maxLength()
}

// InvalidCharacters reports a resource name that fails the naming pattern.
func (f NameField) InvalidCharacters() bool {
	if f.Value == "" {
		return false
	}
	if f.Regexp != nil {
		return !f.Regexp.MatchString(f.Value)
	}
	if strings.Contains(f.Value, ".") {
		return true
	}
	return len(validation.IsDNS1123Subdomain(f.Value)) > 0 && !f.InvalidLength()
}

// Valid reports whether the field can be submitted.
func (f NameField) Valid() bool {
	return strings.TrimSpace(f.Display) != "" &&
		strings.TrimSpace(f.Value) != "" &&
		!f.InvalidLength() &&
		!f.InvalidCharacters()
}

// Problem returns a short message describing why the field is invalid.
func (f NameField) Problem() string {
	switch {
	case strings.TrimSpace(f.Display) == "":
		return "evaluation name is required"
	case strings.TrimSpace(f.Value) == "":
		return "resource name is required"
	case f.InvalidLength():
		return "resource name is too long"
	case f.InvalidCharacters():
		return "resource name must consist of lowercase alphanumerics and '-'"
	}
	return ""
}

func (f NameField) maxLength() int {
	if f.MaxLength > 0 {
		return f.MaxLength
	}
	return DefaultMaxNameLength
}

func (f NameField) criteria() Criteria {
	return Criteria{MaxLength: f.maxLength(), SafePrefix: f.SafePrefix, StaticPrefix: f.StaticPrefix}
}
