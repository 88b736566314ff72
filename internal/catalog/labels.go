package catalog

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/face-sorter/internal/materialize"
)

// removeDiacritics strips combining marks from a string (e.g. "Jiří" -> "Jiri").
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeLabel turns user input into the canonical label form: trimmed,
// diacritics removed, inner whitespace collapsed to underscores.
func NormalizeLabel(label string) string {
	label = strings.TrimSpace(removeDiacritics(label))
	return strings.Join(strings.Fields(label), "_")
}

// ValidateLabel rejects labels that cannot serve as a directory name under
// the output tree or would shadow a reserved directory.
func ValidateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("%w: label is empty", ErrInvalidLabel)
	}
	if label == materialize.UnclusteredDir || label == materialize.NoFacesDir {
		return fmt.Errorf("%w: %q is a reserved directory name", ErrInvalidLabel, label)
	}
	if strings.ContainsAny(label, `/\`) || label == "." || label == ".." {
		return fmt.Errorf("%w: %q is not a valid directory name", ErrInvalidLabel, label)
	}
	return nil
}
