package runner

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/aliquot/pkg/domain"
)

// MaxTextSize bounds operator text in bytes: comments, pause messages and
// confirmation answers. ALIQUOT_MAX_TEXT_SIZE overrides it.
var MaxTextSize = 4096

const envMaxTextSize = "ALIQUOT_MAX_TEXT_SIZE"

var (
	ErrTextTooLong = fmt.Errorf("%w: text too long", domain.ErrInvalidArgument)
	ErrInvalidUTF8 = fmt.Errorf("%w: text is not valid UTF-8", domain.ErrInvalidArgument)
)

// SanitizeInput returns text fit for the run log and the operator's
// terminal. Oversized or malformed text is rejected, never truncated.
// Control characters other than newline and tab are dropped, so escape
// sequences cannot restyle the terminal.
func SanitizeInput(text string) (string, error) {
	if limit := textLimit(); len(text) > limit {
		return "", fmt.Errorf("%w (%d bytes, limit %d)", ErrTextTooLong, len(text), limit)
	}
	if !utf8.ValidString(text) {
		return "", ErrInvalidUTF8
	}
	if strings.IndexFunc(text, unsafeRune) < 0 {
		return text, nil
	}
	return strings.Map(func(r rune) rune {
		if unsafeRune(r) {
			return -1
		}
		return r
	}, text), nil
}

func unsafeRune(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t'
}

func textLimit() int {
	if v, err := strconv.Atoi(os.Getenv(envMaxTextSize)); err == nil && v > 0 {
		return v
	}
	return MaxTextSize
}
