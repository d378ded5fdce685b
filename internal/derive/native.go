package derive

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kailas-cloud/esmap/internal/domain"
)

var placeholderRe = regexp.MustCompile(`\?(\d+)`)

// RenderNative substitutes positional ?0, ?1, ... placeholders in a native
// query template with JSON-encoded argument values. Every argument must be
// consumed and every placeholder bound.
func RenderNative(template string, args ...any) (string, error) {
	seen := make(map[int]bool)
	var renderErr error

	out := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		idx, err := strconv.Atoi(match[1:])
		if err != nil || idx >= len(args) {
			if renderErr == nil {
				renderErr = fmt.Errorf("%w: placeholder %s has no argument", domain.ErrInvalidQueryMethod, match)
			}
			return match
		}
		seen[idx] = true
		return encodeArg(args[idx])
	})
	if renderErr != nil {
		return "", renderErr
	}
	for i := range args {
		if !seen[i] {
			return "", fmt.Errorf("%w: argument %d is never referenced by the template", domain.ErrInvalidQueryMethod, i)
		}
	}
	return out, nil
}

// encodeArg renders an argument for interpolation into a JSON query body.
// Strings are JSON-quoted with the surrounding quotes stripped so templates
// keep control of their own quoting.
func encodeArg(arg any) string {
	b, err := json.Marshal(arg)
	if err != nil {
		return fmt.Sprintf("%v", arg)
	}
	s := string(b)
	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}
