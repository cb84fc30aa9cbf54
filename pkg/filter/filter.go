// Package filter implements tag filters, the filter expression language and
// sort comparators used by library queries.
package filter

import (
	"fmt"
	"regexp"

	"github.com/papercomputeco/jukebox/pkg/tagkey"
)

// Tags is anything that carries tag values, typically a song's metadata.
type Tags interface {
	Get(key tagkey.Key) (string, bool)
}

// Filter decides whether a set of tags matches.
type Filter interface {
	Matches(t Tags) bool
}

// SyntaxError reports a malformed filter, expression or comparator.
type SyntaxError struct {
	Msg string
}

func (e SyntaxError) Error() string {
	return "syntax error: " + e.Msg
}

func syntaxErrorf(format string, args ...any) error {
	return SyntaxError{Msg: fmt.Sprintf(format, args...)}
}

// Regex matches a tag value against a regular expression.
// Songs without the tag never match, whether or not the filter is inverted.
type Regex struct {
	Tag      tagkey.Key
	Inverted bool
	re       *regexp.Regexp
}

// NewRegex builds a regex filter on the named tag.
func NewRegex(tag, pattern string, inverted bool) (*Regex, error) {
	key, err := tagkey.Parse(tag)
	if err != nil {
		return nil, err
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, syntaxErrorf("invalid regex %q: %v", pattern, err)
	}

	return &Regex{Tag: key, Inverted: inverted, re: re}, nil
}

// Matches implements Filter.
func (f *Regex) Matches(t Tags) bool {
	value, ok := t.Get(f.Tag)
	if !ok {
		return false
	}
	return f.re.MatchString(value) != f.Inverted
}

// Pattern returns the source of the regular expression.
func (f *Regex) Pattern() string {
	return f.re.String()
}
