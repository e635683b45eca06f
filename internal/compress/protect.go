package compress

import (
	"fmt"
	"regexp"
	"strings"
)

// Protected content (fenced code, inline code, quoted literals) must come
// out of compression byte-identical at every level. It is swapped for
// placeholders before any transform runs and restored afterwards.
var (
	fencedPattern = regexp.MustCompile("(?s)```.*?```")
	inlinePattern = regexp.MustCompile("`[^`\n]+`")
	quotePattern  = regexp.MustCompile(`"[^"\n]*"`)
)

type protectedText struct {
	text     string
	segments []string
}

func placeholder(i int) string {
	return fmt.Sprintf("\x00%d\x00", i)
}

// protect extracts protected segments and substitutes placeholders. The
// placeholder alphabet (NUL + digits) survives every transform untouched.
func protect(text string) *protectedText {
	p := &protectedText{}
	swap := func(pattern *regexp.Regexp, s string) string {
		return pattern.ReplaceAllStringFunc(s, func(segment string) string {
			p.segments = append(p.segments, segment)
			return placeholder(len(p.segments) - 1)
		})
	}
	out := swap(fencedPattern, text)
	out = swap(inlinePattern, out)
	out = swap(quotePattern, out)
	p.text = out
	return p
}

// restore puts the original segments back.
func (p *protectedText) restore(text string) string {
	for i := len(p.segments) - 1; i >= 0; i-- {
		text = strings.ReplaceAll(text, placeholder(i), p.segments[i])
	}
	return text
}
