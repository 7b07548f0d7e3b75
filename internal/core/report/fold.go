package report

import (
	"strings"
	"sync"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// CRLF collapses to a single space before the rune fold runs
var crlf = strings.NewReplacer("\r\n", " ")

// one mapper per goroutine; transformers carry state
var foldPool = sync.Pool{
	New: func() any { return runes.Map(foldBreak) },
}

func foldBreak(r rune) rune {
	switch r {
	case '\n', '\r', '\u0085', '\u2028', '\u2029':
		return ' '
	}
	return r
}

// FoldLines replaces line breaks in s with single spaces. Every other rune,
// tabs and combining marks included, is left as is.
func FoldLines(s string) string {
	if !hasBreak(s) {
		return s
	}
	s = crlf.Replace(s)
	tr := foldPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	foldPool.Put(tr)
	if err != nil {
		return s
	}
	return out
}

func hasBreak(s string) bool {
	return strings.ContainsAny(s, "\n\r\u0085\u2028\u2029")
}
