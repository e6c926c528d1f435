// Package mathspan scans rendered assistant text for LaTeX math spans and
// produces an ordered sequence of text and formula segments.
package mathspan

import (
	"context"
	"regexp"
	"strings"
)

// Kind discriminates the segment variants.
type Kind string

const (
	KindText    Kind = "text"
	KindFormula Kind = "formula"
)

// Segment is one extracted span, in left-to-right source order.
type Segment struct {
	Kind    Kind
	Text    string // KindText: verbatim source text
	Formula string // KindFormula: cleaned formula body
}

// Rasterizer renders a LaTeX formula body to a transparent-background PNG.
type Rasterizer interface {
	Render(ctx context.Context, formula string) ([]byte, error)
}

// Display math is delimited by \[ ... \], inline math by \( ... \). Models
// sometimes emit the backslash doubled, so both forms are accepted. Matching
// is non-greedy; display spans may cross lines, inline spans may not.
var (
	displayPattern = regexp.MustCompile(`(?s)\\{1,2}\[(.+?)\\{1,2}\]`)
	inlinePattern  = regexp.MustCompile(`\\{1,2}\((.+?)\\{1,2}\)`)
)

// Extractor splits text into text and formula segments.
type Extractor struct {
	// InlineMath also extracts \( ... \) spans, scanned per line. Display
	// math is always extracted.
	InlineMath bool
}

// Extract returns the ordered segments of text. Text with no math delimiters
// comes back as a single text segment equal to the input; empty input yields
// no segments.
func (e *Extractor) Extract(text string) []Segment {
	if text == "" {
		return nil
	}
	segs := extractPattern([]Segment{{Kind: KindText, Text: text}}, displayPattern)
	if e != nil && e.InlineMath {
		segs = extractInline(segs)
	}
	return segs
}

// extractPattern runs the work-stack pass: pop a pending text span, find the
// first match, and push the trailing remainder, the formula, and the leading
// remainder in reverse emission order so the stack yields them forward.
func extractPattern(pending []Segment, pattern *regexp.Regexp) []Segment {
	var out []Segment
	stack := make([]Segment, 0, len(pending))
	for i := len(pending) - 1; i >= 0; i-- {
		stack = append(stack, pending[i])
	}
	for len(stack) > 0 {
		seg := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seg.Kind != KindText {
			out = append(out, seg)
			continue
		}
		loc := pattern.FindStringSubmatchIndex(seg.Text)
		if loc == nil {
			if seg.Text != "" {
				out = append(out, seg)
			}
			continue
		}
		lead := seg.Text[:loc[0]]
		body := seg.Text[loc[2]:loc[3]]
		trail := seg.Text[loc[1]:]
		if trail != "" {
			stack = append(stack, Segment{Kind: KindText, Text: trail})
		}
		stack = append(stack, Segment{Kind: KindFormula, Formula: cleanFormula(body)})
		if lead != "" {
			stack = append(stack, Segment{Kind: KindText, Text: lead})
		}
	}
	return out
}

// extractInline re-scans text segments line by line so an inline span never
// crosses a newline.
func extractInline(segs []Segment) []Segment {
	var out []Segment
	for _, seg := range segs {
		if seg.Kind != KindText {
			out = append(out, seg)
			continue
		}
		var pending []Segment
		for _, line := range strings.SplitAfter(seg.Text, "\n") {
			if line == "" {
				continue
			}
			pending = append(pending, Segment{Kind: KindText, Text: line})
		}
		out = append(out, extractPattern(pending, inlinePattern)...)
	}
	return mergeAdjacentText(out)
}

func mergeAdjacentText(segs []Segment) []Segment {
	var out []Segment
	for _, seg := range segs {
		if seg.Kind == KindText && len(out) > 0 && out[len(out)-1].Kind == KindText {
			out[len(out)-1].Text += seg.Text
			continue
		}
		out = append(out, seg)
	}
	return out
}

// cleanFormula drops control characters the model may have embedded in the
// formula body and trims surrounding whitespace.
func cleanFormula(body string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, body)
	return strings.TrimSpace(cleaned)
}
