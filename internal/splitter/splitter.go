// Package splitter breaks reply text into platform-sized pieces without
// cutting through code fences.
package splitter

import "strings"

const (
	// DefaultLimit is the per-message character budget. Discord caps messages
	// at 2000 characters; replies are broken at 1500 to leave headroom for
	// markdown the platform may expand.
	DefaultLimit = 1500

	// DefaultFence is the markdown code-fence marker.
	DefaultFence = "```"
)

// Split breaks text into pieces of at most limit characters. Fenced spans are
// split on line boundaries and re-wrapped with the fence marker on both ends
// so every emitted piece is a well-formed code block. Prose is split at
// newline or space boundaries, falling back to a hard cut when a single run
// has no boundary within reach. Concatenating the pieces (ignoring re-inserted
// fence markers) reproduces the input. Empty input yields no pieces.
func Split(text string, limit int, fence string) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if fence == "" {
		fence = DefaultFence
	}
	if !strings.Contains(text, fence) {
		return splitProse(text, limit)
	}

	// Alternating occurrences of the marker delimit prose and fenced spans;
	// odd-indexed spans are fenced.
	var out []string
	for i, span := range strings.Split(text, fence) {
		if i%2 == 1 {
			out = append(out, splitFenced(span, limit, fence)...)
		} else {
			out = append(out, splitProse(span, limit)...)
		}
	}
	return out
}

func splitProse(s string, limit int) []string {
	if s == "" {
		return nil
	}
	if len(s) <= limit {
		return []string{s}
	}

	boundary := ""
	for _, b := range []string{"\n", " "} {
		if strings.Contains(s, b) {
			boundary = b
			break
		}
	}
	if boundary == "" {
		return hardCut(nil, s, limit)
	}

	var out []string
	current := ""
	for _, token := range strings.SplitAfter(s, boundary) {
		if len(token) > limit {
			if current != "" {
				out = append(out, current)
				current = ""
			}
			out = hardCut(out, token, limit)
			continue
		}
		if current != "" && len(current)+len(token) > limit {
			out = append(out, current)
			current = ""
		}
		current += token
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

func splitFenced(s string, limit int, fence string) []string {
	if len(fence)+len(s)+len(fence) <= limit {
		return []string{fence + s + fence}
	}

	// Budget for content once the fence is re-closed at the end of each piece
	// and re-opened at the start of the next.
	budget := limit - 2*len(fence)
	if budget < 1 {
		budget = 1
	}

	var out []string
	current := ""
	for _, line := range strings.SplitAfter(s, "\n") {
		if len(line) > budget {
			if current != "" {
				out = append(out, fence+current+fence)
				current = ""
			}
			for len(line) > budget {
				out = append(out, fence+line[:budget]+fence)
				line = line[budget:]
			}
		}
		if current != "" && len(current)+len(line) > budget {
			out = append(out, fence+current+fence)
			current = ""
		}
		current += line
	}
	if current != "" {
		out = append(out, fence+current+fence)
	}
	return out
}

func hardCut(out []string, s string, limit int) []string {
	for len(s) > limit {
		out = append(out, s[:limit])
		s = s[limit:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
