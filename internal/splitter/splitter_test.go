package splitter

import (
	"strings"
	"testing"
)

func TestSplitShortTextIsIdentity(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"hello", "line one\nline two", strings.Repeat("a", 1500)} {
		got := Split(text, 1500, "```")
		if len(got) != 1 {
			t.Fatalf("pieces mismatch: got %d want 1", len(got))
		}
		if got[0] != text {
			t.Fatalf("piece mismatch: got %q want %q", got[0], text)
		}
	}
}

func TestSplitEmptyTextYieldsNoPieces(t *testing.T) {
	t.Parallel()

	if got := Split("", 1500, "```"); len(got) != 0 {
		t.Fatalf("pieces mismatch: got %d want 0", len(got))
	}
}

func TestSplitProseRoundTrip(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < 400; i++ {
		b.WriteString("word")
		if i%17 == 0 {
			b.WriteString("\n")
		} else {
			b.WriteString(" ")
		}
	}
	text := b.String()

	pieces := Split(text, 120, "```")
	if len(pieces) < 2 {
		t.Fatalf("pieces mismatch: got %d want >= 2", len(pieces))
	}
	for i, p := range pieces {
		if len(p) > 120 {
			t.Fatalf("piece %d too long: %d > 120", i, len(p))
		}
		if p == "" {
			t.Fatalf("piece %d is empty", i)
		}
	}
	if joined := strings.Join(pieces, ""); joined != text {
		t.Fatalf("round trip mismatch:\ngot  %q\nwant %q", joined, text)
	}
}

func TestSplitHardCutsOverlongWord(t *testing.T) {
	t.Parallel()

	word := strings.Repeat("x", 250)
	pieces := Split(word, 100, "```")
	if len(pieces) != 3 {
		t.Fatalf("pieces mismatch: got %d want 3", len(pieces))
	}
	for i, p := range pieces[:2] {
		if len(p) != 100 {
			t.Fatalf("piece %d length mismatch: got %d want 100", i, len(p))
		}
	}
	if joined := strings.Join(pieces, ""); joined != word {
		t.Fatalf("round trip mismatch: got %q", joined)
	}
}

func TestSplitFencedBlockRoundTrip(t *testing.T) {
	t.Parallel()

	var lines []string
	for i := 0; i < 60; i++ {
		lines = append(lines, "func line() { return "+strings.Repeat("y", 10)+" }")
	}
	content := "\n" + strings.Join(lines, "\n") + "\n"
	text := "```" + content + "```"

	pieces := Split(text, 200, "```")
	if len(pieces) < 2 {
		t.Fatalf("pieces mismatch: got %d want >= 2", len(pieces))
	}

	var rebuilt strings.Builder
	for i, p := range pieces {
		if len(p) > 200 {
			t.Fatalf("piece %d too long: %d > 200", i, len(p))
		}
		if !strings.HasPrefix(p, "```") || !strings.HasSuffix(p, "```") {
			t.Fatalf("piece %d is not fence-wrapped: %q", i, p)
		}
		if n := strings.Count(p, "```"); n != 2 {
			t.Fatalf("piece %d fence count mismatch: got %d want 2", i, n)
		}
		rebuilt.WriteString(strings.TrimSuffix(strings.TrimPrefix(p, "```"), "```"))
	}
	if rebuilt.String() != content {
		t.Fatalf("fenced round trip mismatch:\ngot  %q\nwant %q", rebuilt.String(), content)
	}
}

func TestSplitMixedProseAndFence(t *testing.T) {
	t.Parallel()

	text := "before the code\n```\nx := 1\n```\nafter the code"
	pieces := Split(text, 1500, "```")
	if len(pieces) != 3 {
		t.Fatalf("pieces mismatch: got %d want 3: %q", len(pieces), pieces)
	}
	if pieces[0] != "before the code\n" {
		t.Fatalf("prose piece mismatch: got %q", pieces[0])
	}
	if pieces[1] != "```\nx := 1\n```" {
		t.Fatalf("fenced piece mismatch: got %q", pieces[1])
	}
	if pieces[2] != "\nafter the code" {
		t.Fatalf("trailing prose mismatch: got %q", pieces[2])
	}
}

func TestSplitSmallFencedBlockStaysWhole(t *testing.T) {
	t.Parallel()

	pieces := Split("```\nx := 1\n```", 1500, "```")
	if len(pieces) != 1 {
		t.Fatalf("pieces mismatch: got %d want 1", len(pieces))
	}
	if pieces[0] != "```\nx := 1\n```" {
		t.Fatalf("piece mismatch: got %q", pieces[0])
	}
}
