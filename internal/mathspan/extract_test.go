package mathspan

import "testing"

func TestExtractNoDelimiters(t *testing.T) {
	t.Parallel()

	e := &Extractor{}
	text := "just a plain sentence with no math"
	segs := e.Extract(text)
	if len(segs) != 1 {
		t.Fatalf("segments mismatch: got %d want 1", len(segs))
	}
	if segs[0].Kind != KindText || segs[0].Text != text {
		t.Fatalf("segment mismatch: got %+v", segs[0])
	}
}

func TestExtractEmptyText(t *testing.T) {
	t.Parallel()

	e := &Extractor{}
	if segs := e.Extract(""); len(segs) != 0 {
		t.Fatalf("segments mismatch: got %d want 0", len(segs))
	}
}

func TestExtractDisplayMath(t *testing.T) {
	t.Parallel()

	e := &Extractor{}
	segs := e.Extract(`a \[x^2\] b`)
	want := []Segment{
		{Kind: KindText, Text: "a "},
		{Kind: KindFormula, Formula: "x^2"},
		{Kind: KindText, Text: " b"},
	}
	if len(segs) != len(want) {
		t.Fatalf("segments mismatch: got %d want %d: %+v", len(segs), len(want), segs)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Fatalf("segment %d mismatch: got %+v want %+v", i, segs[i], want[i])
		}
	}
}

func TestExtractMultipleDisplaySpansKeepOrder(t *testing.T) {
	t.Parallel()

	e := &Extractor{}
	segs := e.Extract(`first \[a+b\] middle \[c-d\] last`)
	want := []Segment{
		{Kind: KindText, Text: "first "},
		{Kind: KindFormula, Formula: "a+b"},
		{Kind: KindText, Text: " middle "},
		{Kind: KindFormula, Formula: "c-d"},
		{Kind: KindText, Text: " last"},
	}
	if len(segs) != len(want) {
		t.Fatalf("segments mismatch: got %d want %d: %+v", len(segs), len(want), segs)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Fatalf("segment %d mismatch: got %+v want %+v", i, segs[i], want[i])
		}
	}
}

func TestExtractDoubledBackslashDelimiters(t *testing.T) {
	t.Parallel()

	e := &Extractor{}
	segs := e.Extract(`a \\[x^2\\] b`)
	if len(segs) != 3 {
		t.Fatalf("segments mismatch: got %d want 3: %+v", len(segs), segs)
	}
	if segs[1].Kind != KindFormula || segs[1].Formula != "x^2" {
		t.Fatalf("formula mismatch: got %+v", segs[1])
	}
}

func TestExtractStripsControlCharactersFromFormula(t *testing.T) {
	t.Parallel()

	e := &Extractor{}
	segs := e.Extract("\\[\n  \\frac{a}{b}\n\\]")
	if len(segs) != 1 {
		t.Fatalf("segments mismatch: got %d want 1: %+v", len(segs), segs)
	}
	if segs[0].Formula != `\frac{a}{b}` {
		t.Fatalf("formula mismatch: got %q", segs[0].Formula)
	}
}

func TestExtractInlineMathDisabledByDefault(t *testing.T) {
	t.Parallel()

	e := &Extractor{}
	text := `value \(y\) stays text`
	segs := e.Extract(text)
	if len(segs) != 1 || segs[0].Kind != KindText || segs[0].Text != text {
		t.Fatalf("segments mismatch: got %+v", segs)
	}
}

func TestExtractInlineMathEnabled(t *testing.T) {
	t.Parallel()

	e := &Extractor{InlineMath: true}
	segs := e.Extract(`value \(y\) here`)
	want := []Segment{
		{Kind: KindText, Text: "value "},
		{Kind: KindFormula, Formula: "y"},
		{Kind: KindText, Text: " here"},
	}
	if len(segs) != len(want) {
		t.Fatalf("segments mismatch: got %d want %d: %+v", len(segs), len(want), segs)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Fatalf("segment %d mismatch: got %+v want %+v", i, segs[i], want[i])
		}
	}
}

func TestExtractInlineMathIsLineScoped(t *testing.T) {
	t.Parallel()

	e := &Extractor{InlineMath: true}
	text := "open \\(a\nb\\) close"
	segs := e.Extract(text)
	if len(segs) != 1 || segs[0].Kind != KindText || segs[0].Text != text {
		t.Fatalf("segments mismatch: got %+v", segs)
	}
}
