package gate

import "testing"

func TestClassify(t *testing.T) {
	g := New()

	cases := []struct {
		text string
		want Kind
	}{
		{"hi", KindGreeting},
		{"Hello there!", KindGreeting},
		{"good morning", KindGreeting},
		{"HEY", KindGreeting},
		{"thanks", KindAcknowledgement},
		{"thank you so much", KindAcknowledgement},
		{"bye", KindAcknowledgement},
		{"got it", KindAcknowledgement},
		{"What is your return policy?", KindSubstantive},
		{"hi, I have a question about my order", KindSubstantive},
		{"thanks, but where is my refund", KindSubstantive},
		// Pattern text buried inside a word must not match.
		{"shipping times?", KindSubstantive},
		{"warranty?", KindSubstantive},
		{"which size?", KindSubstantive},
		{"this thing broke", KindSubstantive},
		// Ambiguous one-worders stay on the retrieval path by default.
		{"ok", KindSubstantive},
		{"okay", KindSubstantive},
		{"", KindSubstantive},
		{"   ", KindSubstantive},
	}

	for _, tc := range cases {
		if got := g.Classify(tc.text); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestNeedsRetrievalIsConservative(t *testing.T) {
	g := New()

	// A greeting token buried in a long question must not short-circuit.
	long := "hello, I bought a jacket last week and it arrived damaged, what do I do"
	if !g.NeedsRetrieval(long) {
		t.Fatalf("NeedsRetrieval(%q) = false, want true", long)
	}

	if g.NeedsRetrieval("hi") {
		t.Fatalf("NeedsRetrieval(\"hi\") = true, want false")
	}
}

func TestMatchesAnyWholeWordsOnly(t *testing.T) {
	patterns := []string{"hi", "good morning"}

	if matchesAny(tokenize("shipping"), patterns) {
		t.Fatalf("substring inside a word must not match")
	}
	if !matchesAny(tokenize("hi!"), patterns) {
		t.Fatalf("trailing punctuation should not block a whole-word match")
	}
	if !matchesAny(tokenize("good morning everyone"), patterns) {
		t.Fatalf("multi-word pattern should match as a run of words")
	}
	if matchesAny(tokenize("morning good"), patterns) {
		t.Fatalf("multi-word pattern must match in order")
	}
	if matchesAny(nil, patterns) {
		t.Fatalf("empty input must never match")
	}
}

func TestNewWithPatternsOverrides(t *testing.T) {
	g := NewWithPatterns([]string{"ciao"}, nil)

	if g.Classify("ciao") != KindGreeting {
		t.Fatalf("custom greeting pattern not applied")
	}
	if g.Classify("hi") == KindGreeting {
		t.Fatalf("default greeting patterns should be replaced")
	}
	if g.Classify("thanks") != KindAcknowledgement {
		t.Fatalf("nil acknowledgements should keep defaults")
	}
}
