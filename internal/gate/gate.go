package gate

import (
	"strings"
	"unicode"
)

// Kind classifies an inbound message for the cost-control branch point.
type Kind string

const (
	// KindGreeting gets a canned reply on a fresh conversation: no
	// embedding, no search, no generation.
	KindGreeting Kind = "greeting"
	// KindAcknowledgement skips retrieval but still generates, so the
	// model can close the loop naturally ("thanks" → "you're welcome").
	KindAcknowledgement Kind = "acknowledgement"
	// KindSubstantive takes the full retrieve-then-generate path.
	KindSubstantive Kind = "substantive"
)

// Word caps keep the gate conservative: a long message containing "hi"
// somewhere is substantive. A false positive here only costs latency and
// money; a false negative degrades the answer, so ambiguity resolves to
// substantive.
const (
	greetingMaxWords        = 3
	acknowledgementMaxWords = 4
)

var defaultGreetingPatterns = []string{
	"hi", "hello", "hey", "greetings", "good morning", "good afternoon",
	"good evening", "hi there", "hello there", "hey there", "what's up",
	"howdy", "sup", "hiya", "morning", "afternoon", "evening",
}

var defaultAcknowledgementPatterns = []string{
	"thanks", "thank you", "thank", "ty", "thx", "appreciate it",
	"got it", "understood", "cool", "nice",
	"bye", "goodbye", "see you", "later", "have a good day",
}

// Gate is the relevance classifier that decides whether retrieval and
// generation are needed at all. It is a pure function over the message
// text; it never fails.
type Gate struct {
	greetings        []string
	acknowledgements []string
}

// New builds a gate with the default closed pattern sets.
func New() *Gate {
	return &Gate{
		greetings:        defaultGreetingPatterns,
		acknowledgements: defaultAcknowledgementPatterns,
	}
}

// NewWithPatterns overrides the pattern sets (for product policy tuning).
func NewWithPatterns(greetings, acknowledgements []string) *Gate {
	g := New()
	if greetings != nil {
		g.greetings = greetings
	}
	if acknowledgements != nil {
		g.acknowledgements = acknowledgements
	}
	return g
}

// Classify runs before any embedding is computed.
func (g *Gate) Classify(text string) Kind {
	words := tokenize(text)

	if len(words) <= greetingMaxWords && matchesAny(words, g.greetings) {
		return KindGreeting
	}
	if len(words) <= acknowledgementMaxWords && matchesAny(words, g.acknowledgements) {
		return KindAcknowledgement
	}
	return KindSubstantive
}

// NeedsRetrieval reports whether the message takes the embedding + search
// path.
func (g *Gate) NeedsRetrieval(text string) bool {
	return g.Classify(text) == KindSubstantive
}

// tokenize lowercases the message and strips edge punctuation per word,
// so "Hi!" matches the "hi" pattern but "shipping" never does.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
		})
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// matchesAny matches patterns against whole words only. A pattern like
// "good morning" must appear as that exact run of words; substrings inside
// a word ("warranty" containing "ty") never match.
func matchesAny(words []string, patterns []string) bool {
	if len(words) == 0 {
		return false
	}
	joined := " " + strings.Join(words, " ") + " "
	for _, p := range patterns {
		if strings.Contains(joined, " "+p+" ") {
			return true
		}
	}
	return false
}
