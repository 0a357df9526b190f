// Package search provides a small, deterministic, concurrency-safe in-memory
// index of short facts loaded from Markdown. Toys use it to answer children's
// questions from a curated fact sheet before falling back to a model.
//
//   - No logging in the library (callers decide how/what to log)
//   - Markdown headings become the topic of the facts below them
//   - Table rows are flattened into one fact per row
//   - Unicode case folding with a default stop-word list for questions
//   - Immutable after construction (safe for concurrent use)
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring uses Jaccard similarity between the question token set and each
// fact's token set: score = |Q ∩ F| / |Q ∪ F|.
package search

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Fact is one answerable statement and the heading it was filed under.
type Fact struct {
	Topic string
	Text  string
}

// Result is a ranked fact with its similarity score.
type Result struct {
	Fact
	Score float64
}

// Index is the minimal interface implemented by fact indices.
type Index interface {
	TopK(question string, k int) []Result
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minFactRunes int
	stopwords    map[string]struct{}
	maxFacts     int
}

// DefaultStopwords are question words that carry no topic.
var DefaultStopwords = []string{
	"a", "an", "and", "are", "can", "do", "does", "how", "i", "in", "is", "it",
	"of", "on", "or", "the", "to", "what", "when", "where", "which", "who",
	"why", "you",
}

func defaultConfig() config {
	c := config{minFactRunes: 10}
	WithStopwords(DefaultStopwords)(&c)
	return c
}

// WithMinFactRunes drops facts shorter than n runes. Negative n is ignored.
func WithMinFactRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minFactRunes = n
		}
	}
}

// WithStopwords replaces the stop-word list. An empty list disables removal.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			if w = fold(strings.TrimSpace(w)); w != "" {
				m[w] = struct{}{}
			}
		}
		c.stopwords = m
	}
}

// WithMaxFacts caps the number of indexed facts.
func WithMaxFacts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxFacts = n
		}
	}
}

// ----------------------------------------------------------------------------
// Construction

type entry struct {
	fact   Fact
	tokens map[string]struct{}
}

type index struct {
	cfg     config
	entries []entry
}

// NewIndexFromMarkdown reads the fact sheet at path.
func NewIndexFromMarkdown(path string, opts ...Option) (Index, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewIndexFromReader(bytes.NewReader(b), opts...)
}

// NewIndexFromReader parses Markdown from r. The reader is fully consumed.
func NewIndexFromReader(r io.Reader, opts ...Option) (Index, error) {
	facts, err := ParseFacts(r)
	if err != nil {
		return nil, err
	}
	return NewIndex(facts, opts...), nil
}

// NewIndex builds an Index from already parsed facts.
func NewIndex(facts []Fact, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	idx := &index{cfg: cfg, entries: make([]entry, 0, len(facts))}
	for _, f := range facts {
		f.Text = strings.TrimSpace(normalizeWhitespace(f.Text))
		if f.Text == "" || utf8.RuneCountInString(f.Text) < cfg.minFactRunes {
			continue
		}
		toks := tokenize(f.Topic+" "+f.Text, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		idx.entries = append(idx.entries, entry{fact: f, tokens: toks})
		if cfg.maxFacts > 0 && len(idx.entries) >= cfg.maxFacts {
			break
		}
	}
	return idx
}

var headingRE = regexp.MustCompile(`^#{1,6}\s+(.*)$`)

// ParseFacts splits Markdown into facts. Headings set the topic, every other
// non-empty line is a fact, and table rows are joined cell by cell (separator
// rows are skipped).
func ParseFacts(r io.Reader) ([]Fact, error) {
	var (
		out   []Fact
		topic string
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if m := headingRE.FindStringSubmatch(line); m != nil {
			topic = strings.TrimSpace(m[1])
			continue
		}
		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			if text := tableRow(line); text != "" {
				out = append(out, Fact{Topic: topic, Text: text})
			}
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(line, "-*"))
		if line != "" {
			out = append(out, Fact{Topic: topic, Text: line})
		}
	}
	return out, sc.Err()
}

// tableRow joins the non-empty cells of "| a | b |". Separator rows yield "".
func tableRow(line string) string {
	cells := strings.Split(strings.Trim(line, "|"), "|")
	kept := make([]string, 0, len(cells))
	sep := true
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if strings.Trim(c, ":- ") != "" {
			sep = false
		}
		if c != "" {
			kept = append(kept, c)
		}
	}
	if sep {
		return ""
	}
	return strings.Join(kept, " ")
}

// ----------------------------------------------------------------------------
// Query

// Len returns the number of indexed facts.
func (i *index) Len() int { return len(i.entries) }

// TopK returns up to k best-matching facts by Jaccard similarity. k <= 0
// means 3.
func (i *index) TopK(question string, k int) []Result {
	if len(i.entries) == 0 || strings.TrimSpace(question) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	q := tokenize(question, i.cfg.stopwords)
	if len(q) == 0 {
		return nil
	}

	out := make([]Result, 0, k)
	for _, e := range i.entries {
		over := overlap(q, e.tokens)
		if over == 0 {
			continue
		}
		score := float64(over) / float64(len(q)+len(e.tokens)-over)
		out = append(out, Result{Fact: e.fact, Score: score})
	}

	// Ties: shorter fact first, then lexical.
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		la, lb := utf8.RuneCountInString(out[a].Text), utf8.RuneCountInString(out[b].Text)
		if la != lb {
			return la < lb
		}
		return out[a].Text < out[b].Text
	})
	if k < len(out) {
		out = out[:k]
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

func fold(s string) string { return cases.Fold().String(s) }

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
