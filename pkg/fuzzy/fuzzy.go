package fuzzy

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Fields are the parts of a message a query is matched against.
type Fields struct {
	Subject  string
	FromName string
	From     string
	Snippet  string
}

// LevenshteinDistance returns the edit distance between two normalized strings.
func LevenshteinDistance(s1, s2 string) int {
	r1 := []rune(normalize(s1))
	r2 := []rune(normalize(s2))
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	// two rows are enough
	prev := make([]int, len(r2)+1)
	cur := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		cur[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(r2)]
}

// Threshold is the typo tolerance for a query of the given length.
func Threshold(query string) int {
	n := len([]rune(query))
	switch {
	case n <= 3:
		return 1
	case n >= 8:
		return 3
	}
	return 2
}

// Match reports whether text contains the query, a word prefixed by it, or a word
// within threshold edits of it.
func Match(query, text string, threshold int) bool {
	query = normalize(query)
	text = normalize(text)
	if query == "" {
		return true
	}
	if strings.Contains(text, query) {
		return true
	}
	for _, word := range strings.Fields(text) {
		if strings.HasPrefix(word, query) || LevenshteinDistance(query, word) <= threshold {
			return true
		}
	}
	return false
}

// MatchMessage checks the subject, sender and the first 500 runes of the snippet.
func MatchMessage(query string, f Fields) bool {
	threshold := Threshold(query)
	snippet := []rune(f.Snippet)
	if len(snippet) > 500 {
		snippet = snippet[:500]
	}
	for _, text := range []string{f.Subject, f.FromName, f.From, string(snippet)} {
		if text != "" && Match(query, text, threshold) {
			return true
		}
	}
	return false
}

type weights struct {
	contains, word, near, prefix float64
	perEdit                      float64
}

var (
	subjectWeights = weights{contains: 100, word: 50, near: 50, prefix: 40, perEdit: 15}
	nameWeights    = weights{contains: 80, word: 30, near: 40, prefix: 35, perEdit: 12}
)

// Score ranks a message against a query. Subject hits weigh most, then the sender
// name, then the address.
func Score(query string, f Fields) float64 {
	query = normalize(query)
	if query == "" {
		return 0
	}

	score := scoreText(query, normalize(f.Subject), subjectWeights) +
		scoreText(query, normalize(f.FromName), nameWeights)

	addr := normalize(f.From)
	switch {
	case strings.Contains(addr, query):
		score += 60
	case strings.HasPrefix(localPart(addr), query):
		score += 30
	}
	return score
}

func scoreText(query, text string, w weights) float64 {
	if strings.Contains(text, query) {
		if hasWord(text, query) {
			return w.contains + w.word
		}
		return w.contains
	}

	var score float64
	for _, word := range strings.Fields(text) {
		if d := LevenshteinDistance(query, word); d <= 2 {
			score += w.near - float64(d)*w.perEdit
		}
		if strings.HasPrefix(word, query) {
			score += w.prefix
		}
	}
	return score
}

// normalize lowercases, folds diacritics and collapses whitespace.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(strings.ToLower(s)) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if r == 'đ' {
			r = 'd'
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func hasWord(text, word string) bool {
	for _, w := range strings.Fields(text) {
		if w == word {
			return true
		}
	}
	return false
}

func localPart(addr string) string {
	if i := strings.Index(addr, "@"); i > 0 {
		return addr[:i]
	}
	return addr
}
