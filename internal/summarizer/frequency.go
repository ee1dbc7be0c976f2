package summarizer

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"docqa/internal/domain"
)

var (
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// FrequencyModel is an extractive summary model: it ranks sentences by the
// normalized frequency of their non-stopword terms and keeps the best ones,
// in document order, until the word window is met.
type FrequencyModel struct {
	stopwords map[string]struct{}
}

// NewFrequencyModel returns the extractive model.
func NewFrequencyModel() *FrequencyModel {
	return &FrequencyModel{stopwords: defaultStopwords()}
}

func (m *FrequencyModel) Name() string { return "frequency" }

// Summarize is deterministic regardless of opts.Deterministic.
func (m *FrequencyModel) Summarize(ctx context.Context, text string, opts domain.SummaryOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return clampWords(strings.Fields(text), opts.MaxLength), nil
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range m.tokens(sent) {
			if _, stop := m.stopwords[tok]; !stop {
				freq[tok]++
			}
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, sent := range sentences {
		toks := m.tokens(sent)
		s := 0.0
		for _, tok := range toks {
			s += freq[tok]
		}
		if len(toks) > 0 {
			s /= math.Sqrt(float64(len(toks)))
		}
		ranked[i] = scored{i, s}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var picked []int
	words := 0
	for _, r := range ranked {
		if opts.MinLength > 0 && words >= opts.MinLength {
			break
		}
		if opts.MinLength <= 0 && len(picked) > 0 {
			break
		}
		picked = append(picked, r.idx)
		words += len(strings.Fields(sentences[r.idx]))
	}
	sort.Ints(picked)

	var out []string
	for _, idx := range picked {
		out = append(out, strings.Fields(sentences[idx])...)
	}
	if opts.MinLength > 0 && len(out) < opts.MinLength {
		// Sentences alone are too short; fall back to the leading words.
		out = strings.Fields(text)
	}
	return clampWords(out, opts.MaxLength), nil
}

func (m *FrequencyModel) tokens(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// clampWords joins at most max words; max <= 0 means no limit.
func clampWords(words []string, max int) string {
	if max > 0 && len(words) > max {
		words = words[:max]
	}
	return strings.Join(words, " ")
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
