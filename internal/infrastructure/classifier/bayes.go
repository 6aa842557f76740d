// Package classifier scores candidate records for relevance with a
// multinomial naive-bayes model over bag-of-words features of title and
// excerpt. Until a first model is trained, a keyword-rule model (version 0)
// keeps predictions meaningful. New models are published with an atomic
// pointer swap so in-flight scoring always sees one consistent version.
package classifier

import (
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"unicode"

	"NewsCrawler/internal/domain"
	"NewsCrawler/internal/metrics"
	"NewsCrawler/internal/ports"
)

// Confidence levels reported by the rule model and the degraded path.
const (
	ruleTitleProb   = 0.9
	ruleExcerptProb = 0.65
	ruleMissProb    = 0.1
	degradedProb    = 0.5
)

// Bayes is the stateful, versioned scoring function.
type Bayes struct {
	active atomic.Pointer[model]
	logger *slog.Logger
}

var _ ports.Classifier = (*Bayes)(nil)

type model struct {
	version     int64
	classTotals [2]int
	tokenCounts [2]map[string]int
	tokenTotals [2]int
	vocab       map[string]struct{}
}

// New returns a classifier at version 0 (untrained rule model).
func New(logger *slog.Logger) *Bayes {
	return &Bayes{logger: logger}
}

// ModelVersion reports the version of the active model; 0 means untrained.
func (b *Bayes) ModelVersion() int64 {
	if m := b.active.Load(); m != nil {
		return m.version
	}
	return 0
}

// Score returns (label, probability of label 1) for a record. It never
// fails: a record with no extractable features yields the conservative
// default label 1 with probability 0.5, logged as a degraded score.
func (b *Bayes) Score(rec domain.CandidateRecord, keywords []string) (int, float64) {
	tokens := Tokenize(rec.Title + "\n" + rec.Excerpt)
	if len(tokens) == 0 {
		if b.logger != nil {
			b.logger.Warn("degraded score: no extractable features", "url", rec.URL)
		}
		metrics.ObserveDegradedScore()
		return 1, degradedProb
	}

	m := b.active.Load()
	if m == nil {
		return ruleScore(rec, keywords)
	}
	return m.score(tokens)
}

// Train fits a fresh model on the corpus and publishes it atomically,
// bumping the version. Examples with empty text are skipped. Training with
// examples of a single class is allowed; the smoothed posterior keeps
// probabilities inside (0, 1).
func (b *Bayes) Train(corpus []domain.TrainingExample) int64 {
	next := &model{
		tokenCounts: [2]map[string]int{{}, {}},
		vocab:       map[string]struct{}{},
	}

	for _, example := range corpus {
		tokens := Tokenize(example.Text)
		if len(tokens) == 0 {
			continue
		}
		label := example.Label
		if label != 1 {
			label = 0
		}
		next.classTotals[label]++
		for _, tok := range tokens {
			next.tokenCounts[label][tok]++
			next.tokenTotals[label]++
			next.vocab[tok] = struct{}{}
		}
	}

	if prev := b.active.Load(); prev != nil {
		next.version = prev.version + 1
	} else {
		next.version = 1
	}

	b.active.Store(next)
	if b.logger != nil {
		b.logger.Info("model published",
			"version", next.version,
			"examples", next.classTotals[0]+next.classTotals[1],
			"vocab", len(next.vocab))
	}
	return next.version
}

func (m *model) score(tokens []string) (int, float64) {
	total := m.classTotals[0] + m.classTotals[1]
	if total == 0 {
		return 1, degradedProb
	}

	vocabSize := len(m.vocab)
	var logPosterior [2]float64
	for label := 0; label < 2; label++ {
		// Laplace-smoothed class prior and token likelihoods.
		logPosterior[label] = math.Log(float64(m.classTotals[label]+1) / float64(total+2))
		for _, tok := range tokens {
			count := m.tokenCounts[label][tok]
			logPosterior[label] += math.Log(float64(count+1) / float64(m.tokenTotals[label]+vocabSize+1))
		}
	}

	// Convert the two log posteriors into P(label=1).
	maxLog := math.Max(logPosterior[0], logPosterior[1])
	p0 := math.Exp(logPosterior[0] - maxLog)
	p1 := math.Exp(logPosterior[1] - maxLog)
	prob := p1 / (p0 + p1)

	if prob >= 0.5 {
		return 1, prob
	}
	return 0, prob
}

// ruleScore is model version 0: a keyword hit in the title is a strong
// relevance signal, a hit in the excerpt a weak one.
func ruleScore(rec domain.CandidateRecord, keywords []string) (int, float64) {
	title := strings.ToLower(rec.Title)
	excerpt := strings.ToLower(rec.Excerpt)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(title, kw) {
			return 1, ruleTitleProb
		}
		if strings.Contains(excerpt, kw) {
			return 1, ruleExcerptProb
		}
	}
	return 0, ruleMissProb
}

// Tokenize splits text into lowercase letter/digit runs; runs of Han
// characters are additionally emitted rune by rune so Chinese text yields
// usable features.
func Tokenize(text string) []string {
	var tokens []string
	var current []rune

	flush := func() {
		if len(current) == 0 {
			return
		}
		run := string(current)
		current = current[:0]

		hasHan := false
		for _, r := range run {
			if unicode.Is(unicode.Han, r) {
				hasHan = true
				break
			}
		}
		if hasHan {
			for _, r := range run {
				tokens = append(tokens, string(r))
			}
			return
		}
		tokens = append(tokens, run)
	}

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current = append(current, r)
			continue
		}
		flush()
	}
	flush()

	return tokens
}
