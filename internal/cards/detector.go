package cards

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/tesoro-app/tesoro/internal/textnorm"
)

const (
	// defaultThreshold is the minimum partial-ratio score (0–100) for a
	// fuzzy card match.
	defaultThreshold = 75

	// blockRatioThreshold is the minimum longest-common-block ratio
	// (0.0–1.0) used when the fuzzy scorer is disabled.
	blockRatioThreshold = 0.7
)

// Scorer computes a similarity score in [0, 100] between a card's match text
// and a transcript. Both inputs arrive already normalised.
type Scorer func(cardText, transcript string) int

// Option is a functional option for configuring a [Detector].
type Option func(*Detector)

// WithThreshold sets the minimum fuzzy score (0–100) required to count a
// card as used. Default: 75.
func WithThreshold(threshold int) Option {
	return func(d *Detector) {
		d.threshold = threshold
	}
}

// WithScorer replaces the default Levenshtein-based partial-ratio scorer.
// Passing nil disables fuzzy scoring entirely; the detector then falls back
// to a longest-common-block ratio with a fixed 0.7 cutoff.
func WithScorer(s Scorer) Option {
	return func(d *Detector) {
		d.scorer = s
		d.scorerSet = true
	}
}

// Detector decides which cards appear in a transcript. It is read-only
// after construction and safe for concurrent use.
//
// Matching proceeds per card: exact normalised substring first, then the
// fuzzy scorer against the threshold, then (only when no scorer is
// configured) the block-ratio fallback.
type Detector struct {
	threshold int
	scorer    Scorer
	scorerSet bool
}

// NewDetector returns a [Detector] configured with the supplied options.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{threshold: defaultThreshold}
	for _, o := range opts {
		o(d)
	}
	if !d.scorerSet {
		d.scorer = PartialRatio
	}
	return d
}

// DetectUsed returns the ids of all cards whose match text appears in
// transcript, sorted and deduplicated. Cards with empty match text are
// skipped. An empty transcript matches nothing.
func (d *Detector) DetectUsed(transcript string, active []Card) []string {
	normTranscript := textnorm.Normalize(transcript)
	if normTranscript == "" {
		return nil
	}

	seen := make(map[string]struct{}, len(active))
	var used []string
	mark := func(id string) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		used = append(used, id)
	}

	for _, c := range active {
		target := textnorm.Normalize(c.MatchText())
		if target == "" {
			continue
		}

		if strings.Contains(normTranscript, target) {
			mark(c.ID)
			continue
		}

		if d.scorer != nil {
			if d.scorer(target, normTranscript) >= d.threshold {
				mark(c.ID)
			}
			continue
		}

		if blockRatio(target, normTranscript) > blockRatioThreshold {
			mark(c.ID)
		}
	}

	sort.Strings(used)
	return used
}

// PartialRatio is the default fuzzy scorer: the best Levenshtein similarity
// between the shorter string and any equal-length window of the longer one,
// scaled to [0, 100]. Equivalent in spirit to rapidfuzz's partial_ratio.
func PartialRatio(a, b string) int {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}

	best := 0
	for i := 0; i+len(short) <= len(long); i++ {
		window := string(long[i : i+len(short)])
		dist := matchr.Levenshtein(string(short), window)
		score := 100 * (len(short) - dist) / len(short)
		if score > best {
			best = score
		}
		if best == 100 {
			break
		}
	}
	return best
}

// blockRatio is the degraded similarity used when no fuzzy scorer is
// available: twice the length of the longest common contiguous block over
// the combined length, as in difflib's SequenceMatcher.ratio for a single
// block.
func blockRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	block := longestCommonBlock(a, b)
	return 2 * float64(block) / float64(len(a)+len(b))
}

// longestCommonBlock returns the byte length of the longest common
// contiguous substring of a and b.
func longestCommonBlock(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return best
}
