package matcher

import (
	"strings"
	"unicode"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Corporate suffixes stripped during vendor normalization. Multi-word
// suffixes must come before their single-word prefixes so the longest
// form is removed.
var corporateSuffixes = []string{
	"SP Z O O",
	"SP Z OO",
	"CO LTD",
	"PTY LTD",
	"INC",
	"LLC",
	"LTD",
	"GMBH",
	"CORP",
	"PLC",
	"SA",
	"BV",
	"AG",
	"CO",
}

// NormalizeVendor uppercases a merchant name, strips punctuation and
// collapses whitespace, then drops trailing corporate suffixes so that
// "Acme, Inc." and "ACME" compare equal.
func NormalizeVendor(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	normalized := strings.Join(strings.Fields(b.String()), " ")

	for changed := true; changed; {
		changed = false
		for _, suffix := range corporateSuffixes {
			if normalized == suffix {
				continue // never strip the whole name
			}
			if strings.HasSuffix(normalized, " "+suffix) {
				normalized = strings.TrimSpace(strings.TrimSuffix(normalized, suffix))
				changed = true
			}
		}
	}
	return normalized
}

// VendorSimilarity returns a similarity score in [0,1] between two merchant
// strings. Returns 0 when either side normalizes to empty. The score is the
// better of whole-string Jaro-Winkler and token-level levenshtein ratio, so
// both "AMZN Mktp" vs "Amazon Marketplace" word reordering and small typos
// score reasonably.
func VendorSimilarity(a, b string) float64 {
	na, nb := NormalizeVendor(a), NormalizeVendor(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	score := jaroWinkler(na, nb)
	if tokens := tokenSimilarity(na, nb); tokens > score {
		score = tokens
	}
	return score
}

// tokenSimilarity averages, over the tokens of the shorter name, the best
// levenshtein ratio against any token of the other name.
func tokenSimilarity(a, b string) float64 {
	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) > len(tb) {
		ta, tb = tb, ta
	}

	total := 0.0
	for _, x := range ta {
		best := 0.0
		for _, y := range tb {
			r := levenshtein.RatioForStrings([]rune(x), []rune(y), levenshtein.DefaultOptions)
			if r > best {
				best = r
			}
		}
		total += best
	}
	return total / float64(len(ta))
}

// jaroWinkler computes the Jaro-Winkler similarity of two strings.
func jaroWinkler(a, b string) float64 {
	jaro := jaroSimilarity([]rune(a), []rune(b))
	if jaro == 0 {
		return 0
	}

	// Common prefix bonus, capped at 4 runes.
	prefix := 0
	ra, rb := []rune(a), []rune(b)
	for prefix < len(ra) && prefix < len(rb) && prefix < 4 && ra[prefix] == rb[prefix] {
		prefix++
	}

	return jaro + 0.1*float64(prefix)*(1-jaro)
}

func jaroSimilarity(a, b []rune) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	window := max(len(a), len(b))/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, len(a))
	bMatched := make([]bool, len(b))
	matches := 0

	for i := range a {
		lo := max(0, i-window)
		hi := min(len(b), i+window+1)
		for j := lo; j < hi; j++ {
			if bMatched[j] || a[i] != b[j] {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	// Count transpositions between matched runes.
	transpositions := 0
	j := 0
	for i := range a {
		if !aMatched[i] {
			continue
		}
		for !bMatched[j] {
			j++
		}
		if a[i] != b[j] {
			transpositions++
		}
		j++
	}

	m := float64(matches)
	t := float64(transpositions) / 2
	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3
}
