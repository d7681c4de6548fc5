package matcher

// Disposition is the classifier's routing decision for a scored candidate.
type Disposition int

const (
	// DispositionNone means no match is created; both records stay
	// unmatched and eligible for future runs.
	DispositionNone Disposition = iota
	// DispositionReview routes the candidate to a human reviewer.
	DispositionReview
	// DispositionAutoApprove finalizes the match immediately.
	DispositionAutoApprove
)

// Classify applies the configured thresholds to a confidence score.
func (c Config) Classify(confidence float64) Disposition {
	switch {
	case confidence >= c.AutoApproveThreshold:
		return DispositionAutoApprove
	case confidence >= c.ReviewThreshold:
		return DispositionReview
	default:
		return DispositionNone
	}
}

// Status returns the initial match status for a disposition. The second
// return is false when no match should be created at all.
func (d Disposition) Status() (MatchStatus, bool) {
	switch d {
	case DispositionAutoApprove:
		return StatusAutoApproved, true
	case DispositionReview:
		return StatusManualReview, true
	default:
		return "", false
	}
}
