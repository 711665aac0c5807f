package domain

// BlockDecision is the outcome of evaluating a slug against the block-list.
type BlockDecision struct {
	Blocked     bool
	MatchedSlug string
	Source      string
}

// IsBlocked is a convenience accessor.
func (d BlockDecision) IsBlocked() bool { return d.Blocked }

// EmptyDecision returns a not-blocked decision.
func EmptyDecision() BlockDecision { return BlockDecision{} }
