package fraud

// Decide maps a risk score to the enforcement action. The thresholds
// happen to match the reporting-level bands today, but the two mappings
// are deliberately separate: policy owners tune enforcement and reporting
// independently.
func Decide(score int) Action {
	switch {
	case score >= 80:
		return ActionBlock
	case score >= 60:
		return ActionReview
	case score >= 40:
		return ActionChallenge
	default:
		return ActionAllow
	}
}
