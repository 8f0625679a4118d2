package fraud

import "math"

// Score aggregates triggered signals into a 0-100 risk assessment.
//
// The score is base weight sum x severity multiplier x count multiplier,
// rounded and capped at 100. It is a function only of the multiset of
// (weight, severity) pairs — signal order never changes the result. An
// empty signal list scores 0 at level minimal with both multipliers 1.0.
func Score(signals []Signal) RiskAssessment {
	breakdown := Breakdown{
		SeverityMultiplier: 1.0,
		CountMultiplier:    1.0,
		Categories:         categorize(signals),
	}

	if len(signals) == 0 {
		return RiskAssessment{Score: 0, Level: LevelMinimal, Breakdown: breakdown}
	}

	var base, highs, mediums int
	for _, s := range signals {
		base += s.Weight
		switch s.Severity {
		case SeverityHigh:
			highs++
		case SeverityMedium:
			mediums++
		}
	}

	breakdown.BaseScore = base
	breakdown.SeverityMultiplier = severityMultiplier(highs, mediums)
	breakdown.CountMultiplier = countMultiplier(len(signals))

	score := int(math.Round(float64(base) * breakdown.SeverityMultiplier * breakdown.CountMultiplier))
	if score > 100 {
		score = 100
	}

	return RiskAssessment{Score: score, Level: LevelFor(score), Breakdown: breakdown}
}

// severityMultiplier amplifies the base score when high- or
// medium-severity signals cluster.
func severityMultiplier(highs, mediums int) float64 {
	switch {
	case highs >= 3:
		return 1.5
	case highs >= 2:
		return 1.3
	case highs >= 1:
		return 1.2
	case mediums >= 3:
		return 1.15
	default:
		return 1.0
	}
}

// countMultiplier amplifies the base score as the total signal count grows.
func countMultiplier(n int) float64 {
	switch {
	case n >= 10:
		return 1.5
	case n >= 7:
		return 1.3
	case n >= 5:
		return 1.2
	case n >= 3:
		return 1.1
	default:
		return 1.0
	}
}

// LevelFor maps a score to its reporting bucket.
func LevelFor(score int) RiskLevel {
	switch {
	case score >= 80:
		return LevelCritical
	case score >= 60:
		return LevelHigh
	case score >= 40:
		return LevelMedium
	case score >= 20:
		return LevelLow
	default:
		return LevelMinimal
	}
}

// categorize groups signals by category for the explainability breakdown.
func categorize(signals []Signal) map[Category]CategorySubtotal {
	categories := make(map[Category]CategorySubtotal)
	for _, s := range signals {
		sub := categories[s.Category]
		sub.Count++
		sub.WeightSubtotal += s.Weight
		sub.RuleIDs = append(sub.RuleIDs, s.ID)
		categories[s.Category] = sub
	}
	return categories
}
