package domain

type TrustTier int

const (
	TierUntrusted TrustTier = iota
	TierEmerging
	TierEstablished
	TierTrusted
	TierElite
)

func (t TrustTier) String() string {
	switch t {
	case TierEmerging:
		return "emerging"
	case TierEstablished:
		return "established"
	case TierTrusted:
		return "trusted"
	case TierElite:
		return "elite"
	default:
		return "untrusted"
	}
}

// TierFor classifies an agent from its feedback count and truncated average.
// Branches are checked top-down and the first match wins, so an agent with 100
// feedbacks averaging 6 is Established, not Elite.
func TierFor(feedbackCount uint64, avgScore int64) TrustTier {
	switch {
	case feedbackCount < 10 || avgScore < 0:
		return TierUntrusted
	case feedbackCount >= 100 && avgScore >= 9:
		return TierElite
	case feedbackCount >= 50 && avgScore >= 7:
		return TierTrusted
	case feedbackCount >= 25 && avgScore >= 5:
		return TierEstablished
	case feedbackCount >= 10 && avgScore >= 0:
		return TierEmerging
	default:
		return TierUntrusted
	}
}
