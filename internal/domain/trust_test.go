package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTierForBranches(t *testing.T) {
	cases := []struct {
		name  string
		count uint64
		avg   int64
		want  TrustTier
	}{
		{"no feedback", 0, 0, TierUntrusted},
		{"below minimum count", 9, 10, TierUntrusted},
		{"negative average", 500, -1, TierUntrusted},
		{"emerging at ten", 10, 0, TierEmerging},
		{"emerging with low average", 40, 4, TierEmerging},
		{"established", 25, 5, TierEstablished},
		{"trusted", 50, 7, TierTrusted},
		{"elite", 100, 9, TierElite},
		{"hundred at six is established", 100, 6, TierEstablished},
		{"hundred at eight is trusted", 100, 8, TierTrusted},
		{"forty nine at ten is established", 49, 10, TierEstablished},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, TierFor(tc.count, tc.avg))
		})
	}
}

func TestTierMonotonicInCount(t *testing.T) {
	for _, avg := range []int64{0, 5, 7, 9, 10} {
		prev := TierUntrusted
		for count := uint64(0); count <= 200; count++ {
			tier := TierFor(count, avg)
			require.GreaterOrEqual(t, tier, prev, "count=%d avg=%d", count, avg)
			prev = tier
		}
	}
}

func TestAverageTruncates(t *testing.T) {
	require.Equal(t, int64(8), ReputationState{TotalScore: 24, FeedbackCount: 3}.AverageScore())
	require.Equal(t, int64(7), ReputationState{TotalScore: 23, FeedbackCount: 3}.AverageScore())
	require.Equal(t, int64(6), ReputationState{TotalScore: 19, FeedbackCount: 3}.AverageScore())
	require.Equal(t, int64(-1), ReputationState{TotalScore: -5, FeedbackCount: 3}.AverageScore())
	require.Equal(t, int64(0), ReputationState{}.AverageScore())
}

func TestSummaryOf(t *testing.T) {
	s := SummaryOf(ReputationState{AgentID: 4, TotalScore: 30, FeedbackCount: 10})
	require.Equal(t, int64(3), s.AverageScore)
	require.Equal(t, TierEmerging, s.TrustTier)
	require.Equal(t, "emerging", s.TierName)
}
