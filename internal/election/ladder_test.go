package election

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegalRung(t *testing.T) {
	t.Run("accepts every adjacent pair for every branch", func(t *testing.T) {
		adjacent := [][2]Rank{
			{RankFamily, RankArban},
			{RankArban, RankZun},
			{RankZun, RankMyangan},
			{RankMyangan, RankTumen},
			{RankTumen, RankRepublic},
			{RankRepublic, RankConfederation},
		}
		branches := []Branch{BranchExecutive, BranchLegislative, BranchJudicial, BranchBanking}

		count := 0
		for _, pair := range adjacent {
			for _, branch := range branches {
				rung := Rung{From: pair[0], To: pair[1], Branch: branch}
				assert.True(t, LegalRung(rung), "expected %s -> %s (%s) to be legal", pair[0], pair[1], branch)
				count++
			}
		}
		assert.Equal(t, 24, count)
	})

	t.Run("rejects skipped ranks", func(t *testing.T) {
		assert.False(t, LegalRung(Rung{From: RankFamily, To: RankZun, Branch: BranchExecutive}))
		assert.False(t, LegalRung(Rung{From: RankArban, To: RankTumen, Branch: BranchJudicial}))
	})

	t.Run("rejects downward rungs", func(t *testing.T) {
		assert.False(t, LegalRung(Rung{From: RankZun, To: RankArban, Branch: BranchExecutive}))
		assert.False(t, LegalRung(Rung{From: RankConfederation, To: RankRepublic, Branch: BranchBanking}))
	})

	t.Run("rejects self rungs", func(t *testing.T) {
		assert.False(t, LegalRung(Rung{From: RankTumen, To: RankTumen, Branch: BranchExecutive}))
	})

	t.Run("rejects unknown branch", func(t *testing.T) {
		assert.False(t, LegalRung(Rung{From: RankFamily, To: RankArban, Branch: Branch("SPIRITUAL")}))
	})
}

func TestParseRank(t *testing.T) {
	rank, err := ParseRank("MYANGAN")
	require.NoError(t, err)
	assert.Equal(t, RankMyangan, rank)

	_, err = ParseRank("DUCHY")
	require.Error(t, err)

	_, err = ParseRank("")
	require.Error(t, err)
}

func TestParseBranch(t *testing.T) {
	branch, err := ParseBranch("BANKING")
	require.NoError(t, err)
	assert.Equal(t, BranchBanking, branch)

	_, err = ParseBranch("NAVAL")
	require.Error(t, err)
}
