package database

import (
	"testing"

	modelspkg "estatehub/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesLedgerAndReceipts(t *testing.T) {
	var hasVote, hasReads bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.Vote:
			hasVote = true
		case *modelspkg.MessageRead:
			hasReads = true
		}
	}
	require.True(t, hasVote, "PersistentModels should include Vote")
	require.True(t, hasReads, "PersistentModels should include MessageRead")
}
