package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionJSON_IncludesNetVotes(t *testing.T) {
	q := Question{ID: 3, Title: "Deposit?", UpvoteCount: 5, DownvoteCount: 2, VoteScore: 3, AnswerCount: 1, TagNames: []string{"rent"}}

	raw, err := json.Marshal(q)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.EqualValues(t, 3, body["net_votes"])
	assert.EqualValues(t, 1, body["answer_count"])
	assert.Equal(t, "Deposit?", body["title"])
	assert.NotContains(t, body, "Tags")

	raw, err = json.Marshal(&q)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"net_votes":3`)
}
