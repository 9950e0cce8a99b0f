package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultColumns(t *testing.T) {
	cols := DefaultColumns("p1")
	require.Len(t, cols, 4)

	assert.Equal(t, StageIdeas, cols[0].SystemID, "intake column comes first")
	assert.Equal(t, StageDone, cols[3].SystemID)
	for _, c := range cols {
		assert.Equal(t, ProjectID("p1"), c.ProjectID)
		assert.False(t, c.ID.IsZero())
		assert.NotEmpty(t, c.Title)
	}

	again := DefaultColumns("p1")
	assert.NotEqual(t, cols[0].ID, again[0].ID, "column IDs are minted per call")
}

func TestOfflineIDsCarryOrigin(t *testing.T) {
	assert.Regexp(t, `^proj_\d+$`, NewOfflineProjectID().String())
	assert.Regexp(t, `^tm_\d+$`, NewMemberID().String())
}
