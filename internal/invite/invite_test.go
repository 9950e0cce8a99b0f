package invite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planboard/internal/model"
)

func TestLinkRoundTrip(t *testing.T) {
	link, err := Link("https://plan.example.com/board", model.ProjectID("proj_123"))
	require.NoError(t, err)

	id, ok := ParseProjectID(link)
	require.True(t, ok)
	assert.Equal(t, model.ProjectID("proj_123"), id)
}

func TestParseProjectID(t *testing.T) {
	id, ok := ParseProjectID("https://plan.example.com/?invite=abc-def")
	require.True(t, ok)
	assert.Equal(t, model.ProjectID("abc-def"), id)

	_, ok = ParseProjectID("https://plan.example.com/?ref=newsletter")
	assert.False(t, ok)

	_, ok = ParseProjectID("://not a url")
	assert.False(t, ok)
}
