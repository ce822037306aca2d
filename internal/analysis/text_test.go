package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "cafe creme", fold("Café Crème"))
	assert.Equal(t, "strasse", fold("STRASSE"))
	assert.Equal(t, fold("Straße"), fold("STRASSE"))
}

func TestContainsFold(t *testing.T) {
	assert.True(t, containsFold("We recommend Agence Élan for this.", "agence elan"))
	assert.True(t, containsFold("ACME CORP is great", "acme corp"))
	assert.False(t, containsFold("nothing here", "acme"))
	assert.False(t, containsFold("anything", ""))
	assert.False(t, containsFold("anything", "   "))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "héllo", truncateRunes("héllo", 10))
	assert.Equal(t, "", truncateRunes("héllo", 0))
}
