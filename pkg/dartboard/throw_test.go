package dartboard

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrowIsPlayerChange(t *testing.T) {
	assert.True(t, (&Throw{Code: PlayerChangeCode}).IsPlayerChange())
	assert.False(t, (&Throw{Code: 0x3c}).IsPlayerChange())
}

func TestThrowJSONOmitsNothing(t *testing.T) {
	score := 40
	throw := &Throw{
		ID:    7,
		At:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Code:  0x3c,
		Name:  "D20",
		Score: &score,
	}

	data, err := json.Marshal(throw)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, float64(7), decoded["id"])
	assert.Equal(t, "D20", decoded["segment_name"])
	assert.Equal(t, float64(40), decoded["score"])

	// Unknown segments serialize their nils explicitly, not by omission
	assert.Contains(t, decoded, "target")
	assert.Nil(t, decoded["target"])
}
