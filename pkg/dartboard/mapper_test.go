package dartboard

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMapper() *Mapper {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewMapper(logger)
}

func TestMapperDefaultTable(t *testing.T) {
	m := newTestMapper()

	t.Run("inner single", func(t *testing.T) {
		seg := m.Lookup(0x01)
		require.True(t, seg.Known())
		assert.Equal(t, 1, *seg.Target)
		assert.Equal(t, 1, *seg.Multiplier)
		assert.Equal(t, "S1 (inner)", seg.Name)
	})

	t.Run("outer single", func(t *testing.T) {
		seg := m.Lookup(0x28)
		require.True(t, seg.Known())
		assert.Equal(t, 20, *seg.Target)
		assert.Equal(t, 1, *seg.Multiplier)
		assert.Equal(t, "S20 (outer)", seg.Name)
	})

	t.Run("double twenty scores forty", func(t *testing.T) {
		seg := m.Lookup(0x3c)
		require.True(t, seg.Known())
		assert.Equal(t, 20, *seg.Target)
		assert.Equal(t, 2, *seg.Multiplier)

		score, ok := m.Score(0x3c)
		require.True(t, ok)
		assert.Equal(t, 40, score)
	})

	t.Run("triple twenty scores sixty", func(t *testing.T) {
		score, ok := m.Score(0x50)
		require.True(t, ok)
		assert.Equal(t, 60, score)
	})

	t.Run("bulls", func(t *testing.T) {
		outer, ok := m.Score(0x51)
		require.True(t, ok)
		assert.Equal(t, 25, outer)

		inner, ok := m.Score(0x52)
		require.True(t, ok)
		assert.Equal(t, 50, inner)
	})

	t.Run("player change has no score", func(t *testing.T) {
		seg := m.Lookup(PlayerChangeCode)
		assert.False(t, seg.Known())
		assert.Equal(t, "player change", seg.Name)

		_, ok := m.Score(PlayerChangeCode)
		assert.False(t, ok)
	})
}

func TestMapperUnknownCode(t *testing.T) {
	m := newTestMapper()

	seg := m.Lookup(0xff)
	assert.False(t, seg.Known())
	assert.Equal(t, "unknown(0xff)", seg.Name)

	_, ok := m.Score(0xff)
	assert.False(t, ok)
}

func TestMapperSet(t *testing.T) {
	m := newTestMapper()

	// Remap a previously unknown code; later lookups must observe it
	m.Set(0xa0, 19, 3, "T19 (remapped)")

	seg := m.Lookup(0xa0)
	require.True(t, seg.Known())
	assert.Equal(t, "T19 (remapped)", seg.Name)

	score, ok := m.Score(0xa0)
	require.True(t, ok)
	assert.Equal(t, 57, score)
}

func TestMapperExportImportRoundTrip(t *testing.T) {
	src := newTestMapper()
	src.Set(0xa0, 7, 2, "D7 (custom)")

	dst := newTestMapper()
	require.NoError(t, dst.Import(src.Export()))

	score, ok := dst.Score(0xa0)
	require.True(t, ok)
	assert.Equal(t, 14, score)

	// Defaults survive the round trip too
	score, ok = dst.Score(0x3c)
	require.True(t, ok)
	assert.Equal(t, 40, score)
}

func TestMapperImportRejectsMalformedKeys(t *testing.T) {
	m := newTestMapper()
	before, beforeOK := m.Score(0x3c)
	require.True(t, beforeOK)

	target, mult := 5, 1
	err := m.Import(Table{
		"not-a-byte": {Target: &target, Multiplier: &mult, Name: "S5"},
	})
	require.Error(t, err)

	// A rejected import must leave the table untouched
	after, ok := m.Score(0x3c)
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestMapperImportRejectsOutOfRangeKeys(t *testing.T) {
	m := newTestMapper()

	target, mult := 5, 1
	err := m.Import(Table{
		"0x1ff": {Target: &target, Multiplier: &mult, Name: "S5"},
	})
	assert.Error(t, err)
}
