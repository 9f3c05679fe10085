package game

import (
	"math/rand/v2"
	"testing"

	"example.com/sketch-mvp/internal/room"
	"example.com/sketch-mvp/internal/words"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawerFor(t *testing.T) {
	rotation := []string{"a", "b", "c"}
	assert.Equal(t, "a", DrawerFor(rotation, 1))
	assert.Equal(t, "b", DrawerFor(rotation, 2))
	assert.Equal(t, "c", DrawerFor(rotation, 3))
	assert.Equal(t, "a", DrawerFor(rotation, 4))
	assert.Empty(t, DrawerFor(nil, 1))
	assert.Empty(t, DrawerFor(rotation, 0))
}

func TestFreezeRotation_UsesJoinOrder(t *testing.T) {
	r := room.Room{Players: map[string]room.Player{
		"z": {ID: "z", JoinedAt: 1},
		"b": {ID: "b", JoinedAt: 3},
		"a": {ID: "a", JoinedAt: 3},
	}}
	assert.Equal(t, []string{"z", "a", "b"}, FreezeRotation(r.PlayerList()))
}

func TestScheduler_WordOptions(t *testing.T) {
	cat, err := words.New([]string{"cat", "dog", "sun", "tree"})
	require.NoError(t, err)
	s := NewScheduler(cat, rand.New(rand.NewPCG(5, 6)))

	for i := 0; i < 50; i++ {
		opts, err := s.WordOptions()
		require.NoError(t, err)
		require.Len(t, opts, WordOptionsCount)
		assert.NotEqual(t, opts[0], opts[1])
		assert.NotEqual(t, opts[1], opts[2])
		assert.NotEqual(t, opts[0], opts[2])
	}

	_, err = NewScheduler(nil, nil).WordOptions()
	assert.ErrorIs(t, err, ErrValidation)
}
