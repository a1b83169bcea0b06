package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinLeaveViewers(t *testing.T) {
	v := NewViewers()

	v.Join(10, 1)
	v.Join(10, 2)
	v.Join(11, 1)

	assert.Equal(t, []int{1, 2}, v.Viewers(10))
	assert.Equal(t, []int{1}, v.Viewers(11))

	v.Leave(10, 1)
	assert.Equal(t, []int{2}, v.Viewers(10))

	v.Leave(10, 2)
	assert.Empty(t, v.Viewers(10))
}

func TestJoinIsIdempotent(t *testing.T) {
	v := NewViewers()

	v.Join(10, 1)
	v.Join(10, 1)

	assert.Equal(t, []int{1}, v.Viewers(10))
}

func TestLeaveUnknownGroup(t *testing.T) {
	v := NewViewers()
	v.Leave(99, 1)
	assert.Empty(t, v.Viewers(99))
}

func TestPurgeUserClearsAllGroups(t *testing.T) {
	v := NewViewers()
	v.Join(10, 1)
	v.Join(11, 1)
	v.Join(11, 2)

	v.PurgeUser(1)

	assert.Empty(t, v.Viewers(10))
	assert.Equal(t, []int{2}, v.Viewers(11))
}
