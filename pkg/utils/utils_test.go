package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT(t *testing.T) {
	secret := []byte("k")
	token, err := SignJWT(secret, "alice", time.Minute)
	require.NoError(t, err)

	claims := &Claims{}
	require.NoError(t, ParseJWT(token, secret, claims))
	assert.Equal(t, "alice", claims.Name)

	require.Error(t, ParseJWT(token, []byte("other"), &Claims{}))
	require.Error(t, ParseJWT(token, nil, &Claims{}))

	expired, err := SignJWT(secret, "alice", -time.Minute)
	require.NoError(t, err)
	require.Error(t, ParseJWT(expired, secret, &Claims{}))
}

func TestSlices(t *testing.T) {
	assert.Equal(t, "b", Or("", "b", "c"))
	assert.Equal(t, 0, Or[int]())

	even := FilterSlice([]int{1, 2, 3, 4}, func(i int) bool { return i%2 == 0 })
	assert.Equal(t, []int{2, 4}, even)
	assert.Equal(t, []int{4, 8}, MapSlice(even, func(i int) int { return i * 2 }))
	assert.Equal(t, map[int]int{2: 2, 4: 4}, Slice2Map(even, func(i int) int { return i }))
}

func TestSafelyRun(t *testing.T) {
	require.Error(t, SafelyRun(func() { panic("boom") }))
	require.NoError(t, SafelyRun(func() {}))
}
