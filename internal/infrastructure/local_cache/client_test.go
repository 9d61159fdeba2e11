package local_cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalCache(t *testing.T) {
	require.NoError(t, NewLocalCache(WithMaxKeys(100)))

	ok := Cache().Set("coolant_temp", "31.5", 1)
	assert.True(t, ok)
	Cache().Wait()

	val, found := Cache().Get("coolant_temp")
	assert.True(t, found)
	assert.Equal(t, "31.5", val)
}

func TestNew_TTLExpires(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	defer c.Close()

	require.True(t, c.SetWithTTL("chassis_humid", "40", 1, 50*time.Millisecond))
	c.Wait()
	_, found := c.Get("chassis_humid")
	assert.True(t, found)

	assert.Eventually(t, func() bool {
		_, found := c.Get("chassis_humid")
		return !found
	}, 3*time.Second, 20*time.Millisecond)
}
