package hashtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func identityHash(k int) uint64 { return uint64(k) }

func TestSetGetDel(t *testing.T) {
	ht := New[int, string](4, identityHash)

	_, ok := ht.Get(1)
	assert.False(t, ok)

	fresh := ht.Set(1, "one")
	assert.True(t, fresh)
	v, ok := ht.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "one", v)

	overwrite := ht.Set(1, "uno")
	assert.False(t, overwrite)
	v, _ = ht.Get(1)
	assert.Equal(t, "uno", v)

	ht.Del(1)
	_, ok = ht.Get(1)
	assert.False(t, ok)
}

func TestCollisionChaining(t *testing.T) {
	ht := New[int, int](1, identityHash) // single bucket forces chaining
	for i := 0; i < 10; i++ {
		ht.Set(i, i*i)
	}
	for i := 0; i < 10; i++ {
		v, ok := ht.Get(i)
		assert.True(t, ok)
		assert.Equal(t, i*i, v)
	}
	assert.Len(t, ht.Elems(), 10)
}

func TestDelMissingKeyIsNoop(t *testing.T) {
	ht := New[int, int](4, identityHash)
	ht.Del(42) // must not panic
}
