package defs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeLatticeSubset(t *testing.T) {
	perm := ScopePermanent()
	proc := ScopeProcess()
	thr := ScopeThread(1)
	sys := ScopeSyscall(1, 9)

	assert.True(t, sys.Subset(thr))
	assert.True(t, sys.Subset(proc))
	assert.True(t, sys.Subset(perm))
	assert.True(t, thr.Subset(proc))
	assert.True(t, proc.Subset(perm))

	assert.False(t, proc.Subset(thr))
	assert.False(t, thr.Subset(sys))
	assert.False(t, perm.Subset(proc))
}

func TestScopeThreadSubsetRequiresSameTid(t *testing.T) {
	thrA := ScopeThread(1)
	thrB := ScopeThread(2)
	assert.False(t, thrA.Subset(thrB))
}

func TestScopeSyscallSubsetRequiresSameSeq(t *testing.T) {
	a := ScopeSyscall(1, 1)
	b := ScopeSyscall(1, 2)
	assert.False(t, a.Subset(b))
}

func TestScopeEq(t *testing.T) {
	a := ScopeThread(4)
	b := ScopeThread(4)
	c := ScopeThread(5)
	assert.True(t, a.Eq(b))
	assert.False(t, a.Eq(c))
}
