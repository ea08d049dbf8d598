package flock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExclusive_SecondDescriptorIsRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")

	first, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	require.NoError(t, Exclusive(first.Fd()))

	second, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	assert.Error(t, Exclusive(second.Fd()), "held lock must refuse a second holder")

	require.NoError(t, Unlock(first.Fd()))
	assert.NoError(t, Exclusive(second.Fd()), "released lock can be reacquired")
	require.NoError(t, Unlock(second.Fd()))
}
