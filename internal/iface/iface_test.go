package iface

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveUnknownInterfaceFails(t *testing.T) {
	_, err := Resolve("arpchat-no-such-iface-0")
	require.Error(t, err)

	var resolveErr *ResolveError
	require.ErrorAs(t, err, &resolveErr)
}

func TestResolveLoopback(t *testing.T) {
	resolved, err := Resolve("lo")
	require.NoError(t, err)
	require.Equal(t, [4]byte{127, 0, 0, 1}, resolved.LocalIP)
}
