package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	writes [][]byte
}

func (r *recorder) Write(buf []byte) error {
	r.writes = append(r.writes, append([]byte(nil), buf...))
	return nil
}

func (r *recorder) Close() error { return nil }

func TestSelectSinglePort(t *testing.T) {
	r := &recorder{}
	m := &Mux{dev: r}
	require.NoError(t, m.SelectSinglePort(3))
	require.NoError(t, m.DisableAllPorts())
	assert.Equal(t, [][]byte{{0x08}, {0x00}}, r.writes)

	assert.Error(t, m.SelectSinglePort(8))
	assert.Error(t, m.SelectSinglePort(-1))
	assert.Len(t, r.writes, 2)
}
