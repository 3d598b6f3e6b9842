package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/config"
)

func TestNewPicksBackend(t *testing.T) {
	cfg := config.Default().Hardware

	cfg.Backend = config.BackendSim
	hw, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Sim{}, hw)

	cfg.Backend = config.BackendDummy
	hw, err = New(cfg)
	require.NoError(t, err)
	assert.NoError(t, hw.LeftMotor().Forward(1))

	cfg.Backend = "hovercraft"
	_, err = New(cfg)
	assert.Error(t, err)
}
