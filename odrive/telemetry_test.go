package odrive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTelemetry(t *testing.T) {
	m := NewMock()
	m.Set("axis0.current_state", "8")
	m.Set("axis0.encoder.pos_estimate", "3.5")
	m.Set("axis0.encoder.vel_estimate", "-0.75")
	m.Set("axis0.motor.motor_thermistor.temperature", "31.2")

	tel, err := ReadTelemetry(New(m, nil).Axis0())
	require.NoError(t, err)
	assert.Equal(t, Telemetry{
		CurrentState:     AxisStateClosedLoopControl,
		PosEstimate:      3.5,
		VelEstimate:      -0.75,
		MotorTemperature: 31.2,
	}, tel)

	keys := []string{}
	for _, f := range tel.Fields() {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"current_state", "pos_estimate", "vel_estimate", "motor_temperature"}, keys)

	mp := tel.Map()
	assert.Len(t, mp, 4)
	assert.Equal(t, 8, mp["current_state"])
	assert.Equal(t, 31.2, mp["motor_temperature"])
}

func TestReadTelemetryReadsEachFieldOnce(t *testing.T) {
	m := NewMock()
	_, err := ReadTelemetry(New(m, nil).Axis0())
	require.NoError(t, err)
	for _, p := range []string{
		"axis0.current_state",
		"axis0.encoder.pos_estimate",
		"axis0.encoder.vel_estimate",
		"axis0.motor.motor_thermistor.temperature",
	} {
		assert.Equal(t, 1, m.Reads[p], p)
	}
}

func TestReadTelemetryNoPartialSnapshot(t *testing.T) {
	for _, p := range []string{
		"axis0.current_state",
		"axis0.encoder.pos_estimate",
		"axis0.encoder.vel_estimate",
		"axis0.motor.motor_thermistor.temperature",
	} {
		m := NewMock()
		m.Set("axis0.encoder.pos_estimate", "3.5")
		boom := errors.New("link dropped")
		m.Fail[p] = boom
		tel, err := ReadTelemetry(New(m, nil).Axis0())
		assert.True(t, errors.Is(err, boom), p)
		assert.Equal(t, Telemetry{}, tel, p)
	}
}
