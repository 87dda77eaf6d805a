package odrive

// Telemetry is a snapshot of the primary readings of one axis
type Telemetry struct {
	CurrentState     AxisState `json:"current_state"`
	PosEstimate      float64   `json:"pos_estimate"`
	VelEstimate      float64   `json:"vel_estimate"`
	MotorTemperature float64   `json:"motor_temperature"`
}

// Field is a named telemetry value
type Field struct {
	Key   string
	Value interface{}
}

// Fields returns the readings in display order
func (t Telemetry) Fields() []Field {
	return []Field{
		{Key: "current_state", Value: int(t.CurrentState)},
		{Key: "pos_estimate", Value: t.PosEstimate},
		{Key: "vel_estimate", Value: t.VelEstimate},
		{Key: "motor_temperature", Value: t.MotorTemperature},
	}
}

// Map returns the readings keyed by name
func (t Telemetry) Map() map[string]interface{} {
	m := make(map[string]interface{}, 4)
	for _, f := range t.Fields() {
		m[f.Key] = f.Value
	}
	return m
}

// ReadTelemetry reads the four readings of an axis.  Any failed read
// abandons the snapshot.
func ReadTelemetry(a *Axis) (Telemetry, error) {
	var (
		t   Telemetry
		err error
	)
	if t.CurrentState, err = a.CurrentState(); err != nil {
		return Telemetry{}, err
	}
	enc := a.Encoder()
	if t.PosEstimate, err = enc.PosEstimate(); err != nil {
		return Telemetry{}, err
	}
	if t.VelEstimate, err = enc.VelEstimate(); err != nil {
		return Telemetry{}, err
	}
	if t.MotorTemperature, err = a.Motor().Temperature(); err != nil {
		return Telemetry{}, err
	}
	return t, nil
}
