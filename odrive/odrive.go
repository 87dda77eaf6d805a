/*Package odrive implements a client for ODrive motor controllers speaking the
ASCII property protocol over a UART or the USB CDC port.

Properties are addressed by dotted paths mirroring the controller's object
tree, e.g. axis0.encoder.pos_estimate.  Reads are "r <path>" and return one
line, writes are "w <path> <value>" and return nothing.
*/
package odrive

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// AxisState is the state machine state of an axis, as reported by
// axisN.current_state and commanded through axisN.requested_state
type AxisState int

const (
	AxisStateUndefined AxisState = iota
	AxisStateIdle
	AxisStateStartupSequence
	AxisStateFullCalibrationSequence
	AxisStateMotorCalibration
	AxisStateSensorlessControl
	AxisStateEncoderIndexSearch
	AxisStateEncoderOffsetCalibration
	AxisStateClosedLoopControl
	AxisStateLockinSpin
	AxisStateEncoderDirFind
	AxisStateHoming
	AxisStateEncoderHallPolarityCalibration
	AxisStateEncoderHallPhaseCalibration
)

var axisStateNames = map[AxisState]string{
	AxisStateUndefined:                      "UNDEFINED",
	AxisStateIdle:                           "IDLE",
	AxisStateStartupSequence:                "STARTUP_SEQUENCE",
	AxisStateFullCalibrationSequence:        "FULL_CALIBRATION_SEQUENCE",
	AxisStateMotorCalibration:               "MOTOR_CALIBRATION",
	AxisStateSensorlessControl:              "SENSORLESS_CONTROL",
	AxisStateEncoderIndexSearch:             "ENCODER_INDEX_SEARCH",
	AxisStateEncoderOffsetCalibration:       "ENCODER_OFFSET_CALIBRATION",
	AxisStateClosedLoopControl:              "CLOSED_LOOP_CONTROL",
	AxisStateLockinSpin:                     "LOCKIN_SPIN",
	AxisStateEncoderDirFind:                 "ENCODER_DIR_FIND",
	AxisStateHoming:                         "HOMING",
	AxisStateEncoderHallPolarityCalibration: "ENCODER_HALL_POLARITY_CALIBRATION",
	AxisStateEncoderHallPhaseCalibration:    "ENCODER_HALL_PHASE_CALIBRATION",
}

func (s AxisState) String() string {
	if name, ok := axisStateNames[s]; ok {
		return name
	}
	return "AxisState(" + strconv.Itoa(int(s)) + ")"
}

var (
	// ErrInvalidCommand is generated when the controller replies "invalid command format"
	ErrInvalidCommand = errors.New("controller rejected command format")
)

// ErrInvalidProperty is generated when the controller does not know a property path
type ErrInvalidProperty struct {
	Path string
}

func (e ErrInvalidProperty) Error() string {
	return fmt.Sprintf("invalid property %s", e.Path)
}

// Endpoint reads and writes controller properties by path
type Endpoint interface {
	// Read returns the raw textual value of a property
	Read(path string) (string, error)

	// Write sets a property to a textual value
	Write(path, value string) error
}

func readFloat(ep Endpoint, path string) (float64, error) {
	s, err := ep.Read(path)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func readInt(ep Endpoint, path string) (int, error) {
	s, err := ep.Read(path)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return i, nil
}

// ODrive is a discovered controller
type ODrive struct {
	ep     Endpoint
	closer io.Closer

	// SerialNumber is the USB serial number, empty when found by path
	SerialNumber string

	// Product is the USB product string, empty when found by path
	Product string

	// Path is the device path the controller was reached on
	Path string
}

// New wraps an endpoint.  closer may be nil.
func New(ep Endpoint, closer io.Closer) *ODrive {
	return &ODrive{ep: ep, closer: closer}
}

// Axis returns a handle to axis n
func (o *ODrive) Axis(n int) *Axis {
	return &Axis{ep: o.ep, prefix: "axis" + strconv.Itoa(n)}
}

// Axis0 is the primary axis
func (o *ODrive) Axis0() *Axis {
	return o.Axis(0)
}

// VbusVoltage returns the DC bus voltage
func (o *ODrive) VbusVoltage() (float64, error) {
	return readFloat(o.ep, "vbus_voltage")
}

// Close releases the link to the controller
func (o *ODrive) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}

// Axis is one motor channel of a controller
type Axis struct {
	ep     Endpoint
	prefix string
}

func (a *Axis) path(p string) string {
	return a.prefix + "." + p
}

// CurrentState returns the axis state
func (a *Axis) CurrentState() (AxisState, error) {
	i, err := readInt(a.ep, a.path("current_state"))
	return AxisState(i), err
}

// RequestState asks the axis to enter a state
func (a *Axis) RequestState(s AxisState) error {
	return a.ep.Write(a.path("requested_state"), strconv.Itoa(int(s)))
}

// Encoder returns the encoder of the axis
func (a *Axis) Encoder() Encoder {
	return Encoder{ep: a.ep, prefix: a.path("encoder")}
}

// Motor returns the motor of the axis
func (a *Axis) Motor() Motor {
	return Motor{ep: a.ep, prefix: a.path("motor")}
}

// Encoder exposes the estimator outputs of an axis
type Encoder struct {
	ep     Endpoint
	prefix string
}

// PosEstimate is the position estimate in turns
func (e Encoder) PosEstimate() (float64, error) {
	return readFloat(e.ep, e.prefix+".pos_estimate")
}

// VelEstimate is the velocity estimate in turns/s
func (e Encoder) VelEstimate() (float64, error) {
	return readFloat(e.ep, e.prefix+".vel_estimate")
}

// Motor exposes the motor readings of an axis
type Motor struct {
	ep     Endpoint
	prefix string
}

// Temperature is the motor thermistor reading in Celsius
func (m Motor) Temperature() (float64, error) {
	return readFloat(m.ep, m.prefix+".motor_thermistor.temperature")
}
