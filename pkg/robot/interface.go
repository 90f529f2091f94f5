// Package robot hosts the actuation core: the single serialization point
// for every hardware write. It drains the freshest winning command each
// tick, checks it against the safety controller, and dispatches to the
// kinematics mixer, the servo controller, and the camera selector.
//
// Hardware access is expressed as small, focused interfaces so the core
// can run against mocks in tests and against real drivers on the robot.
package robot

// MotorDriver applies one wheel frame as a unit. Implementations must
// treat the four values as a single atomic update; the core never asks
// for a partial frame.
type MotorDriver interface {
	SetMotor(fl, bl, fr, br int) error
}

// SensorReader exposes the chassis sensors as simple synchronous reads.
type SensorReader interface {
	ReadUltrasonic() (cm float64, err error)
	ReadBattery() (volts float64, err error)
}
