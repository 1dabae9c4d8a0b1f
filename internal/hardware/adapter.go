package hardware

import "context"

// Adapter is the capability set the Control Loop and IPC Endpoint use to
// talk to hardware. It combines sensor monitoring and fan control behind
// one interface so a real and a mock implementation can be swapped purely
// by configuration (see cmd/fantunerd's --mock flag).
//
// Implementations must serialize concurrent calls internally: the
// control loop and IPC handlers (e.g. a direct SetFanSpeed request) may
// call an Adapter from different goroutines.
type Adapter interface {
	// Initialize brings up hardware access. Idempotent. Returns any
	// non-fatal warnings surfaced during bring-up.
	Initialize(ctx context.Context) (warnings []string, err error)

	// Refresh re-reads all sensors and fans. A failure here is never
	// fatal; the caller records it as a failure with the Safety
	// Supervisor and retries on the next tick.
	Refresh(ctx context.Context) error

	// GetSensors returns the most recent sensor snapshot.
	GetSensors() []SensorReading

	// GetFans returns the most recent fan snapshot.
	GetFans() []FanDevice

	// SetSpeed clamps percent to [0,100] and attempts to apply it to
	// fan. Returns false (never an error) if the fan is not
	// FullControl. An I/O error downgrades the fan to MonitorOnly and
	// also returns false.
	SetSpeed(ctx context.Context, fan FanID, percent float64) (bool, error)

	// SetAuto reverts fan to hardware/BIOS control.
	SetAuto(ctx context.Context, fan FanID) error

	// SetAllAuto reverts every fan to hardware/BIOS control. Used at
	// shutdown so fans never linger at a software-commanded speed.
	SetAllAuto(ctx context.Context) error
}
