package enums

// AudioSessionState tracks a live voice-ordering session.
type AudioSessionState string

const (
	AudioSessionStateActive   AudioSessionState = "active"
	AudioSessionStateDraining AudioSessionState = "draining"
	AudioSessionStateClosed   AudioSessionState = "closed"
)

// String implements fmt.Stringer.
func (s AudioSessionState) String() string {
	return string(s)
}
