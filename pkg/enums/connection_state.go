package enums

// ConnectionState tracks a hub connection through its lifecycle.
type ConnectionState string

const (
	ConnectionStateConnecting    ConnectionState = "connecting"
	ConnectionStateAuthenticated ConnectionState = "authenticated"
	ConnectionStateActive        ConnectionState = "active"
	ConnectionStateClosed        ConnectionState = "closed"
)

// String implements fmt.Stringer.
func (s ConnectionState) String() string {
	return string(s)
}
