package bridge

// ConnectionState is the getConnectionState result.
type ConnectionState struct {
	Connected bool `json:"connected"`
}

// Logs is the getLogs result.
type Logs struct {
	Logs []string `json:"logs"`
}

// Snapshot is the getState result.
type Snapshot struct {
	DeviceID  string      `json:"deviceId"`
	Status    Status      `json:"state"`
	Device    DeviceState `json:"device"`
	Connected bool        `json:"connected"`
}

// StateChanged is broadcast on ChannelStateChanged.
type StateChanged struct {
	DeviceID string      `json:"deviceId"`
	State    DeviceState `json:"state"`
}

// ConnectionChanged is broadcast on ChannelConnectionChanged.
type ConnectionChanged struct {
	DeviceID  string `json:"deviceId"`
	Connected bool   `json:"connected"`
}

// ConnectionState reads the broker's live connection status.
func (b *Bridge) ConnectionState() ConnectionState {
	broker := b.currentBroker()
	if broker == nil {
		return ConnectionState{}
	}
	return ConnectionState{Connected: broker.IsConnected()}
}

// Logs returns the journal, oldest first.
func (b *Bridge) Logs() Logs {
	return Logs{Logs: b.journal.Lines()}
}

// State returns the last known device state.
func (b *Bridge) State() DeviceState {
	return *b.state.Load()
}

// Status returns the service lifecycle status.
func (b *Bridge) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// Snapshot returns status, device state and connection together.
func (b *Bridge) Snapshot() Snapshot {
	return Snapshot{
		DeviceID:  b.device.ID,
		Status:    b.Status(),
		Device:    b.State(),
		Connected: b.ConnectionState().Connected,
	}
}
