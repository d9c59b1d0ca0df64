package bridge

import "errors"

var (
	// ErrMalformedPayload is returned by ParseForegroundPayload for a
	// notification that carries no usable foreground app entry.
	ErrMalformedPayload = errors.New("bridge: malformed foreground app notification")

	// ErrNoDialer is returned by New when no broker dialer is supplied.
	ErrNoDialer = errors.New("bridge: broker dialer is required")

	// ErrNotStarted is returned by HealthCheck before a broker connection
	// has been created.
	ErrNotStarted = errors.New("bridge: not started")

	// ErrNoJournal is returned by New when no journal is supplied.
	ErrNoJournal = errors.New("bridge: journal is required")
)
