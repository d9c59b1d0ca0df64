package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/godbus/dbus/v5"

	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
)

// logind D-Bus names.
const (
	logindBusName   = "org.freedesktop.login1"
	logindPath      = "/org/freedesktop/login1"
	logindInhibit   = "org.freedesktop.login1.Manager.Inhibit"
	serviceUnknown  = "org.freedesktop.DBus.Error.ServiceUnknown"
	inhibitWhat     = "sleep:idle"
	inhibitModeHold = "block"
)

// ErrUnsupported is returned when the host offers no keep-alive capability.
var ErrUnsupported = errors.New("lifecycle: keep-alive not supported on this host")

// KeepAlive acquires a handle that stops the host suspending the process.
type KeepAlive interface {
	Acquire(ctx context.Context) (io.Closer, error)
}

// New returns the keep-alive capability selected by cfg.Mode.
func New(cfg config.LifecycleConfig) KeepAlive {
	if cfg.Mode == config.LifecycleLogind {
		return NewLogindInhibitor(cfg)
	}
	return Noop{}
}

// LogindInhibitor takes a systemd-logind block inhibitor lock over the
// system bus. The lock lasts as long as the returned file descriptor is open.
type LogindInhibitor struct {
	who string
	why string

	// connect returns the logind manager object.
	connect func() (dbus.BusObject, error)
}

// NewLogindInhibitor creates an inhibitor for the configured who/why strings.
func NewLogindInhibitor(cfg config.LifecycleConfig) *LogindInhibitor {
	return &LogindInhibitor{
		who:     cfg.Who,
		why:     cfg.Why,
		connect: systemLogind,
	}
}

// systemLogind connects to the shared system bus connection.
func systemLogind() (dbus.BusObject, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("%w: connect to system bus: %w", ErrUnsupported, err)
	}
	return conn.Object(logindBusName, logindPath), nil
}

// Acquire takes a "sleep:idle" block lock.
func (l *LogindInhibitor) Acquire(ctx context.Context) (io.Closer, error) {
	obj, err := l.connect()
	if err != nil {
		return nil, err
	}

	var fd dbus.UnixFD
	call := obj.CallWithContext(ctx, logindInhibit, 0, inhibitWhat, l.who, l.why, inhibitModeHold)
	if err := call.Store(&fd); err != nil {
		if errorName(err) == serviceUnknown {
			return nil, fmt.Errorf("%w: %s is not running", ErrUnsupported, logindBusName)
		}
		return nil, fmt.Errorf("logind inhibit: %w", err)
	}

	return &Lock{file: os.NewFile(uintptr(fd), "logind-inhibitor")}, nil
}

// errorName returns the D-Bus error name carried by err, if any. Replies
// carry dbus.Error values; locally built errors are *dbus.Error.
func errorName(err error) string {
	var val dbus.Error
	if errors.As(err, &val) {
		return val.Name
	}
	var ptr *dbus.Error
	if errors.As(err, &ptr) {
		return ptr.Name
	}
	return ""
}

// Lock is a held inhibitor lock.
type Lock struct {
	file *os.File
}

// FD returns the lock's file descriptor.
func (l *Lock) FD() uintptr {
	return l.file.Fd()
}

// Close releases the lock.
func (l *Lock) Close() error {
	return l.file.Close()
}

// Noop is the keep-alive for hosts that never suspend the process.
type Noop struct{}

// Acquire returns a handle whose Close does nothing.
func (Noop) Acquire(context.Context) (io.Closer, error) {
	return noopHandle{}, nil
}

type noopHandle struct{}

func (noopHandle) Close() error { return nil }
