package lifecycle

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
)

// fakeLogind implements the parts of dbus.BusObject the inhibitor uses.
type fakeLogind struct {
	dbus.BusObject

	method string
	args   []any
	reply  *dbus.Call
}

func (f *fakeLogind) CallWithContext(_ context.Context, method string, _ dbus.Flags, args ...any) *dbus.Call {
	f.method = method
	f.args = args
	return f.reply
}

func testLifecycle() config.LifecycleConfig {
	return config.LifecycleConfig{
		Mode: config.LifecycleLogind,
		Who:  "mediabridge",
		Why:  "keep broker connection alive",
	}
}

// pipeFD returns a fresh descriptor the lock can own.
func pipeFD(t *testing.T) dbus.UnixFD {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	fd, err := syscall.Dup(int(r.Fd()))
	if err != nil {
		t.Fatalf("dup error = %v", err)
	}
	return dbus.UnixFD(fd)
}

func TestNew_SelectsMode(t *testing.T) {
	if _, ok := New(testLifecycle()).(*LogindInhibitor); !ok {
		t.Error("New(logind) did not return a LogindInhibitor")
	}

	cfg := testLifecycle()
	cfg.Mode = config.LifecycleNone
	if _, ok := New(cfg).(Noop); !ok {
		t.Error("New(none) did not return Noop")
	}
}

func TestLogindInhibitor_Acquire(t *testing.T) {
	fd := pipeFD(t)
	fake := &fakeLogind{reply: &dbus.Call{Body: []any{fd}}}

	inhibitor := NewLogindInhibitor(testLifecycle())
	inhibitor.connect = func() (dbus.BusObject, error) { return fake, nil }

	handle, err := inhibitor.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if fake.method != "org.freedesktop.login1.Manager.Inhibit" {
		t.Errorf("method = %q", fake.method)
	}
	want := []any{"sleep:idle", "mediabridge", "keep broker connection alive", "block"}
	if len(fake.args) != len(want) {
		t.Fatalf("args = %v, want %v", fake.args, want)
	}
	for i := range want {
		if fake.args[i] != want[i] {
			t.Errorf("args[%d] = %v, want %v", i, fake.args[i], want[i])
		}
	}

	lock, ok := handle.(*Lock)
	if !ok {
		t.Fatalf("handle type = %T, want *Lock", handle)
	}
	if lock.FD() != uintptr(fd) {
		t.Errorf("FD() = %d, want %d", lock.FD(), fd)
	}
	if err := lock.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestLogindInhibitor_ServiceUnknown(t *testing.T) {
	fake := &fakeLogind{reply: &dbus.Call{Err: dbus.Error{Name: serviceUnknown}}}

	inhibitor := NewLogindInhibitor(testLifecycle())
	inhibitor.connect = func() (dbus.BusObject, error) { return fake, nil }

	if _, err := inhibitor.Acquire(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Acquire() error = %v, want ErrUnsupported", err)
	}
}

func TestLogindInhibitor_AccessDenied(t *testing.T) {
	fake := &fakeLogind{reply: &dbus.Call{Err: dbus.Error{Name: "org.freedesktop.DBus.Error.AccessDenied"}}}

	inhibitor := NewLogindInhibitor(testLifecycle())
	inhibitor.connect = func() (dbus.BusObject, error) { return fake, nil }

	_, err := inhibitor.Acquire(context.Background())
	if err == nil || errors.Is(err, ErrUnsupported) {
		t.Errorf("Acquire() error = %v, want a non-ErrUnsupported failure", err)
	}
}

func TestLogindInhibitor_NoBus(t *testing.T) {
	inhibitor := NewLogindInhibitor(testLifecycle())
	inhibitor.connect = func() (dbus.BusObject, error) {
		return nil, ErrUnsupported
	}

	if _, err := inhibitor.Acquire(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Acquire() error = %v, want ErrUnsupported", err)
	}
}

func TestNoop(t *testing.T) {
	handle, err := Noop{}.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := handle.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
