package host

import (
	"context"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
)

func newTestMPRIS() *MPRISSource {
	return NewMPRISSource(config.MPRISConfig{}, noopLogger{})
}

func ownerSignal(name, oldOwner, newOwner string) *dbus.Signal {
	return &dbus.Signal{
		Sender: "org.freedesktop.DBus",
		Path:   "/org/freedesktop/DBus",
		Name:   nameOwnerSignal,
		Body:   []any{name, oldOwner, newOwner},
	}
}

func statusSignal(sender, status string) *dbus.Signal {
	return &dbus.Signal{
		Sender: sender,
		Path:   mprisPath,
		Name:   propsSignal,
		Body: []any{
			mprisPlayerIface,
			map[string]dbus.Variant{"PlaybackStatus": dbus.MakeVariant(status)},
			[]string{},
		},
	}
}

func TestMPRISSource_Defaults(t *testing.T) {
	src := newTestMPRIS()
	if src.prefix != "org.mpris.MediaPlayer2." {
		t.Errorf("prefix = %q, want default player prefix", src.prefix)
	}
	if src.Name() != "dbus:org.mpris.MediaPlayer2.*" {
		t.Errorf("Name() = %q", src.Name())
	}
}

func TestNewMPRISSource_UsesSessionBus(t *testing.T) {
	src := NewMPRISSource(config.MPRISConfig{}, nil)
	if src.connect == nil {
		t.Fatal("connect = nil, want session bus dialer")
	}
	if src.logger == nil {
		t.Error("logger = nil, want noop default")
	}
}

func TestMPRISSource_PlaybackStatus(t *testing.T) {
	src := newTestMPRIS()

	if got := src.translate(ownerSignal("org.mpris.MediaPlayer2.vlc", "", ":1.42")); got != nil {
		t.Errorf("player appearing produced %s, want nothing", got)
	}

	got := src.translate(statusSignal(":1.42", "Playing"))
	want := `{"foregroundAppInfo":[{"appId":"vlc","playState":"playing","type":"media"}]}`
	if string(got) != want {
		t.Errorf("translate() = %s, want %s", got, want)
	}

	got = src.translate(statusSignal(":1.42", "Paused"))
	want = `{"foregroundAppInfo":[{"appId":"vlc","playState":"paused","type":"media"}]}`
	if string(got) != want {
		t.Errorf("translate() = %s, want %s", got, want)
	}
}

func TestMPRISSource_OtherPropertyKeepsStatus(t *testing.T) {
	src := newTestMPRIS()
	src.translate(ownerSignal("org.mpris.MediaPlayer2.spotify", "", ":1.7"))
	src.translate(statusSignal(":1.7", "Playing"))

	sig := &dbus.Signal{
		Sender: ":1.7",
		Path:   mprisPath,
		Name:   propsSignal,
		Body: []any{
			mprisPlayerIface,
			map[string]dbus.Variant{"Volume": dbus.MakeVariant(0.5)},
			[]string{},
		},
	}
	got := src.translate(sig)
	want := `{"foregroundAppInfo":[{"appId":"spotify","playState":"playing","type":"media"}]}`
	if string(got) != want {
		t.Errorf("translate() = %s, want %s", got, want)
	}
}

func TestMPRISSource_PropertyWithoutKnownStatus(t *testing.T) {
	src := newTestMPRIS()
	sig := &dbus.Signal{
		Sender: ":1.9",
		Path:   mprisPath,
		Name:   propsSignal,
		Body: []any{
			mprisPlayerIface,
			map[string]dbus.Variant{"Volume": dbus.MakeVariant(1.0)},
			[]string{},
		},
	}
	if got := src.translate(sig); got != nil {
		t.Errorf("translate() = %s, want nil", got)
	}
}

func TestMPRISSource_UnknownSenderUsesUniqueName(t *testing.T) {
	src := newTestMPRIS()
	got := src.translate(statusSignal(":1.99", "Stopped"))
	want := `{"foregroundAppInfo":[{"appId":":1.99","playState":"stopped","type":"media"}]}`
	if string(got) != want {
		t.Errorf("translate() = %s, want %s", got, want)
	}
}

func TestMPRISSource_ForegroundPlayerVanishes(t *testing.T) {
	src := newTestMPRIS()
	src.translate(ownerSignal("org.mpris.MediaPlayer2.vlc", "", ":1.42"))
	src.translate(statusSignal(":1.42", "Playing"))

	got := src.translate(ownerSignal("org.mpris.MediaPlayer2.vlc", ":1.42", ""))
	if string(got) != `{"foregroundAppInfo":[]}` {
		t.Errorf("translate() = %s, want empty notification", got)
	}
	if _, ok := src.owners[":1.42"]; ok {
		t.Error("owner not removed")
	}
}

func TestMPRISSource_BackgroundPlayerVanishes(t *testing.T) {
	src := newTestMPRIS()
	src.translate(ownerSignal("org.mpris.MediaPlayer2.vlc", "", ":1.1"))
	src.translate(ownerSignal("org.mpris.MediaPlayer2.mpv", "", ":1.2"))
	src.translate(statusSignal(":1.1", "Paused"))
	src.translate(statusSignal(":1.2", "Playing"))

	if got := src.translate(ownerSignal("org.mpris.MediaPlayer2.vlc", ":1.1", "")); got != nil {
		t.Errorf("translate() = %s, want nil for background player", got)
	}
}

func TestMPRISSource_IgnoredSignals(t *testing.T) {
	tests := []struct {
		name string
		sig  *dbus.Signal
	}{
		{
			name: "other bus name",
			sig:  ownerSignal("org.gnome.Shell", "", ":1.3"),
		},
		{
			name: "short owner body",
			sig:  &dbus.Signal{Name: nameOwnerSignal, Body: []any{"org.mpris.MediaPlayer2.vlc"}},
		},
		{
			name: "root interface",
			sig: &dbus.Signal{
				Sender: ":1.4",
				Path:   mprisPath,
				Name:   propsSignal,
				Body:   []any{"org.mpris.MediaPlayer2", map[string]dbus.Variant{}, []string{}},
			},
		},
		{
			name: "other object path",
			sig: &dbus.Signal{
				Sender: ":1.4",
				Path:   "/org/other",
				Name:   propsSignal,
				Body:   []any{mprisPlayerIface, map[string]dbus.Variant{}, []string{}},
			},
		},
		{
			name: "unexpected body types",
			sig: &dbus.Signal{
				Sender: ":1.4",
				Path:   mprisPath,
				Name:   propsSignal,
				Body:   []any{mprisPlayerIface, "not a map"},
			},
		},
		{
			name: "unrelated signal",
			sig:  &dbus.Signal{Name: "org.freedesktop.DBus.NameAcquired", Body: []any{":1.4"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newTestMPRIS().translate(tt.sig); got != nil {
				t.Errorf("translate() = %s, want nil", got)
			}
		})
	}
}

func TestMPRISSource_NoSessionBus(t *testing.T) {
	src := newTestMPRIS()
	src.connect = func() (*dbus.Conn, error) {
		return nil, errors.New("no session bus")
	}

	err := src.Subscribe(context.Background(), func([]byte) {})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Subscribe() error = %v, want ErrSourceUnavailable", err)
	}
}
