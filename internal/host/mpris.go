package host

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
)

// MPRIS D-Bus names.
const (
	mprisPath           = "/org/mpris/MediaPlayer2"
	mprisPlayerIface    = "org.mpris.MediaPlayer2.Player"
	defaultPlayerPrefix = "org.mpris.MediaPlayer2."
	propsIface          = "org.freedesktop.DBus.Properties"
	propsChanged        = "PropertiesChanged"
	propsSignal         = propsIface + "." + propsChanged
	busIface            = "org.freedesktop.DBus"
	nameOwnerChanged    = "NameOwnerChanged"
	nameOwnerSignal     = busIface + "." + nameOwnerChanged

	// mprisMediaType is reported for every MPRIS player.
	mprisMediaType = "media"
)

// MPRISSource turns MPRIS player signals on the session bus into
// foreground-app notifications.
//
// The player that last changed playback status is the foreground app. Its
// well-known name, minus the player prefix, is the app ID. When that player
// leaves the bus an empty notification is sent, which the bridge reports as
// idle.
type MPRISSource struct {
	prefix  string
	logger  Logger
	connect func() (*dbus.Conn, error)

	mu       sync.Mutex
	owners   map[string]string // unique bus name -> app ID
	statuses map[string]string // app ID -> last playback status
	current  string            // app ID of the foreground player
}

// NewMPRISSource creates an MPRIS source. logger may be nil.
func NewMPRISSource(cfg config.MPRISConfig, logger Logger) *MPRISSource {
	if logger == nil {
		logger = noopLogger{}
	}
	prefix := cfg.PlayerPrefix
	if prefix == "" {
		prefix = defaultPlayerPrefix
	}
	return &MPRISSource{
		prefix:   prefix,
		logger:   logger,
		connect:  func() (*dbus.Conn, error) { return dbus.ConnectSessionBus() },
		owners:   make(map[string]string),
		statuses: make(map[string]string),
	}
}

// Name identifies the source in logs.
func (s *MPRISSource) Name() string {
	return "dbus:" + s.prefix + "*"
}

// Subscribe connects to the session bus and watches player signals until
// ctx ends.
func (s *MPRISSource) Subscribe(ctx context.Context, handler func(payload []byte)) error {
	conn, err := s.connect()
	if err != nil {
		return fmt.Errorf("%w: connect to session bus: %w", ErrSourceUnavailable, err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember(propsChanged),
	); err != nil {
		conn.Close()
		return fmt.Errorf("%w: match PropertiesChanged: %w", ErrSourceUnavailable, err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(busIface),
		dbus.WithMatchMember(nameOwnerChanged),
		dbus.WithMatchArg0Namespace(strings.TrimSuffix(s.prefix, ".")),
	); err != nil {
		conn.Close()
		return fmt.Errorf("%w: match NameOwnerChanged: %w", ErrSourceUnavailable, err)
	}

	s.loadOwners(conn)

	ch := make(chan *dbus.Signal, 16)
	conn.Signal(ch)
	go s.watch(ctx, conn, ch, handler)

	return nil
}

// loadOwners maps the unique names of players already on the bus.
func (s *MPRISSource) loadOwners(conn *dbus.Conn) {
	var names []string
	if err := conn.BusObject().Call(busIface+".ListNames", 0).Store(&names); err != nil {
		s.logger.Warn("listing bus names failed", "error", err)
		return
	}

	for _, name := range names {
		if !strings.HasPrefix(name, s.prefix) {
			continue
		}
		var owner string
		if err := conn.BusObject().Call(busIface+".GetNameOwner", 0, name).Store(&owner); err != nil {
			continue
		}
		s.mu.Lock()
		s.owners[owner] = strings.TrimPrefix(name, s.prefix)
		s.mu.Unlock()
	}
}

// watch forwards translated signals until ctx ends.
func (s *MPRISSource) watch(ctx context.Context, conn *dbus.Conn, ch chan *dbus.Signal, handler func([]byte)) {
	defer conn.Close()
	defer conn.RemoveSignal(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-ch:
			if !ok {
				s.logger.Warn("session bus closed, MPRIS source stopped")
				return
			}
			if payload := s.translate(sig); payload != nil {
				handler(payload)
			}
		}
	}
}

// translate converts one signal to a notification payload, or nil when the
// signal does not change the foreground app.
func (s *MPRISSource) translate(sig *dbus.Signal) []byte {
	switch sig.Name {
	case nameOwnerSignal:
		return s.ownerChanged(sig)
	case propsSignal:
		return s.propertiesChanged(sig)
	default:
		return nil
	}
}

// ownerChanged tracks players joining and leaving the bus.
// Body: [name string, old_owner string, new_owner string]
func (s *MPRISSource) ownerChanged(sig *dbus.Signal) []byte {
	if len(sig.Body) < 3 {
		return nil
	}
	name, _ := sig.Body[0].(string)
	oldOwner, _ := sig.Body[1].(string)
	newOwner, _ := sig.Body[2].(string)
	if !strings.HasPrefix(name, s.prefix) {
		return nil
	}
	appID := strings.TrimPrefix(name, s.prefix)

	s.mu.Lock()
	defer s.mu.Unlock()

	if oldOwner != "" {
		delete(s.owners, oldOwner)
	}
	if newOwner != "" {
		s.owners[newOwner] = appID
		return nil
	}

	delete(s.statuses, appID)
	if s.current != appID {
		return nil
	}
	s.current = ""
	return emptyNotification()
}

// propertiesChanged reports a player's playback status.
// Body: [interface string, changed map[string]Variant, invalidated []string]
func (s *MPRISSource) propertiesChanged(sig *dbus.Signal) []byte {
	if sig.Path != mprisPath || len(sig.Body) < 2 {
		return nil
	}
	iface, ok := sig.Body[0].(string)
	if !ok || iface != mprisPlayerIface {
		return nil
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	appID, ok := s.owners[sig.Sender]
	if !ok {
		appID = sig.Sender
	}

	if v, ok := changed["PlaybackStatus"]; ok {
		if status, ok := v.Value().(string); ok {
			s.statuses[appID] = strings.ToLower(status)
		}
	}

	status, ok := s.statuses[appID]
	if !ok {
		return nil
	}

	s.current = appID
	return appNotification(appID, status, mprisMediaType)
}

// notificationEntry mirrors one foregroundAppInfo entry.
type notificationEntry struct {
	AppID     string `json:"appId"`
	PlayState string `json:"playState"`
	Type      string `json:"type"`
}

// appNotification builds a single-entry foreground-app notification.
func appNotification(appID, playState, mediaType string) []byte {
	payload, _ := json.Marshal(map[string][]notificationEntry{
		"foregroundAppInfo": {{AppID: appID, PlayState: playState, Type: mediaType}},
	})
	return payload
}

// emptyNotification is sent when no app owns the foreground.
func emptyNotification() []byte {
	return []byte(`{"foregroundAppInfo":[]}`)
}
