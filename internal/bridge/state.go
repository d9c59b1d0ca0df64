package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
)

// Sentinel values used before the first notification and whenever a
// notification cannot be interpreted.
const (
	IdlePlayState = "idle"
	UnknownApp    = "unknown"
	UnknownType   = "unknown"
)

// DeviceState is the last known foreground-app status of the device.
type DeviceState struct {
	PlayState string `json:"playState"`
	AppID     string `json:"appId"`
	MediaType string `json:"mediaType"`
}

// IdleState returns the idle/unknown sentinel.
func IdleState() DeviceState {
	return DeviceState{
		PlayState: IdlePlayState,
		AppID:     UnknownApp,
		MediaType: UnknownType,
	}
}

// IsIdle reports whether s is the sentinel.
func (s DeviceState) IsIdle() bool {
	return s == IdleState()
}

// statePayload is the wire form of DeviceState on the state topic.
type statePayload struct {
	Play string `json:"play"`
	App  string `json:"app"`
	Type string `json:"type"`
}

// encodeState renders s for the state topic in the configured format.
func encodeState(s DeviceState, format string) ([]byte, error) {
	if format == config.StateFormatPlain {
		return []byte(s.PlayState), nil
	}
	return json.Marshal(statePayload{Play: s.PlayState, App: s.AppID, Type: s.MediaType})
}

// foregroundNotification is a host foreground-app notification.
//
// Example:
//
//	{"subscribed":true,"returnValue":true,"foregroundAppInfo":[
//	  {"windowId":"_Window_Id_3","appId":"netflix","mediaId":"_j2bZ","type":"media","playState":"playing"}]}
type foregroundNotification struct {
	ForegroundAppInfo []json.RawMessage `json:"foregroundAppInfo"`
}

// foregroundApp is one entry of foregroundAppInfo. Some hosts send the
// media type as "type", others as "mediaType".
type foregroundApp struct {
	PlayState *string `json:"playState"`
	AppID     *string `json:"appId"`
	Type      *string `json:"type"`
	MediaType *string `json:"mediaType"`
}

// ParseForegroundPayload extracts the device state from a notification.
//
// The first foregroundAppInfo entry wins and its values are copied verbatim.
// An absent field becomes the empty string. It returns an error when the
// payload is empty, is not JSON, has no foregroundAppInfo list, the list is
// empty, or the first entry is not an object with string fields.
func ParseForegroundPayload(raw []byte) (DeviceState, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return DeviceState{}, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}

	var n foregroundNotification
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return DeviceState{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if len(n.ForegroundAppInfo) == 0 {
		return DeviceState{}, fmt.Errorf("%w: no foreground app entries", ErrMalformedPayload)
	}

	first := bytes.TrimSpace(n.ForegroundAppInfo[0])
	if len(first) == 0 || first[0] != '{' {
		return DeviceState{}, fmt.Errorf("%w: first foreground app entry is not an object", ErrMalformedPayload)
	}

	var app foregroundApp
	if err := json.Unmarshal(first, &app); err != nil {
		return DeviceState{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	mediaType := app.MediaType
	if mediaType == nil {
		mediaType = app.Type
	}

	return DeviceState{
		PlayState: deref(app.PlayState),
		AppID:     deref(app.AppID),
		MediaType: deref(mediaType),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
