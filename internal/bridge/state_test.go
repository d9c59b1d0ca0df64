package bridge

import (
	"errors"
	"testing"

	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
)

func TestParseForegroundPayload(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want DeviceState
	}{
		{
			name: "webOS notification uses type",
			raw:  `{"subscribed":true,"foregroundAppInfo":[{"windowId":"_Window_Id_3","appId":"netflix","mediaId":"_j2bZ","type":"media","playState":"playing"}],"returnValue":true}`,
			want: DeviceState{PlayState: "playing", AppID: "netflix", MediaType: "media"},
		},
		{
			name: "mediaType field",
			raw:  `{"foregroundAppInfo":[{"playState":"playing","appId":"netflix","mediaType":"video"}]}`,
			want: DeviceState{PlayState: "playing", AppID: "netflix", MediaType: "video"},
		},
		{
			name: "mediaType wins over type",
			raw:  `{"foregroundAppInfo":[{"playState":"paused","appId":"plex","mediaType":"video","type":"media"}]}`,
			want: DeviceState{PlayState: "paused", AppID: "plex", MediaType: "video"},
		},
		{
			name: "first entry wins",
			raw:  `{"foregroundAppInfo":[{"playState":"loaded","appId":"a","type":"media"},{"playState":"playing","appId":"b","type":"media"}]}`,
			want: DeviceState{PlayState: "loaded", AppID: "a", MediaType: "media"},
		},
		{
			name: "values are copied verbatim",
			raw:  `{"foregroundAppInfo":[{"playState":"  PLAYING ","appId":"com.webos.app.hdmi1","type":""}]}`,
			want: DeviceState{PlayState: "  PLAYING ", AppID: "com.webos.app.hdmi1", MediaType: ""},
		},
		{
			name: "missing fields are empty",
			raw:  `{"foregroundAppInfo":[{"appId":"com.webos.app.home"}]}`,
			want: DeviceState{AppID: "com.webos.app.home"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseForegroundPayload([]byte(tt.raw))
			if err != nil {
				t.Fatalf("ParseForegroundPayload() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseForegroundPayload() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseForegroundPayload_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ``},
		{"whitespace", " \n\t"},
		{"not json", `playing`},
		{"json null", `null`},
		{"no list", `{"subscribed":true,"returnValue":true}`},
		{"empty list", `{"foregroundAppInfo":[]}`},
		{"null list", `{"foregroundAppInfo":null}`},
		{"list is a string", `{"foregroundAppInfo":"netflix"}`},
		{"entry is a number", `{"foregroundAppInfo":[1]}`},
		{"entry is null", `{"foregroundAppInfo":[null]}`},
		{"non-string field", `{"foregroundAppInfo":[{"playState":true}]}`},
		{"truncated", `{"foregroundAppInfo":[{"playState":"playing"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseForegroundPayload([]byte(tt.raw))
			if !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("ParseForegroundPayload(%q) error = %v, want ErrMalformedPayload", tt.raw, err)
			}
		})
	}
}

func TestEncodeState(t *testing.T) {
	state := DeviceState{PlayState: "playing", AppID: "netflix", MediaType: "video"}

	got, err := encodeState(state, config.StateFormatJSON)
	if err != nil {
		t.Fatalf("encodeState(json) error = %v", err)
	}
	if string(got) != `{"play":"playing","app":"netflix","type":"video"}` {
		t.Errorf("encodeState(json) = %s", got)
	}

	got, err = encodeState(state, config.StateFormatPlain)
	if err != nil {
		t.Fatalf("encodeState(plain) error = %v", err)
	}
	if string(got) != "playing" {
		t.Errorf("encodeState(plain) = %s, want playing", got)
	}
}

func TestIdleState(t *testing.T) {
	idle := IdleState()
	if idle.PlayState != "idle" || idle.AppID != "unknown" || idle.MediaType != "unknown" {
		t.Errorf("IdleState() = %+v", idle)
	}
	if !idle.IsIdle() {
		t.Error("IdleState().IsIdle() = false")
	}
	if (DeviceState{PlayState: "idle"}).IsIdle() {
		t.Error("partial state reported as idle sentinel")
	}
}
