package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
	"github.com/nerrad567/media-state-bridge/internal/infrastructure/mqtt"
)

// Availability payloads.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Descriptor is a Home Assistant MQTT sensor discovery payload.
type Descriptor struct {
	Icon                string           `json:"icon"`
	Base                string           `json:"~"`
	AvailabilityTopic   string           `json:"availability_topic"`
	StateTopic          string           `json:"state_topic"`
	JSONAttributesTopic string           `json:"json_attributes_topic,omitempty"`
	Name                string           `json:"name"`
	UniqueID            string           `json:"unique_id"`
	PayloadAvailable    string           `json:"payload_available"`
	PayloadNotAvailable string           `json:"payload_not_available"`
	ValueTemplate       string           `json:"value_template,omitempty"`
	Device              DescriptorDevice `json:"device"`
}

// DescriptorDevice groups the sensors under one device in Home Assistant.
type DescriptorDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
}

// sensor describes one discoverable sensor.
type sensor struct {
	objectID string
	field    string // state payload key, empty for the whole state
	icon     string
	name     string
}

// stateSensor is always published. fieldSensors are optional.
var (
	stateSensor = sensor{objectID: "state", icon: "mdi:television-play", name: "Media State"}

	fieldSensors = []sensor{
		{objectID: "playState", field: "play", icon: "mdi:play-pause", name: "Play State"},
		{objectID: "appId", field: "app", icon: "mdi:apps", name: "Application ID"},
		{objectID: "type", field: "type", icon: "mdi:import", name: "Discovery Type"},
	}
)

// discoveryMessage is a prepared discovery publish.
type discoveryMessage struct {
	Topic   string
	Payload []byte
}

// buildDiscovery computes every discovery publish for the device. The result
// depends only on configuration.
//
// Per-field sensors need JSON state, so they are skipped in plain format.
func buildDiscovery(dev config.DeviceConfig, topics mqtt.Topics) ([]discoveryMessage, error) {
	sensors := []sensor{stateSensor}
	jsonState := dev.StateFormat != config.StateFormatPlain
	if dev.FieldSensors && jsonState {
		sensors = append(sensors, fieldSensors...)
	}

	deviceName := dev.Name
	if deviceName == "" {
		deviceName = dev.ID
	}

	out := make([]discoveryMessage, 0, len(sensors))
	for _, s := range sensors {
		d := Descriptor{
			Icon:                s.icon,
			Base:                topics.Base(),
			AvailabilityTopic:   topics.Availability(),
			StateTopic:          topics.State(),
			Name:                s.name,
			UniqueID:            fmt.Sprintf("%s_%s", dev.ID, s.objectID),
			PayloadAvailable:    PayloadOnline,
			PayloadNotAvailable: PayloadOffline,
			Device: DescriptorDevice{
				Identifiers:  []string{dev.ID},
				Name:         deviceName,
				Manufacturer: dev.Manufacturer,
			},
		}

		switch {
		case s.field != "":
			d.ValueTemplate = fmt.Sprintf("{{ value_json.%s }}", s.field)
		case jsonState:
			d.ValueTemplate = "{{ value_json.play }}"
			d.JSONAttributesTopic = topics.State()
		}

		payload, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("encoding %s discovery: %w", s.objectID, err)
		}
		out = append(out, discoveryMessage{Topic: topics.Discovery(s.objectID), Payload: payload})
	}

	return out, nil
}
