package mqtt

import (
	"fmt"
	"strings"
)

// Topics builds the broker topics for one device.
//
// Every name is derived by interpolating the device ID, so the same
// configuration always yields the same topics:
//
//	t := mqtt.NewTopics("homeassistant", "LGTV2MQTT", "living-tv")
//	t.State()             // LGTV2MQTT/living-tv/state
//	t.Availability()      // LGTV2MQTT/living-tv/availability
//	t.Discovery("state")  // homeassistant/sensor/living-tv/state/config
type Topics struct {
	discoveryPrefix string
	namespace       string
	deviceID        string
}

// NewTopics returns the topic builder for a device.
func NewTopics(discoveryPrefix, namespace, deviceID string) Topics {
	return Topics{
		discoveryPrefix: strings.TrimSuffix(discoveryPrefix, "/"),
		namespace:       strings.TrimSuffix(namespace, "/"),
		deviceID:        deviceID,
	}
}

// DeviceID returns the device identifier the topics are derived from.
func (t Topics) DeviceID() string {
	return t.deviceID
}

// Base returns the device's topic root, used as the "~" abbreviation in
// discovery payloads.
//
// Example: LGTV2MQTT/living-tv/
func (t Topics) Base() string {
	return fmt.Sprintf("%s/%s/", t.namespace, t.deviceID)
}

// State returns the device state topic.
//
// Example: LGTV2MQTT/living-tv/state
func (t Topics) State() string {
	return fmt.Sprintf("%s/%s/state", t.namespace, t.deviceID)
}

// Availability returns the online/offline topic.
//
// Example: LGTV2MQTT/living-tv/availability
func (t Topics) Availability() string {
	return fmt.Sprintf("%s/%s/availability", t.namespace, t.deviceID)
}

// Discovery returns the Home Assistant sensor discovery topic for an object.
//
// Example: homeassistant/sensor/living-tv/state/config
func (t Topics) Discovery(objectID string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", t.discoveryPrefix, t.deviceID, objectID)
}
