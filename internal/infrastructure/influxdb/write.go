package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// mediaStateMeasurement is the measurement every state publish is recorded under.
const mediaStateMeasurement = "media_state"

// WriteMediaState records one published device state.
//
// The application and discovery type are tags so dashboards can group by
// them; the play state is the field value. The write is non-blocking.
//
// Example:
//
//	client.WriteMediaState("living-tv", "playing", "netflix", "media")
//
// produces the line
//
//	media_state,app=netflix,device_id=living-tv,type=media play="playing"
func (c *Client) WriteMediaState(deviceID, play, app, mediaType string) {
	c.WriteMediaStateAt(deviceID, play, app, mediaType, time.Now())
}

// WriteMediaStateAt is WriteMediaState with an explicit timestamp.
func (c *Client) WriteMediaStateAt(deviceID, play, app, mediaType string, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		mediaStateMeasurement,
		map[string]string{
			"device_id": deviceID,
			"app":       app,
			"type":      mediaType,
		},
		map[string]interface{}{
			"play": play,
		},
		ts,
	)

	c.writeAPI.WritePoint(point)
}
