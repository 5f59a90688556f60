package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	measurementTemperature = "mug_temperature"
	measurementBattery     = "mug_battery"
)

// WriteTemperature records a temperature sample for a device.
//
// The write is non-blocking; the point is queued and flushed by the
// batch writer. Call sites never wait on the telemetry sink.
//
// Parameters:
//   - deviceID: Sanitised device address (colons replaced)
//   - currentC: Current liquid temperature in Celsius
//   - targetC: Target temperature in Celsius (0 when the heater is off)
func (c *Client) WriteTemperature(deviceID string, currentC, targetC float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementTemperature,
		map[string]string{
			"device": deviceID,
		},
		map[string]interface{}{
			"current_c": currentC,
			"target_c":  targetC,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteBattery records a battery sample for a device.
//
// Parameters:
//   - deviceID: Sanitised device address
//   - percent: Battery charge percentage (0-100)
//   - charging: Whether the device is on its charging coaster
func (c *Client) WriteBattery(deviceID string, percent float64, charging bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementBattery,
		map[string]string{
			"device": deviceID,
		},
		map[string]interface{}{
			"percent":  percent,
			"charging": charging,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
