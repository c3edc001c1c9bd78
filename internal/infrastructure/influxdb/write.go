package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteOverrideEvent records one point per debounced override event,
// tagged by unit and category so dashboards can count overrides per unit.
func (c *Client) WriteOverrideEvent(unitID string, category string, divergences int, detectedAt time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"override_events",
		map[string]string{
			"unit_id":  unitID,
			"category": category,
		},
		map[string]interface{}{
			"divergences": divergences,
		},
		detectedAt,
	)

	c.writeAPI.WritePoint(point)
}

// WriteTemperatureMetric records inside/outside readings for climate
// trending. Pass 0 for outsideC when the unit does not report it.
func (c *Client) WriteTemperatureMetric(unitID string, insideC float64, outsideC float64) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"inside_c": insideC,
	}
	if outsideC != 0 {
		fields["outside_c"] = outsideC
	}

	point := write.NewPoint(
		"temperature",
		map[string]string{
			"unit_id": unitID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteUnitStateMetric records a confirmed state sample, one point per
// accepted poll. Mode is a tag so queries can group by operating mode;
// target setpoint is omitted for modes without one.
func (c *Client) WriteUnitStateMetric(unitID string, mode string, powerOn bool, targetTempC float64) {
	if !c.IsConnected() {
		return
	}

	power := 0.0
	if powerOn {
		power = 1.0
	}

	fields := map[string]interface{}{
		"power": power,
	}
	if targetTempC != 0 {
		fields["target_temp_c"] = targetTempC
	}

	point := write.NewPoint(
		"unit_state",
		map[string]string{
			"unit_id": unitID,
			"mode":    mode,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

