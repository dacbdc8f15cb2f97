package domain

import (
	"encoding/json"
	"fmt"
)

// ObservationPayload is the decoded shape of an Open-Meteo forecast response
// queried for current conditions.
type ObservationPayload struct {
	Latitude     float64           `json:"latitude"`
	Longitude    float64           `json:"longitude"`
	Timezone     string            `json:"timezone"`
	Elevation    float64           `json:"elevation"`
	CurrentUnits map[string]string `json:"current_units"`
	Current      CurrentBlock      `json:"current"`
}

// CurrentBlock holds the observation timestamp plus one numeric value per
// requested API parameter. The parameter set is configuration-driven, so the
// values keep their raw API names here; column mapping happens during fact
// construction.
type CurrentBlock struct {
	Time     string
	Interval int64
	Values   map[string]float64
}

// UnmarshalJSON splits the fixed fields (time, interval) from the dynamic
// metric values. Null metric values are dropped rather than stored as zero,
// so absence stays distinguishable from a measured 0.
func (c *CurrentBlock) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	c.Values = make(map[string]float64, len(fields))
	for key, raw := range fields {
		switch key {
		case "time":
			if err := json.Unmarshal(raw, &c.Time); err != nil {
				return fmt.Errorf("current.time: %w", err)
			}
		case "interval":
			if err := json.Unmarshal(raw, &c.Interval); err != nil {
				return fmt.Errorf("current.interval: %w", err)
			}
		default:
			if string(raw) == "null" {
				continue
			}
			var v float64
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("current.%s: %w", key, err)
			}
			c.Values[key] = v
		}
	}
	return nil
}

// DecodePayload validates raw response bytes against the observation schema
// and decodes them. Structural problems (missing current object, missing
// observation time, non-numeric metric values) are caught here, before any
// field mapping runs.
func DecodePayload(raw []byte) (ObservationPayload, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return ObservationPayload{}, fmt.Errorf("decode payload: %w", err)
	}
	if err := observationSchema.Validate(generic); err != nil {
		return ObservationPayload{}, fmt.Errorf("payload schema: %w", err)
	}

	var payload ObservationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ObservationPayload{}, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
