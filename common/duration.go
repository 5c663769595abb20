package common

import (
	"encoding/json"
	"strconv"
	"time"
)

// Duration round-trips through JSON in the human-readable form
// ("30s", "1m30s") so result documents stay hand-editable. Bare
// numbers are accepted on the way in and read as seconds, the form
// older documents recorded timing knobs in.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) Seconds() float64 { return time.Duration(d).Seconds() }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		secs, numErr := strconv.ParseFloat(string(data), 64)
		if numErr != nil {
			return err
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
