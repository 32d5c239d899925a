package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// RawRecord is one fetched document landed verbatim with its ingestion metadata.
type RawRecord struct {
	IngestedAt time.Time         `json:"ingestion_timestamp"`
	Source     string            `json:"source"`
	Params     map[string]string `json:"source_params"`
	Payload    json.RawMessage   `json:"payload"`
}

// NewRawRecord stamps a payload with the current time. Params are copied so
// later changes by the caller do not leak into the record.
func NewRawRecord(source string, params map[string]string, payload json.RawMessage) RawRecord {
	return RawRecord{
		IngestedAt: Now(),
		Source:     source,
		Params:     maps.Clone(params),
		Payload:    payload,
	}
}

// Hour is a single hourly reading kept verbatim, keyed by its epoch time.
type Hour struct {
	ID   int64
	Data json.RawMessage
}

// HourlyBatch is a weather history payload exploded into hourly readings.
type HourlyBatch struct {
	// ModifiedAt is the provider's local time for the location, without zone.
	ModifiedAt time.Time
	Hours      []Hour
}

// localtimeLayout is the format of location.localtime in WeatherAPI responses.
const localtimeLayout = "2006-01-02 15:04"

// ExplodeHours splits a weather history payload into its hourly readings for
// the first forecast day. Each hour's JSON is kept as sent.
func ExplodeHours(payload json.RawMessage) (HourlyBatch, error) {
	var doc struct {
		Location struct {
			Localtime string `json:"localtime"`
		} `json:"location"`
		Forecast struct {
			ForecastDay []struct {
				Hour []json.RawMessage `json:"hour"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return HourlyBatch{}, fmt.Errorf("parse weather payload: %w", err)
	}
	if len(doc.Forecast.ForecastDay) == 0 {
		return HourlyBatch{}, fmt.Errorf("weather payload has no forecastday")
	}

	modified, err := time.Parse(localtimeLayout, doc.Location.Localtime)
	if err != nil {
		return HourlyBatch{}, fmt.Errorf("parse location.localtime: %w", err)
	}

	hours := doc.Forecast.ForecastDay[0].Hour
	batch := HourlyBatch{ModifiedAt: modified, Hours: make([]Hour, 0, len(hours))}
	for i, raw := range hours {
		var h struct {
			TimeEpoch *int64 `json:"time_epoch"`
		}
		if err := json.Unmarshal(raw, &h); err != nil {
			return HourlyBatch{}, fmt.Errorf("parse hour %d: %w", i, err)
		}
		if h.TimeEpoch == nil {
			return HourlyBatch{}, fmt.Errorf("hour %d has no time_epoch", i)
		}
		batch.Hours = append(batch.Hours, Hour{ID: *h.TimeEpoch, Data: raw})
	}
	return batch, nil
}
