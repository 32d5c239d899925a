package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNoResults is returned by ExtractSchools when a payload has no results array.
var ErrNoResults = errors.New("payload has no results array")

// ExtractSchools unnests the "results" array of a raw rowstore record into
// structured rows. Casting failures return a *TransformError and no rows.
// A payload that is not a JSON object or lacks "results" returns ErrNoResults.
func ExtractSchools(rec RawRecord, transformedAt time.Time) ([]SchoolRow, error) {
	var doc struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(rec.Payload, &doc); err != nil || doc.Results == nil {
		return nil, ErrNoResults
	}

	rows := make([]SchoolRow, 0, len(doc.Results))
	for i, raw := range doc.Results {
		row, err := extractSchool(raw, rec, transformedAt)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func extractSchool(raw json.RawMessage, rec RawRecord, transformedAt time.Time) (SchoolRow, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// Non-object array elements have no scalar paths; every column is null.
		fields = nil
	}

	students, err := castInt(fields, "students")
	if err != nil {
		return SchoolRow{}, err
	}
	lat, err := castFloat(fields, "lat")
	if err != nil {
		return SchoolRow{}, err
	}
	lon, err := castFloat(fields, "long")
	if err != nil {
		return SchoolRow{}, err
	}

	schoolType, _ := scalar(fields, "type")
	operation, _ := scalar(fields, "operation")

	row := SchoolRow{
		FetchedAt:         rec.IngestedAt,
		SourceURL:         rec.Source,
		SchoolID:          text(fields, "id"),
		SchoolName:        text(fields, "name"),
		Street:            text(fields, "street"),
		PostalCode:        text(fields, "postalcode"),
		Locality:          text(fields, "locality"),
		StudentCount:      students,
		SchoolType:        schoolType,
		OperationType:     operation,
		Latitude:          lat,
		Longitude:         lon,
		WebsiteURL:        text(fields, "url"),
		SourceCode:        text(fields, "source"),
		SchoolTypeName:    SchoolTypeName(schoolType),
		OperationTypeName: OperationTypeName(operation),
		SizeCategory:      SizeCategory(students),
		TransformedAt:     transformedAt,
	}
	return row, nil
}

// scalar returns the text of a scalar JSON value at key. Strings are unquoted,
// numbers and booleans keep their literal text. Null, missing, objects and
// arrays report false.
func scalar(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[', 'n':
		return "", false
	default:
		return string(raw), true
	}
}

func text(fields map[string]json.RawMessage, key string) string {
	s, _ := scalar(fields, key)
	return s
}

func castInt(fields map[string]json.RawMessage, key string) (*int64, error) {
	s, ok := scalar(fields, key)
	if !ok {
		return nil, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, &TransformError{Field: key, Value: s, Err: errors.New("not an integer")}
	}
	return &n, nil
}

func castFloat(fields map[string]json.RawMessage, key string) (*float64, error) {
	s, ok := scalar(fields, key)
	if !ok {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, &TransformError{Field: key, Value: s, Err: errors.New("not a number")}
	}
	return &f, nil
}
