// Package domain models the open data this service ingests and the typed
// rows derived from it.
//
// # Data Sources
//
// Weather history comes from the WeatherAPI.com history endpoint
// (https://api.weatherapi.com/v1/history.json), queried with a location
// ("q", preferably "lat,lon" such as "59.3293,18.0686") and a date ("dt",
// YYYY-MM-DD). The response nests one day of hourly readings:
//
//	{
//	  "location": {"name": "Stockholm", "localtime": "2025-08-19 12:00", ...},
//	  "forecast": {"forecastday": [{"date": "2025-08-19", "hour": [{"time_epoch": 1755554400, ...}, ...]}]}
//	}
//
// School and preschool units come from the Tomelilla municipality rowstore
// (https://data.tomelilla.se/rowstore/dataset/...). The response carries a
// "resultCount" and a "results" array whose entries hold mostly string values:
//
//	{"id": "12", "name": "Byavångsskolan", "students": "245", "type": "GR",
//	 "operation": "K", "lat": "55.5436", "long": "13.9480", "locality": "Tomelilla", ...}
//
// # Raw Records
//
// Every fetched document is landed verbatim as a [RawRecord]: the payload bytes
// are never re-encoded, so reading a record back yields exactly the bytes the
// provider sent. Raw records are append-only; nothing in this module updates or
// deletes them. Structured rows and views are derived and can always be rebuilt.
//
// # School Classification
//
// Type codes:
//
//	FS → Förskola (preschool)
//	GR → Grundskola (compulsory school)
//	FD → Familjedaghem (family daycare)
//	anything else → Okänd
//
// Operation codes:
//
//	K → Kommunal (municipal)
//	F → Fristående (independent)
//	anything else → Okänd
//
// Size buckets by student count:
//
//	< 30        Liten
//	30 – 99     Medel
//	≥ 100       Stor
//
// A missing student count fails both thresholds and lands in "Stor", which is
// what the warehouse CASE expression this replaces produced.
//
// # Casting
//
// Path extraction returns the text of any scalar (JSON strings and numbers
// alike). Student counts are cast to int64 and coordinates to float64; a
// value that does not parse fails the whole transform run with a
// [TransformError]. Null or missing values stay null.
package domain
