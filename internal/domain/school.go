package domain

import "time"

// SchoolRow is the structured, typed projection of one school unit from a raw
// rowstore payload. Column names match the structured warehouse table.
type SchoolRow struct {
	FetchedAt         time.Time `json:"fetched_at"`
	SourceURL         string    `json:"source_url"`
	SchoolID          string    `json:"school_id"`
	SchoolName        string    `json:"school_name"`
	Street            string    `json:"street"`
	PostalCode        string    `json:"postal_code"`
	Locality          string    `json:"locality"`
	StudentCount      *int64    `json:"student_count"`
	SchoolType        string    `json:"school_type"`
	OperationType     string    `json:"operation_type"`
	Latitude          *float64  `json:"latitude"`
	Longitude         *float64  `json:"longitude"`
	WebsiteURL        string    `json:"website_url"`
	SourceCode        string    `json:"source_code"`
	SchoolTypeName    string    `json:"school_type_name"`
	OperationTypeName string    `json:"operation_type_name"`
	SizeCategory      string    `json:"size_category"`
	TransformedAt     time.Time `json:"transformed_at"`
}

// Size categories, in their reporting order.
const (
	SizeSmall  = "Liten"
	SizeMedium = "Medel"
	SizeLarge  = "Stor"
)

// Unknown is the display name for codes outside the lookup tables.
const Unknown = "Okänd"

var schoolTypeNames = map[string]string{
	"FS": "Förskola",
	"GR": "Grundskola",
	"FD": "Familjedaghem",
}

var operationTypeNames = map[string]string{
	"K": "Kommunal",
	"F": "Fristående",
}

// SchoolTypeName maps a school type code to its display name.
func SchoolTypeName(code string) string {
	if name, ok := schoolTypeNames[code]; ok {
		return name
	}
	return Unknown
}

// OperationTypeName maps an operation code to its display name.
func OperationTypeName(code string) string {
	if name, ok := operationTypeNames[code]; ok {
		return name
	}
	return Unknown
}

// SizeCategory buckets a student count: <30 Liten, <100 Medel, otherwise Stor.
// A nil count falls through both thresholds.
func SizeCategory(students *int64) string {
	if students == nil {
		return SizeLarge
	}
	switch n := *students; {
	case n < 30:
		return SizeSmall
	case n < 100:
		return SizeMedium
	default:
		return SizeLarge
	}
}

// SizeRank orders size categories for reporting. Unknown categories sort first,
// the way a NULL sort key does in an ascending ORDER BY.
func SizeRank(category string) int {
	switch category {
	case SizeSmall:
		return 1
	case SizeMedium:
		return 2
	case SizeLarge:
		return 3
	default:
		return 0
	}
}
