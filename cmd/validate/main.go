// Command validate performs offline integrity checks on a rowstore schools
// dataset document: the payload shape, the structured transform and the
// consistency of the analytics views computed from it.
//
// Usage:
//
//	go run ./cmd/validate -dataset internal/pipeline/testdata/schools.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/open-data-elt/internal/analytics"
	"github.com/couchcryptid/open-data-elt/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataset := flag.String("dataset", "", "path to a rowstore dataset JSON document")
	flag.Parse()

	if *dataset == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dataset); code != 0 {
		os.Exit(code)
	}
}

func run(path string) int {
	fmt.Println("=== Schools Dataset Validation ===")
	fmt.Println()

	payload, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read dataset: %v\n", err)
		return 1
	}
	rec := domain.RawRecord{IngestedAt: time.Now().UTC(), Source: path, Payload: payload}

	shape, results := validateShape(payload)
	transform, rows := validateTransform(rec, results)
	phases := []*phase{shape, transform, validateViews(rows)}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d results, %d structured rows\n", len(results), len(rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validateShape checks the rowstore envelope and the identity fields of
// every result.
func validateShape(payload []byte) (*phase, []map[string]any) {
	p := &phase{name: "Phase 1: Dataset shape"}

	var doc struct {
		ResultCount *int             `json:"resultCount"`
		Results     []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		p.errorf("payload is not a rowstore document: %v", err)
		return p, nil
	}
	if doc.Results == nil {
		p.errorf("payload has no results array")
		return p, nil
	}
	if doc.ResultCount != nil && *doc.ResultCount != len(doc.Results) {
		p.errorf("resultCount is %d but results has %d elements", *doc.ResultCount, len(doc.Results))
	}

	seen := make(map[string]int, len(doc.Results))
	for i, r := range doc.Results {
		id, _ := r["id"].(string)
		if id == "" {
			p.errorf("result %d: id is missing", i)
		} else if prev, dup := seen[id]; dup {
			p.errorf("result %d: id %q already used by result %d", i, id, prev)
		} else {
			seen[id] = i
		}
		if name, _ := r["name"].(string); name == "" {
			p.errorf("result %d: name is missing", i)
		}
	}
	return p, doc.Results
}

// validateTransform runs the structured transform and checks each row
// against its source result.
func validateTransform(rec domain.RawRecord, results []map[string]any) (*phase, []domain.SchoolRow) {
	p := &phase{name: "Phase 2: Structured transform"}

	rows, err := domain.ExtractSchools(rec, rec.IngestedAt)
	if err != nil {
		p.errorf("transform failed: %v", err)
		return p, nil
	}
	if len(rows) != len(results) {
		p.errorf("transform produced %d rows from %d results", len(rows), len(results))
	}

	for i, row := range rows {
		pf := func(format string, args ...any) {
			p.errorf("row %d (%s): %s", i, row.SchoolName, fmt.Sprintf(format, args...))
		}
		if row.SchoolTypeName == domain.Unknown {
			pf("unknown school type code %q", row.SchoolType)
		}
		if row.OperationTypeName == domain.Unknown {
			pf("unknown operation code %q", row.OperationType)
		}
		if row.SizeCategory != domain.SizeCategory(row.StudentCount) {
			pf("size category %q does not match student count", row.SizeCategory)
		}
		if row.StudentCount != nil && *row.StudentCount < 0 {
			pf("negative student count %d", *row.StudentCount)
		}
		if (row.Latitude == nil) != (row.Longitude == nil) {
			pf("only one of latitude and longitude is set")
		}
		if row.Latitude != nil && (*row.Latitude < -90 || *row.Latitude > 90) {
			pf("latitude %v out of range", *row.Latitude)
		}
		if row.Longitude != nil && (*row.Longitude < -180 || *row.Longitude > 180) {
			pf("longitude %v out of range", *row.Longitude)
		}
	}
	return p, rows
}

// validateViews checks that every view accounts for every row exactly once.
func validateViews(rows []domain.SchoolRow) *phase {
	p := &phase{name: "Phase 3: Analytics view consistency"}
	views := analytics.Compute(rows)

	var wantStudents int64
	for _, r := range rows {
		if r.StudentCount != nil {
			wantStudents += *r.StudentCount
		}
	}

	var summaryUnits, geoUnits, sizeUnits int
	var summaryStudents, geoStudents int64
	for _, s := range views.Summary {
		summaryUnits += s.Units
		if s.TotalStudents != nil {
			summaryStudents += *s.TotalStudents
		}
	}
	for _, g := range views.Geography {
		geoUnits += g.Units
		if g.TotalStudents != nil {
			geoStudents += *g.TotalStudents
		}
		if len(g.LargestUnits) > 3 || len(g.LargestUnits) > g.Units {
			p.errorf("%s/%s lists %d largest units for %d units", g.Locality, g.SchoolTypeName, len(g.LargestUnits), g.Units)
		}
	}
	for _, s := range views.Sizes {
		sizeUnits += s.Units
		if domain.SizeRank(s.SizeCategory) == 0 {
			p.errorf("unexpected size category %q", s.SizeCategory)
		}
	}

	for name, units := range map[string]int{
		analytics.SummaryView:   summaryUnits,
		analytics.GeographyView: geoUnits,
		analytics.SizesView:     sizeUnits,
	} {
		if units != len(rows) {
			p.errorf("%s counts %d units, want %d", name, units, len(rows))
		}
	}
	if summaryStudents != wantStudents {
		p.errorf("%s totals %d students, want %d", analytics.SummaryView, summaryStudents, wantStudents)
	}
	if geoStudents != wantStudents {
		p.errorf("%s totals %d students, want %d", analytics.GeographyView, geoStudents, wantStudents)
	}
	return p
}
