// Package analytics computes the reporting views over structured school rows.
//
// The views hold no state of their own: every call recomputes them from the
// rows it is given, so identical inputs always yield identical output.
// Aggregates ignore null student counts and are null when a group has no
// counts at all. Descending orders put nulls last, and ties fall back to the
// group keys so the output order is fully determined.
package analytics

import (
	"cmp"
	"slices"
	"strings"

	"github.com/couchcryptid/open-data-elt/internal/domain"
)

// View names, as materialized in the warehouse.
const (
	SummaryView   = "school_summary"
	GeographyView = "school_geography"
	SizesView     = "school_sizes"
)

// ViewNames lists the views in creation order.
var ViewNames = []string{SummaryView, GeographyView, SizesView}

// topUnits is how many school names the geography view keeps per group.
const topUnits = 3

// SummaryRow aggregates student counts per school type and operation type.
type SummaryRow struct {
	SchoolTypeName    string   `json:"school_type_name"`
	OperationTypeName string   `json:"operation_type_name"`
	Units             int      `json:"antal_enheter"`
	TotalStudents     *int64   `json:"totalt_antal_barn"`
	AvgStudents       *float64 `json:"genomsnitt_barn_per_enhet"`
	MinStudents       *int64   `json:"minsta_enhet"`
	MaxStudents       *int64   `json:"storsta_enhet"`
}

// GeographyRow aggregates per locality and school type, with the names of
// the largest units.
type GeographyRow struct {
	Locality       string   `json:"locality"`
	SchoolTypeName string   `json:"school_type_name"`
	Units          int      `json:"antal_enheter"`
	TotalStudents  *int64   `json:"totalt_barn"`
	LargestUnits   []string `json:"storsta_enheterna"`
}

// SizesRow aggregates per size category and school type.
type SizesRow struct {
	SizeCategory   string   `json:"size_category"`
	SchoolTypeName string   `json:"school_type_name"`
	Units          int      `json:"antal_enheter"`
	AvgStudents    *float64 `json:"genomsnittlig_storlek"`
	UnitNames      string   `json:"enheter"`
}

// Views bundles all three views.
type Views struct {
	Summary   []SummaryRow   `json:"school_summary"`
	Geography []GeographyRow `json:"school_geography"`
	Sizes     []SizesRow     `json:"school_sizes"`
}

// Compute builds every view from rows.
func Compute(rows []domain.SchoolRow) Views {
	return Views{
		Summary:   Summary(rows),
		Geography: Geography(rows),
		Sizes:     Sizes(rows),
	}
}

// Summary groups by (school type name, operation type name), ordered by
// total students descending.
func Summary(rows []domain.SchoolRow) []SummaryRow {
	groups := groupBy(rows, func(r domain.SchoolRow) pair { return pair{r.SchoolTypeName, r.OperationTypeName} })

	out := make([]SummaryRow, 0, len(groups))
	for _, g := range groups {
		s := aggregate(g.rows)
		out = append(out, SummaryRow{
			SchoolTypeName:    g.key.a,
			OperationTypeName: g.key.b,
			Units:             len(g.rows),
			TotalStudents:     s.sum,
			AvgStudents:       s.avg,
			MinStudents:       s.min,
			MaxStudents:       s.max,
		})
	}
	slices.SortFunc(out, func(x, y SummaryRow) int {
		return cmp.Or(
			descNullsLast(x.TotalStudents, y.TotalStudents),
			cmp.Compare(x.SchoolTypeName, y.SchoolTypeName),
			cmp.Compare(x.OperationTypeName, y.OperationTypeName),
		)
	})
	return out
}

// Geography groups by (locality, school type name), ordered by locality and
// then total students descending.
func Geography(rows []domain.SchoolRow) []GeographyRow {
	groups := groupBy(rows, func(r domain.SchoolRow) pair { return pair{r.Locality, r.SchoolTypeName} })

	out := make([]GeographyRow, 0, len(groups))
	for _, g := range groups {
		names := namesByStudents(g.rows)
		out = append(out, GeographyRow{
			Locality:       g.key.a,
			SchoolTypeName: g.key.b,
			Units:          len(g.rows),
			TotalStudents:  aggregate(g.rows).sum,
			LargestUnits:   names[:min(topUnits, len(names))],
		})
	}
	slices.SortFunc(out, func(x, y GeographyRow) int {
		return cmp.Or(
			cmp.Compare(x.Locality, y.Locality),
			descNullsLast(x.TotalStudents, y.TotalStudents),
			cmp.Compare(x.SchoolTypeName, y.SchoolTypeName),
		)
	})
	return out
}

// Sizes groups by (size category, school type name), ordered Liten, Medel,
// Stor and then by school type name.
func Sizes(rows []domain.SchoolRow) []SizesRow {
	groups := groupBy(rows, func(r domain.SchoolRow) pair { return pair{r.SizeCategory, r.SchoolTypeName} })

	out := make([]SizesRow, 0, len(groups))
	for _, g := range groups {
		out = append(out, SizesRow{
			SizeCategory:   g.key.a,
			SchoolTypeName: g.key.b,
			Units:          len(g.rows),
			AvgStudents:    aggregate(g.rows).avg,
			UnitNames:      strings.Join(namesByStudents(g.rows), ", "),
		})
	}
	slices.SortFunc(out, func(x, y SizesRow) int {
		return cmp.Or(
			cmp.Compare(domain.SizeRank(x.SizeCategory), domain.SizeRank(y.SizeCategory)),
			cmp.Compare(x.SchoolTypeName, y.SchoolTypeName),
			cmp.Compare(x.SizeCategory, y.SizeCategory),
		)
	})
	return out
}

type pair struct{ a, b string }

type group struct {
	key  pair
	rows []domain.SchoolRow
}

// groupBy partitions rows by key, keeping first-seen group order.
func groupBy(rows []domain.SchoolRow, key func(domain.SchoolRow) pair) []group {
	index := make(map[pair]int)
	var groups []group
	for _, r := range rows {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, group{key: k})
		}
		groups[i].rows = append(groups[i].rows, r)
	}
	return groups
}

type stats struct {
	sum, min, max *int64
	avg           *float64
}

func aggregate(rows []domain.SchoolRow) stats {
	var (
		s     stats
		total int64
		n     int
	)
	for _, r := range rows {
		if r.StudentCount == nil {
			continue
		}
		v := *r.StudentCount
		if n == 0 || v < *s.min {
			s.min = &v
		}
		if n == 0 || v > *s.max {
			s.max = &v
		}
		total += v
		n++
	}
	if n > 0 {
		avg := float64(total) / float64(n)
		s.sum, s.avg = &total, &avg
	}
	return s
}

// namesByStudents lists school names by student count descending, nulls
// last, ties by name.
func namesByStudents(rows []domain.SchoolRow) []string {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(x, y domain.SchoolRow) int {
		return cmp.Or(
			descNullsLast(x.StudentCount, y.StudentCount),
			cmp.Compare(x.SchoolName, y.SchoolName),
		)
	})
	names := make([]string, len(sorted))
	for i, r := range sorted {
		names[i] = r.SchoolName
	}
	return names
}

func descNullsLast(x, y *int64) int {
	switch {
	case x == nil && y == nil:
		return 0
	case x == nil:
		return 1
	case y == nil:
		return -1
	default:
		return cmp.Compare(*y, *x)
	}
}
