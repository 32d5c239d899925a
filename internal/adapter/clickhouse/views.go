package clickhouse

import (
	"fmt"

	"github.com/couchcryptid/open-data-elt/internal/analytics"
)

// byStudents orders (student_count, school_name) tuples by count descending,
// nulls last, ties by name, and keeps the names.
const byStudents = `arrayMap(t -> t.2, arraySort(t -> (isNull(t.1), -ifNull(t.1, 0), t.2), groupArray((student_count, school_name))))`

func viewSQL(view, source string) (string, error) {
	switch view {
	case analytics.SummaryView:
		return fmt.Sprintf(`SELECT
	school_type_name,
	operation_type_name,
	count() AS antal_enheter,
	sum(student_count) AS totalt_antal_barn,
	avg(student_count) AS genomsnitt_barn_per_enhet,
	min(student_count) AS minsta_enhet,
	max(student_count) AS storsta_enhet
FROM %s
GROUP BY school_type_name, operation_type_name
ORDER BY totalt_antal_barn DESC NULLS LAST, school_type_name, operation_type_name`, source), nil

	case analytics.GeographyView:
		return fmt.Sprintf(`SELECT
	locality,
	school_type_name,
	count() AS antal_enheter,
	sum(student_count) AS totalt_barn,
	arraySlice(%s, 1, 3) AS storsta_enheterna
FROM %s
GROUP BY locality, school_type_name
ORDER BY locality, totalt_barn DESC NULLS LAST, school_type_name`, byStudents, source), nil

	case analytics.SizesView:
		return fmt.Sprintf(`SELECT
	size_category,
	school_type_name,
	count() AS antal_enheter,
	avg(student_count) AS genomsnittlig_storlek,
	arrayStringConcat(%s, ', ') AS enheter
FROM %s
GROUP BY size_category, school_type_name
ORDER BY
	multiIf(size_category = 'Liten', 1, size_category = 'Medel', 2, size_category = 'Stor', 3, 0),
	school_type_name`, byStudents, source), nil

	default:
		return "", fmt.Errorf("unknown view %q", view)
	}
}
