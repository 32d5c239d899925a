package sqlstore

import (
	"fmt"

	"github.com/couchcryptid/open-data-elt/internal/analytics"
)

// viewSQL returns the SELECT behind an analytics view. The column aliases are
// the reporting names consumers query by.
func viewSQL(dialect Dialect, view, source string) (string, error) {
	// Aggregates with ORDER BY and FILTER exist in both dialects; only the
	// collection functions differ.
	jsonAgg, stringAgg := "json_agg", "string_agg"
	if dialect == SQLite {
		jsonAgg, stringAgg = "json_group_array", "group_concat"
	}

	switch view {
	case analytics.SummaryView:
		return fmt.Sprintf(`SELECT
	school_type_name,
	operation_type_name,
	COUNT(*) AS antal_enheter,
	SUM(student_count) AS totalt_antal_barn,
	AVG(student_count) AS genomsnitt_barn_per_enhet,
	MIN(student_count) AS minsta_enhet,
	MAX(student_count) AS storsta_enhet
FROM %s
GROUP BY school_type_name, operation_type_name
ORDER BY totalt_antal_barn DESC NULLS LAST, school_type_name, operation_type_name`, source), nil

	case analytics.GeographyView:
		return fmt.Sprintf(`SELECT
	locality,
	school_type_name,
	COUNT(*) AS antal_enheter,
	SUM(student_count) AS totalt_barn,
	%s(school_name ORDER BY rn) FILTER (WHERE rn <= 3) AS storsta_enheterna
FROM (
	SELECT *, ROW_NUMBER() OVER (
		PARTITION BY locality, school_type_name
		ORDER BY student_count DESC NULLS LAST, school_name
	) AS rn
	FROM %s
) ranked
GROUP BY locality, school_type_name
ORDER BY locality, totalt_barn DESC NULLS LAST, school_type_name`, jsonAgg, source), nil

	case analytics.SizesView:
		return fmt.Sprintf(`SELECT
	size_category,
	school_type_name,
	COUNT(*) AS antal_enheter,
	AVG(student_count) AS genomsnittlig_storlek,
	%s(school_name, ', ' ORDER BY student_count DESC NULLS LAST, school_name) AS enheter
FROM %s
GROUP BY size_category, school_type_name
ORDER BY
	CASE size_category WHEN 'Liten' THEN 1 WHEN 'Medel' THEN 2 WHEN 'Stor' THEN 3 ELSE 0 END,
	school_type_name`, stringAgg, source), nil

	default:
		return "", fmt.Errorf("unknown view %q", view)
	}
}
