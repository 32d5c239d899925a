package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/open-data-elt/internal/domain"
)

// extractRows unnests every raw record into structured rows, in record order.
// Records without a results array are skipped with a warning; any casting
// failure aborts with no rows.
func (p *Pipeline) extractRows(records []domain.RawRecord, transformedAt time.Time) ([]domain.SchoolRow, error) {
	rows := make([]domain.SchoolRow, 0)
	for _, rec := range records {
		extracted, err := domain.ExtractSchools(rec, transformedAt)
		if errors.Is(err, domain.ErrNoResults) {
			p.logger.Warn("raw record has no results, skipping",
				"table", p.cfg.RawTable.String(), "fetched_at", rec.IngestedAt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("transform record fetched at %s: %w", rec.IngestedAt.Format(time.RFC3339), err)
		}
		rows = append(rows, extracted...)
	}
	return rows, nil
}
