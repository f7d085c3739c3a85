package usecase

import "WeeklyIntel/internal/domain"

// Dedupe keeps the first record seen for each trimmed url, preserving input order.
// Records without a url are never merged with each other.
func Dedupe(records []domain.Record) []domain.Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		key := rec.IdentityKey()
		if key == "" {
			out = append(out, rec)
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}
