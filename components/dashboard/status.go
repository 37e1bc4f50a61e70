package dashboard

import "strings"

// BadgeCategory is the colour family a status value renders with.
type BadgeCategory string

const (
	BadgeSuccess BadgeCategory = "success"
	BadgeWarning BadgeCategory = "warning"
	BadgeDanger  BadgeCategory = "danger"
	BadgeInfo    BadgeCategory = "info"
	BadgeNeutral BadgeCategory = "neutral"
)

// StatusRules maps status values (case-insensitive) to badge categories.
type StatusRules map[string]BadgeCategory

// Resolve returns the category for status, neutral when unknown.
func (r StatusRules) Resolve(status string) BadgeCategory {
	key := strings.ToLower(strings.TrimSpace(status))
	if key == "" {
		return BadgeNeutral
	}
	for value, category := range r {
		if strings.ToLower(value) == key {
			return category
		}
	}
	return BadgeNeutral
}

// With returns a copy extended with extra rules.
func (r StatusRules) With(extra StatusRules) StatusRules {
	out := make(StatusRules, len(r)+len(extra))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// DefaultStatusRules is the vocabulary shared by order and delivery style entities.
func DefaultStatusRules() StatusRules {
	return StatusRules{
		"Complete":   BadgeSuccess,
		"Completed":  BadgeSuccess,
		"Delivered":  BadgeSuccess,
		"Accepted":   BadgeSuccess,
		"Pending":    BadgeWarning,
		"Cancelled":  BadgeDanger,
		"Rejected":   BadgeDanger,
		"In Transit": BadgeInfo,
		"Processing": BadgeInfo,
	}
}
