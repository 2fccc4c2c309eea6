package services

import "strings"

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Page is a one-based page request.
type Page struct {
	Page    int
	PerPage int
}

// Normalise applies the default and maximum page size.
func (p Page) Normalise() Page {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = defaultPageSize
	}
	if p.PerPage > maxPageSize {
		p.PerPage = maxPageSize
	}
	return p
}

func (p Page) offset() int {
	return (p.Page - 1) * p.PerPage
}

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// likePattern builds a case-insensitive LIKE pattern escaped with "!".
func likePattern(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(value)
	return "%" + value + "%"
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
