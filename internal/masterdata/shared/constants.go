package shared

const (
	// Default pagination
	DefaultPage  = 1
	DefaultLimit = 20

	// Sort directions
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ParseListQuery builds ListFilters from standard query values.
func ParseListQuery(page, limit int, search, sortBy, sortDir string) ListFilters {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	return ListFilters{Page: page, Limit: limit, Search: search, SortBy: sortBy, SortDir: sortDir}
}
