package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// Page holds limit/offset pagination inputs from controllers or services.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to the configured default and maximum limits and
// floors a negative offset at zero.
func (p Page) Normalize() Page {
	return Page{
		Limit:  NormalizeLimit(p.Limit),
		Offset: max(p.Offset, 0),
	}
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
