package flowpager

const (
	NoLimit = -1

	DefaultPageSize         = 20
	DefaultMaxRetainedItems = 200
)

// IsNormalizedPageSize returns pageSize clamped into [1, maxPageSize]. The
// second value reports whether pageSize was already within bounds.
func IsNormalizedPageSize(pageSize int, maxPageSize int) (int, bool) {
	if pageSize <= 0 {
		return DefaultPageSize, false
	} else if maxPageSize != NoLimit && pageSize > maxPageSize {
		return maxPageSize, false
	}

	return pageSize, true
}

func NormalizePageSize(pageSize int, maxPageSize int) int {
	ret, _ := IsNormalizedPageSize(pageSize, maxPageSize)
	return ret
}
