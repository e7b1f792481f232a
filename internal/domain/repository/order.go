package repository

// SortOrder is the minute ordering of a price range query.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

func IsValidOrder(o SortOrder) bool {
	switch o {
	case Ascending, Descending:
		return true
	default:
		return false
	}
}

// NormalizeOrder converts a raw string to a valid order, ascending by default.
func NormalizeOrder(s string) SortOrder {
	o := SortOrder(s)
	if IsValidOrder(o) {
		return o
	}
	return Ascending
}

// SQL returns the ORDER BY direction keyword.
func (o SortOrder) SQL() string {
	if o == Descending {
		return "DESC"
	}
	return "ASC"
}
