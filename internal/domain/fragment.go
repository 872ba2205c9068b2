package domain

// FragmentKind identifies the predicate a query fragment carries
type FragmentKind string

const (
	FragmentEqual        FragmentKind = "equal"
	FragmentIn           FragmentKind = "in"
	FragmentGreaterEqual FragmentKind = "gte"
	FragmentLessEqual    FragmentKind = "lte"
	FragmentSearch       FragmentKind = "search"
	FragmentOrder        FragmentKind = "order"
	FragmentOffset       FragmentKind = "offset"
	FragmentLimit        FragmentKind = "limit"
)

// Fragment is one store query predicate. Store backends translate fragments into their native
// query language; callers only decide which predicates to request.
type Fragment struct {
	Kind       FragmentKind `json:"kind"`
	Field      string       `json:"field,omitempty"`
	Fields     []string     `json:"fields,omitempty"`
	Values     []any        `json:"values,omitempty"`
	Descending bool         `json:"descending,omitempty"`
	N          int          `json:"n,omitempty"`
}

func Equal(field string, value any) Fragment {
	return Fragment{Kind: FragmentEqual, Field: field, Values: []any{value}}
}

func In(field string, values ...any) Fragment {
	return Fragment{Kind: FragmentIn, Field: field, Values: values}
}

func GreaterEqual(field string, value any) Fragment {
	return Fragment{Kind: FragmentGreaterEqual, Field: field, Values: []any{value}}
}

func LessEqual(field string, value any) Fragment {
	return Fragment{Kind: FragmentLessEqual, Field: field, Values: []any{value}}
}

// Search matches text case-insensitively against any of the given fields
func Search(text string, fields ...string) Fragment {
	return Fragment{Kind: FragmentSearch, Fields: fields, Values: []any{text}}
}

func OrderBy(field string, descending bool) Fragment {
	return Fragment{Kind: FragmentOrder, Field: field, Descending: descending}
}

func Offset(n int) Fragment {
	return Fragment{Kind: FragmentOffset, N: n}
}

func Limit(n int) Fragment {
	return Fragment{Kind: FragmentLimit, N: n}
}

// Value returns the first value of the fragment, or nil
func (f Fragment) Value() any {
	if len(f.Values) == 0 {
		return nil
	}
	return f.Values[0]
}

// IsPagination reports whether the fragment only shapes the page (ordering, offset, limit)
func (f Fragment) IsPagination() bool {
	switch f.Kind {
	case FragmentOrder, FragmentOffset, FragmentLimit:
		return true
	}
	return false
}

// WithoutPagination returns the predicate fragments only, as used by count queries
func WithoutPagination(fragments []Fragment) []Fragment {
	out := make([]Fragment, 0, len(fragments))
	for _, f := range fragments {
		if !f.IsPagination() {
			out = append(out, f)
		}
	}
	return out
}
