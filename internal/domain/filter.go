package domain

import "fmt"

// Filter restricts a search to entries whose metadata equals every given value.
type Filter map[string]any

// Matches reports whether md satisfies every condition in f.
// Values are compared by their printed form so that 3 and 3.0 are equal
// after a JSON round trip.
func (f Filter) Matches(md Metadata) bool {
	for k, want := range f {
		got, ok := md[k]
		if !ok {
			return false
		}
		if scalarString(got) != scalarString(want) {
			return false
		}
	}
	return true
}

func scalarString(v any) string {
	switch x := v.(type) {
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
	case float32:
		if x == float32(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
	}
	return fmt.Sprint(v)
}
