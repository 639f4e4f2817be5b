// Package sliceutil provides generic slice helpers.
package sliceutil

// Deduplicate returns the items with distinct keys, keeping the first
// occurrence and the input order. Items whose key is the zero value are
// dropped, so a normalizing key func can also filter:
//
//	emails := sliceutil.Deduplicate(raw, admin.NormalizeEmail)
func Deduplicate[T any, K comparable](items []T, key func(T) K) []T {
	var zero K
	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if k == zero {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}
