package storage

import "strings"

var likeEscaper = strings.NewReplacer(
	`\`, `\\`,
	"%", `\%`,
	"_", `\_`,
)

// EscapeLike escapes LIKE wildcards so term matches literally.
// Pair it with `ESCAPE '\'` in the statement.
func EscapeLike(term string) string {
	return likeEscaper.Replace(term)
}

// PrefixPattern returns a LIKE pattern matching values that start with prefix.
func PrefixPattern(prefix string) string {
	return EscapeLike(prefix) + "%"
}
