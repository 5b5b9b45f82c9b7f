package normalize

import "strings"

// CompanyKey folds a company name to the form used for dimension identity:
// lowercase, accent-free, single-spaced.
func CompanyKey(name string) string {
	return strings.Join(strings.Fields(fold(name)), " ")
}
