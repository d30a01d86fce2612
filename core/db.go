package core

import (
	"strings"
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderByClause renders orderings as an ORDER BY list, dropping fields missing from `allowed`.
// `fallback` is used when nothing survives.
func OrderByClause(orderings []DBOrdering, allowed []string, fallback string) string {
	parts := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if contains(allowed, ord.Field) {
			parts = append(parts, ord.String())
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, ", ")
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
