package utils

import (
	"net/url"
	"strings"
)

// ParseQueryList handles both repeated and comma-separated query params,
// and any mix of the two. Blank entries are dropped.
//
//	?locations=Banda Aceh,Pidie               → ["Banda Aceh","Pidie"]
//	?locations=Banda Aceh&locations=Pidie     → ["Banda Aceh","Pidie"]
func ParseQueryList(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ParseQueryBool reads "1"/"true"/"yes" as true and "0"/"false"/"no" as
// false. Anything else, including absence, yields fallback.
func ParseQueryBool(q url.Values, key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(q.Get(key))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return fallback
}
