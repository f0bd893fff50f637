package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQueryList(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"absent", "", nil},
		{"csv", "locations=Banda%20Aceh,%20Pidie", []string{"Banda Aceh", "Pidie"}},
		{"repeated", "locations=Banda%20Aceh&locations=Pidie", []string{"Banda Aceh", "Pidie"}},
		{"mixed", "locations=a,b&locations=c", []string{"a", "b", "c"}},
		{"blanks dropped", "locations=,a,,%20", []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, ParseQueryList(q, "locations"))
		})
	}
}

func TestParseQueryBool(t *testing.T) {
	q := url.Values{"a": {"TRUE"}, "b": {"0"}, "c": {"maybe"}}
	assert.True(t, ParseQueryBool(q, "a", false))
	assert.False(t, ParseQueryBool(q, "b", true))
	assert.True(t, ParseQueryBool(q, "c", true))
	assert.False(t, ParseQueryBool(q, "missing", false))
}
