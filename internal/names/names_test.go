package names

import (
	"testing"

	"sipeta-bknd/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Banda Aceh", want: "banda aceh"},
		{in: "BANDA ACEH", want: "banda aceh"},
		{in: "banda  aceh", want: "banda aceh"},
		{in: "\tBanda\nAceh  ", want: "banda aceh"},
		{in: "Pulau Baláí", want: "pulau balai"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestCanon_Key(t *testing.T) {
	c := NewCanon(map[models.Level]map[string]string{
		models.LevelDesa: {"Pulo Balai": "Pulau Balai"},
	})

	assert.Equal(t, "pulau balai", c.Key(models.LevelDesa, "PULO  BALAI"))
	assert.Equal(t, "pulau balai", c.Key(models.LevelDesa, "Pulau Balai"))
	// aliases are per level
	assert.Equal(t, "pulo balai", c.Key(models.LevelKecamatan, "Pulo Balai"))

	var nilCanon *Canon
	assert.Equal(t, "banda aceh", nilCanon.Key(models.LevelKabupaten, "Banda ACEH"))
}
