package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLdapUsername(t *testing.T) {
	tests := []struct {
		user, domain, want string
	}{
		{"budi@PLN.CO.ID", "pln.co.id", "budi"},
		{"Budi@pln.co.id", "PLN.CO.ID", "Budi"},
		{" budi ", "pln.co.id", "budi"},
		{"budi@other.id", "pln.co.id", "budi@other.id"},
		{"budi@pln.co.id", "", "budi@pln.co.id"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ldapUsername(tt.user, tt.domain), tt.user)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("rahasia")
	require.NoError(t, err)
	assert.NotEqual(t, "rahasia", hash)
	assert.NoError(t, ComparePassword(hash, "rahasia"))
	assert.Error(t, ComparePassword(hash, "salah"))
}
