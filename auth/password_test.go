package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Password_Verify_Matches(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("correct horse battery staple")
	req.NoError(err)
	req.Contains(hash, "$argon2id$")

	match, err := VerifyPassword("correct horse battery staple", hash)
	req.NoError(err)
	req.True(match)
}

func Test_Password_Verify_Rejects_Wrong_Password(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("correct horse battery staple")
	req.NoError(err)

	match, err := VerifyPassword("incorrect horse", hash)
	req.NoError(err)
	req.False(match)
}

func Test_Password_Hashes_Are_Salted(t *testing.T) {
	req := require.New(t)

	first, err := HashPassword("correct horse battery staple")
	req.NoError(err)
	second, err := HashPassword("correct horse battery staple")
	req.NoError(err)

	req.NotEqual(first, second)
}

func Test_Password_Malformed_Hash_Is_An_Error(t *testing.T) {
	req := require.New(t)

	_, err := VerifyPassword("anything", "not-an-encoded-hash")
	req.Error(err)
}
