package authinfra_test

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/Abraxas-365/tenantauth/pkg/errx"
	"github.com/Abraxas-365/tenantauth/pkg/iam/auth"
	"github.com/Abraxas-365/tenantauth/pkg/iam/auth/authinfra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashAndVerify(t *testing.T) {
	svc := authinfra.NewBcryptPasswordService(bcrypt.MinCost)

	hash, err := svc.Hash("correct horse battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))

	assert.True(t, svc.Verify("correct horse battery", hash))
	assert.False(t, svc.Verify("wrong", hash))
}

func TestPasswordHashRejectsUnusableInput(t *testing.T) {
	svc := authinfra.NewBcryptPasswordService(bcrypt.MinCost)

	_, err := svc.Hash("")
	assert.True(t, errx.IsCode(err, auth.CodeWeakPassword))

	_, err = svc.Hash(strings.Repeat("a", 73))
	assert.True(t, errx.IsCode(err, auth.CodeWeakPassword))
}

func TestPasswordVerifyEmptyOrMalformedHash(t *testing.T) {
	svc := authinfra.NewBcryptPasswordService(bcrypt.MinCost)

	assert.False(t, svc.Verify("anything", ""))
	assert.False(t, svc.Verify("anything", "plaintext"))
	assert.False(t, svc.Verify("anything", "$2a$04$short"))
	assert.False(t, svc.Verify("anything", "$argon2id$v=19$m=x,t=1,p=1$AAAA$AAAA"))
	assert.False(t, svc.Verify("anything", "$argon2id$v=18$m=8,t=1,p=1$AAAA$AAAA"))
}

func TestPasswordVerifyArgon2id(t *testing.T) {
	svc := authinfra.NewBcryptPasswordService(bcrypt.MinCost)

	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	require.NoError(t, err)
	key := argon2.IDKey([]byte("s3cret-pass"), salt, 1, 8*1024, 1, 32)
	phc := fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		8*1024, 1, 1,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	assert.True(t, svc.Verify("s3cret-pass", phc))
	assert.False(t, svc.Verify("s3cret-pasS", phc))
}
