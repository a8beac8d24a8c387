package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func userToken(t *testing.T, secret string, exp time.Time) string {
	return signToken(t, secret, UserClaims{
		UserID:    "user-42",
		TokenType: "access",
		ClientID:  "web",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
}

func TestValidateUser_Valid(t *testing.T) {
	v := NewValidator(testSecret)

	claims, err := v.ValidateUser(userToken(t, testSecret, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, "access", claims.TokenType)
}

func TestValidateUser_Expired(t *testing.T) {
	v := NewValidator(testSecret)

	_, err := v.ValidateUser(userToken(t, testSecret, time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateUser_WrongSecret(t *testing.T) {
	v := NewValidator(testSecret)

	_, err := v.ValidateUser(userToken(t, "other-secret", time.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_MissingToken(t *testing.T) {
	v := NewValidator(testSecret)

	_, err := v.ValidateUser("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = v.ValidateAPI("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = v.ValidateService("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestValidateAPI_CarriesGroupAndScopes(t *testing.T) {
	v := NewValidator(testSecret)

	token := signToken(t, testSecret, APIClaims{
		GroupID: 7,
		Scopes:  []string{"group:publish"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ci-bot",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := v.ValidateAPI(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.GroupID)
	assert.Equal(t, []string{"group:publish"}, claims.Scopes)
}

func TestValidate_RejectsNoneAlgorithm(t *testing.T) {
	v := NewValidator(testSecret)

	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, UserClaims{UserID: "evil"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.ValidateUser(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestStripBearer(t *testing.T) {
	assert.Equal(t, "abc", StripBearer("Bearer abc"))
	assert.Equal(t, "abc", StripBearer("abc"))
}

func TestHeaderFor_CoversAllKinds(t *testing.T) {
	assert.Equal(t, "Authorization", HeaderFor[KindUser])
	assert.Equal(t, "X-API-Authorization", HeaderFor[KindAPI])
	assert.Equal(t, "X-ISC-API-Authorization", HeaderFor[KindService])
}
