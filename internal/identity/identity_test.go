package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_IssueAndVerify(t *testing.T) {
	p := NewProvider("test-secret", "petshop", "petshop-api")

	tests := []struct {
		name  string
		actor Actor
		want  Actor
	}{
		{"customer", Actor{ID: "user-1", Role: RoleCustomer}, Actor{ID: "user-1", Role: RoleCustomer}},
		{"admin", Actor{ID: "ops", Role: RoleAdmin}, Actor{ID: "ops", Role: RoleAdmin}},
		{"unknown role downgrades to customer", Actor{ID: "user-2", Role: "root"}, Actor{ID: "user-2", Role: RoleCustomer}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := p.Issue(tt.actor, time.Hour)
			require.NoError(t, err)

			got, err := p.Verify(token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProvider_VerifyRejects(t *testing.T) {
	p := NewProvider("test-secret", "petshop", "petshop-api")
	valid, err := p.Issue(Actor{ID: "user-1"}, time.Hour)
	require.NoError(t, err)

	expired, err := p.Issue(Actor{ID: "user-1"}, -time.Hour)
	require.NoError(t, err)

	otherSecret, err := NewProvider("other", "petshop", "petshop-api").Issue(Actor{ID: "user-1"}, time.Hour)
	require.NoError(t, err)

	otherIssuer, err := NewProvider("test-secret", "someone-else", "petshop-api").Issue(Actor{ID: "user-1"}, time.Hour)
	require.NoError(t, err)

	noSubject, err := p.Issue(Actor{}, time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"tampered":     valid + "x",
		"expired":      expired,
		"wrong secret": otherSecret,
		"wrong issuer": otherIssuer,
		"no subject":   noSubject,
		"alg none":     none,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := p.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), Actor{ID: "user-1", Role: RoleAdmin})
	actor, ok := FromContext(ctx)
	require.True(t, ok)
	assert.True(t, actor.IsAdmin())
}
