package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hackgods/dental-clinic-scheduling/internal/rbac"
)

var ErrUnknownRole = errors.New("token carries an unknown role")

// Claims are issued by the clinic's identity service; this package only
// verifies them.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type Actor struct {
	UserID string
	Role   rbac.Role
}

func ParseJWT(secret []byte, tokenString string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}

// ActorFromClaims maps verified claims to the acting user.
func ActorFromClaims(c *Claims) (Actor, error) {
	role, ok := rbac.ParseRole(c.Role)
	if !ok {
		return Actor{}, fmt.Errorf("%w: %q", ErrUnknownRole, c.Role)
	}
	userID := c.UserID
	if userID == "" {
		userID = c.Subject
	}
	return Actor{UserID: userID, Role: role}, nil
}

type contextKey string

const actorKey contextKey = "actor"

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}
