package httpapi

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/lingosync/lingosync/internal/model"
)

type ctxKey string

const actorKey ctxKey = "ls.actor"

// WithActor stores the authenticated actor in context.
func WithActor(ctx context.Context, a model.AuthenticatedActor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromCtx fetches the authenticated actor from context.
func ActorFromCtx(ctx context.Context) (model.AuthenticatedActor, bool) {
	v := ctx.Value(actorKey)
	if v == nil {
		return model.AuthenticatedActor{}, false
	}
	a, ok := v.(model.AuthenticatedActor)
	return a, ok
}

// actorClaims is the token payload issued by the account layer. The core
// never mints tokens; it only verifies and reads them.
type actorClaims struct {
	Name     string   `json:"name"`
	Src      string   `json:"src"`
	Projects []string `json:"projects,omitempty"`
	jwt.RegisteredClaims
}

// parseActor verifies an HS256 token and turns its claims into the actor
// value passed into every core operation.
func parseActor(token string, signKey []byte) (model.AuthenticatedActor, error) {
	var claims actorClaims
	tok, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return signKey, nil
	})
	if err != nil {
		return model.AuthenticatedActor{}, err
	}
	if !tok.Valid {
		return model.AuthenticatedActor{}, jwt.ErrTokenUnverifiable
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return model.AuthenticatedActor{}, fmt.Errorf("bad subject: %w", err)
	}

	src := model.Source(claims.Src)
	switch src {
	case model.SourceCLI, model.SourceWeb, model.SourceGitHub:
	default:
		src = model.SourceWeb
	}

	actor := model.AuthenticatedActor{ID: id, Name: claims.Name, Source: src}
	for _, p := range claims.Projects {
		pid, err := uuid.FromString(p)
		if err != nil {
			return model.AuthenticatedActor{}, fmt.Errorf("bad project claim: %w", err)
		}
		actor.Projects = append(actor.Projects, pid)
	}
	return actor, nil
}

// Authorizer answers whether an actor may edit a project. It stands in for
// the external authorization service; checks run before any store access.
type Authorizer interface {
	CanEditProject(ctx context.Context, actor model.AuthenticatedActor, projectID uuid.UUID) (bool, error)
}

// ClaimsAuthorizer authorizes from the project list embedded in the actor's
// token. An empty list means the upstream issuer did not scope the token
// and access is unrestricted.
type ClaimsAuthorizer struct{}

// CanEditProject implements Authorizer.
func (ClaimsAuthorizer) CanEditProject(_ context.Context, actor model.AuthenticatedActor, projectID uuid.UUID) (bool, error) {
	if actor.Projects == nil {
		return true, nil
	}
	for _, p := range actor.Projects {
		if p == projectID {
			return true, nil
		}
	}
	return false, nil
}
