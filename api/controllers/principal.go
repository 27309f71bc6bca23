package controllers

import (
	"net/http"

	"github.com/angelmondragon/packfinderz-identity/api/middleware"
	"github.com/angelmondragon/packfinderz-identity/internal/users"
	pkgerrors "github.com/angelmondragon/packfinderz-identity/pkg/errors"
)

func requirePrincipal(r *http.Request) (middleware.Principal, error) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return middleware.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return p, nil
}

func actorFrom(p middleware.Principal) users.Actor {
	return users.Actor{ID: p.UserID, Role: p.Role}
}

func serviceUnavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}
