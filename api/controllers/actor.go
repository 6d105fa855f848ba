package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/firmasegura/certifications-backend/api/middleware"
	"github.com/firmasegura/certifications-backend/internal/certifications"
	pkgerrors "github.com/firmasegura/certifications-backend/pkg/errors"
)

func actorFromRequest(r *http.Request) (certifications.Actor, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		return certifications.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return certifications.Actor{
		UserID:    userID,
		Role:      middleware.RoleFromContext(r.Context()),
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}, nil
}
