package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/firmasegura/certifications-backend/api/responses"
	"github.com/firmasegura/certifications-backend/api/validators"
	"github.com/firmasegura/certifications-backend/internal/certifications"
	"github.com/firmasegura/certifications-backend/pkg/logger"
)

type approveRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type reviewAction func(r *http.Request, actor certifications.Actor, id uuid.UUID) (*certifications.Detail, error)

func adminAction(logg *logger.Logger, action reviewAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := action(r, actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

func AdminStartReview(svc certifications.Service, logg *logger.Logger) http.HandlerFunc {
	return adminAction(logg, func(r *http.Request, actor certifications.Actor, id uuid.UUID) (*certifications.Detail, error) {
		return svc.StartReview(r.Context(), actor, id)
	})
}

// AdminApprove accepts an optional {"notes": "..."} body.
func AdminApprove(svc certifications.Service, logg *logger.Logger) http.HandlerFunc {
	return adminAction(logg, func(r *http.Request, actor certifications.Actor, id uuid.UUID) (*certifications.Detail, error) {
		var body approveRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				return nil, err
			}
		}
		return svc.Approve(r.Context(), actor, id, body.Notes)
	})
}

// AdminReject requires {"reason": "..."}; blank reasons are refused by the lifecycle as well.
func AdminReject(svc certifications.Service, logg *logger.Logger) http.HandlerFunc {
	return adminAction(logg, func(r *http.Request, actor certifications.Actor, id uuid.UUID) (*certifications.Detail, error) {
		var body rejectRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Reject(r.Context(), actor, id, body.Reason)
	})
}

func AdminComplete(svc certifications.Service, logg *logger.Logger) http.HandlerFunc {
	return adminAction(logg, func(r *http.Request, actor certifications.Actor, id uuid.UUID) (*certifications.Detail, error) {
		return svc.Complete(r.Context(), actor, id)
	})
}
