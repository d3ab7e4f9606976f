package organization

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/apimeter/apimeter/modules/billing"
	"github.com/apimeter/apimeter/pkg/response"
)

// PrincipalFunc returns the authenticated caller's user and organization
// IDs from the request context. The organization ID is uuid.Nil when the
// user has not created one yet.
type PrincipalFunc func(r *http.Request) (userID, orgID uuid.UUID, ok bool)

// Member is an organization member as shown on the organization view.
type Member struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  string    `json:"role"`
}

// MemberLister resolves an organization's members; the auth module
// provides the implementation.
type MemberLister func(ctx context.Context, orgID uuid.UUID) ([]Member, error)

// EntitlementLookup resolves the organization's current entitlement;
// the billing module provides the implementation.
type EntitlementLookup func(ctx context.Context, orgID uuid.UUID) (billing.Entitlement, error)

// Router returns the organization HTTP routes.
func Router(svc *Service, principal PrincipalFunc, members MemberLister, entitlement EntitlementLookup) chi.Router {
	r := chi.NewRouter()

	r.Post("/", func(w http.ResponseWriter, req *http.Request) {
		userID, _, ok := principal(req)
		if !ok {
			response.Error(w, response.ErrUnauthorized)
			return
		}

		var body struct {
			Name         string `json:"name"`
			BillingEmail string `json:"billing_email"`
		}
		if err := response.Decode(req, &body); err != nil {
			response.Error(w, response.ErrBadRequest)
			return
		}

		org, err := svc.Create(req.Context(), body.Name, body.BillingEmail, userID)
		switch {
		case errors.Is(err, ErrInvalidName):
			response.Error(w, response.ErrBadRequest.WithMessage("Organization name is invalid."))
		case errors.Is(err, ErrSlugTaken):
			response.Error(w, response.ErrConflict.WithMessage("Organization name is already taken."))
		case err != nil:
			response.Error(w, err)
		default:
			response.JSON(w, http.StatusCreated, org)
		}
	})

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		_, orgID, ok := principal(req)
		if !ok {
			response.Error(w, response.ErrUnauthorized)
			return
		}
		if orgID == uuid.Nil {
			response.Error(w, response.ErrNotFound.WithMessage("You have not created an organization yet."))
			return
		}

		org, err := svc.Get(req.Context(), orgID)
		if errors.Is(err, ErrNotFound) {
			response.Error(w, response.ErrNotFound)
			return
		}
		if err != nil {
			response.Error(w, err)
			return
		}

		view := map[string]any{"organization": org}
		if members != nil {
			list, err := members(req.Context(), orgID)
			if err != nil {
				response.Error(w, err)
				return
			}
			view["members"] = list
		}
		if entitlement != nil {
			ent, err := entitlement(req.Context(), orgID)
			if err != nil {
				response.Error(w, err)
				return
			}
			view["entitlement"] = ent
		}
		response.JSON(w, http.StatusOK, view)
	})

	r.Patch("/", func(w http.ResponseWriter, req *http.Request) {
		_, orgID, ok := principal(req)
		if !ok {
			response.Error(w, response.ErrUnauthorized)
			return
		}
		if orgID == uuid.Nil {
			response.Error(w, response.ErrNotFound)
			return
		}

		var body struct {
			Name         string `json:"name"`
			BillingEmail string `json:"billing_email"`
		}
		if err := response.Decode(req, &body); err != nil {
			response.Error(w, response.ErrBadRequest)
			return
		}

		org, err := svc.Rename(req.Context(), orgID, body.Name, body.BillingEmail)
		switch {
		case errors.Is(err, ErrInvalidName):
			response.Error(w, response.ErrBadRequest.WithMessage("Organization name is invalid."))
		case errors.Is(err, ErrNotFound):
			response.Error(w, response.ErrNotFound)
		case err != nil:
			response.Error(w, err)
		default:
			response.JSON(w, http.StatusOK, org)
		}
	})

	return r
}
