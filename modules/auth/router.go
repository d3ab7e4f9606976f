package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/apimeter/apimeter/pkg/response"
)

// Router returns the public auth routes (register, login) plus the
// authenticated account routes. The authenticated subtree is wrapped in
// the resolver middleware here so callers mount it as one unit.
func Router(svc *Service, resolver *Resolver) chi.Router {
	r := chi.NewRouter()

	r.Post("/register", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Name     string `json:"name"`
		}
		if err := response.Decode(req, &body); err != nil {
			response.Error(w, response.ErrBadRequest)
			return
		}

		user, err := svc.Register(req.Context(), body.Email, body.Password, body.Name)
		switch {
		case errors.Is(err, ErrInvalidEmail):
			response.Error(w, response.ErrBadRequest.WithMessage("Email address is invalid."))
		case errors.Is(err, ErrWeakPassword):
			response.Error(w, response.ErrBadRequest.WithMessage("Password must be at least 8 characters."))
		case errors.Is(err, ErrEmailTaken):
			response.Error(w, response.ErrConflict.WithMessage("Email is already registered."))
		case err != nil:
			response.Error(w, err)
		default:
			response.JSON(w, http.StatusCreated, user)
		}
	})

	r.Post("/login", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := response.Decode(req, &body); err != nil {
			response.Error(w, response.ErrBadRequest)
			return
		}

		user, token, err := svc.Authenticate(req.Context(), body.Email, body.Password)
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			response.Error(w, response.ErrUnauthorized.WithMessage("Invalid email or password."))
		case err != nil:
			response.Error(w, err)
		default:
			response.JSON(w, http.StatusOK, map[string]any{
				"token": token,
				"user":  user,
			})
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(Middleware(resolver))

		r.Get("/me", func(w http.ResponseWriter, req *http.Request) {
			principal, _ := PrincipalFromContext(req.Context())
			response.JSON(w, http.StatusOK, map[string]any{
				"user":        principal.User,
				"entitlement": principal.Entitlement,
			})
		})

		r.Post("/api-keys", func(w http.ResponseWriter, req *http.Request) {
			principal, _ := PrincipalFromContext(req.Context())

			var body struct {
				Name string `json:"name"`
			}
			if err := response.Decode(req, &body); err != nil {
				response.Error(w, response.ErrBadRequest)
				return
			}

			key, err := svc.GenerateAPIKey(req.Context(), principal.User.ID, body.Name)
			switch {
			case errors.Is(err, ErrOrganizationMissing):
				response.Error(w, response.ErrBadRequest.WithMessage("Create an organization before minting API keys."))
			case err != nil:
				response.Error(w, err)
			default:
				// The one and only time the secret value is returned.
				response.JSON(w, http.StatusCreated, map[string]any{
					"id":    key.ID,
					"name":  key.Name,
					"value": key.Value,
					"hint":  key.Hint,
				})
			}
		})

		r.Get("/api-keys", func(w http.ResponseWriter, req *http.Request) {
			principal, _ := PrincipalFromContext(req.Context())

			keys, err := svc.ListAPIKeys(req.Context(), principal.User.ID)
			if err != nil {
				response.Error(w, err)
				return
			}
			response.JSON(w, http.StatusOK, keys)
		})

		r.Delete("/api-keys/{keyID}", func(w http.ResponseWriter, req *http.Request) {
			principal, _ := PrincipalFromContext(req.Context())

			keyID, err := uuid.Parse(chi.URLParam(req, "keyID"))
			if err != nil {
				response.Error(w, response.ErrBadRequest)
				return
			}

			err = svc.RevokeAPIKey(req.Context(), principal.User.ID, keyID)
			switch {
			case errors.Is(err, ErrAPIKeyNotFound):
				response.Error(w, response.ErrNotFound)
			case err != nil:
				response.Error(w, err)
			default:
				response.NoContent(w)
			}
		})
	})

	return r
}
