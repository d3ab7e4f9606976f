package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/apimeter/apimeter/pkg/response"
)

// maxWebhookBody caps webhook payload reads. Paddle events are small;
// anything past this is not a legitimate event.
const maxWebhookBody = 1 << 20

// PrincipalOrgFunc returns the authenticated caller's organization ID
// from the request context.
type PrincipalOrgFunc func(r *http.Request) (uuid.UUID, bool)

// Router returns the billing HTTP routes. Checkout, cancel, and the
// entitlement endpoint require an authenticated principal; the webhook
// endpoint authenticates by signature instead.
func Router(svc *Service, principalOrg PrincipalOrgFunc) chi.Router {
	r := chi.NewRouter()

	r.Post("/checkout", func(w http.ResponseWriter, req *http.Request) {
		orgID, ok := principalOrg(req)
		if !ok {
			response.Error(w, response.ErrUnauthorized)
			return
		}

		var body struct {
			PriceID    string `json:"price_id"`
			SuccessURL string `json:"success_url"`
		}
		if err := response.Decode(req, &body); err != nil || body.PriceID == "" {
			response.Error(w, response.ErrBadRequest)
			return
		}

		checkout, err := svc.CreateCheckout(req.Context(), orgID, body.PriceID, body.SuccessURL)
		switch {
		case errors.Is(err, ErrUnknownPrice):
			response.Error(w, response.ErrBadRequest.WithMessage("Unknown price."))
		case err != nil:
			response.Error(w, err)
		default:
			response.JSON(w, http.StatusCreated, checkout)
		}
	})

	r.Post("/cancel", func(w http.ResponseWriter, req *http.Request) {
		orgID, ok := principalOrg(req)
		if !ok {
			response.Error(w, response.ErrUnauthorized)
			return
		}

		sub, err := svc.Cancel(req.Context(), orgID)
		switch {
		case errors.Is(err, ErrSubscriptionNotFound):
			response.Error(w, response.ErrNotFound.WithMessage("No paid subscription to cancel."))
		case err != nil:
			response.Error(w, err)
		default:
			response.JSON(w, http.StatusOK, map[string]any{
				"status":               sub.Status,
				"cancel_at_period_end": sub.CancelAtPeriodEnd,
				"current_period_end":   sub.CurrentPeriodEnd,
			})
		}
	})

	r.Get("/entitlement", func(w http.ResponseWriter, req *http.Request) {
		orgID, ok := principalOrg(req)
		if !ok {
			response.Error(w, response.ErrUnauthorized)
			return
		}

		ent, err := svc.Snapshot(req.Context(), orgID)
		if err != nil {
			response.Error(w, err)
			return
		}
		response.JSON(w, http.StatusOK, ent)
	})

	r.Get("/subscriptions", func(w http.ResponseWriter, req *http.Request) {
		orgID, ok := principalOrg(req)
		if !ok {
			response.Error(w, response.ErrUnauthorized)
			return
		}

		subs, err := svc.Subscriptions(req.Context(), orgID)
		if err != nil {
			response.Error(w, err)
			return
		}
		response.JSON(w, http.StatusOK, subs)
	})

	return r
}

// WebhookHandler returns the provider webhook endpoint. It lives outside
// the authenticated router because webhooks authenticate by signature.
func WebhookHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBody))
		if err != nil {
			response.Error(w, response.ErrBadRequest)
			return
		}

		err = svc.HandleWebhook(req.Context(), payload, req.Header.Get("Paddle-Signature"))
		switch {
		case errors.Is(err, ErrInvalidWebhook):
			response.Error(w, response.ErrBadRequest.WithMessage("Invalid webhook signature."))
		case err != nil:
			// Transient failure: non-2xx so the provider retries.
			response.Error(w, err)
		default:
			response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
		}
	}
}
