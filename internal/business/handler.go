package business

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/razezix/authgate/internal/authn"
	"github.com/razezix/authgate/internal/authz"
	"github.com/razezix/authgate/internal/observability"
	"github.com/razezix/authgate/internal/platform/httpx"
	"github.com/razezix/authgate/internal/shared"
)

// Handler serves the mock product and order resources. It exists to exercise
// the authorization engine end to end: every route requires a principal and
// translates the engine's decision into 403, with 404 taking precedence only
// after the target is known to exist.
type Handler struct {
	logger  *slog.Logger
	engine  *authz.Engine
	metrics *observability.Metrics
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, engine *authz.Engine, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, engine: engine, metrics: metrics}
}

func (h *Handler) recordDecision(resource string, allowed bool) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	h.metrics.RecordDecision(resource, outcome)
}

// MountRoutes registers business routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.list("products", products))
	r.Get("/products/{id}", h.get("products", products))
	r.Post("/products", h.create("products"))
	r.Patch("/products/{id}", h.update("products", products))
	r.Delete("/products/{id}", h.delete("products", products))

	r.Get("/orders", h.list("orders", orders))
	r.Get("/orders/{id}", h.get("orders", orders))
}

// list gates collection reads. With only own-scope read granted the request
// is still allowed, and the result set is filtered to the acting user's rows.
func (h *Handler) list(resource string, items []Item) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := h.requireUser(w, r)
		if !ok {
			return
		}
		allowed, err := h.engine.Decide(r.Context(), principal.User.ID, resource, authz.ActionRead, nil)
		if err != nil {
			h.decisionErr(w, err)
			return
		}
		h.recordDecision(resource, allowed)
		if !allowed {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
		all, err := h.engine.DecideAll(r.Context(), principal.User.ID, resource, authz.ActionRead)
		if err != nil {
			h.decisionErr(w, err)
			return
		}
		if all {
			httpx.JSON(w, http.StatusOK, items)
			return
		}
		httpx.JSON(w, http.StatusOK, filterByOwner(items, principal.User.ID))
	}
}

func (h *Handler) get(resource string, items []Item) http.HandlerFunc {
	return h.single(resource, items, authz.ActionRead, func(w http.ResponseWriter, item *Item) {
		httpx.JSON(w, http.StatusOK, item)
	})
}

func (h *Handler) create(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := h.requireUser(w, r)
		if !ok {
			return
		}
		allowed, err := h.engine.Decide(r.Context(), principal.User.ID, resource, authz.ActionCreate, nil)
		if err != nil {
			h.decisionErr(w, err)
			return
		}
		h.recordDecision(resource, allowed)
		if !allowed {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
		httpx.JSON(w, http.StatusCreated, map[string]any{"detail": "created (mock)", "owner_id": principal.User.ID})
	}
}

func (h *Handler) update(resource string, items []Item) http.HandlerFunc {
	return h.single(resource, items, authz.ActionUpdate, func(w http.ResponseWriter, item *Item) {
		httpx.JSON(w, http.StatusOK, map[string]any{"detail": "updated (mock)", "id": item.ID})
	})
}

func (h *Handler) delete(resource string, items []Item) http.HandlerFunc {
	return h.single(resource, items, authz.ActionDelete, func(w http.ResponseWriter, item *Item) {
		httpx.NoContent(w)
	})
}

// single evaluates a concrete-target action against the item's owner.
func (h *Handler) single(resource string, items []Item, action authz.Action, respond func(http.ResponseWriter, *Item)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := h.requireUser(w, r)
		if !ok {
			return
		}
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
			return
		}
		item := findItem(items, id)
		if item == nil {
			httpx.RespondError(w, shared.ErrNotFound)
			return
		}
		allowed, err := h.engine.Decide(r.Context(), principal.User.ID, resource, action, &item.OwnerID)
		if err != nil {
			h.decisionErr(w, err)
			return
		}
		h.recordDecision(resource, allowed)
		if !allowed {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
		respond(w, item)
	}
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (*authn.Principal, bool) {
	principal := authn.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return nil, false
	}
	return principal, true
}

func (h *Handler) decisionErr(w http.ResponseWriter, err error) {
	if h.logger != nil {
		h.logger.Error("authorization decision", slog.Any("error", err))
	}
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
