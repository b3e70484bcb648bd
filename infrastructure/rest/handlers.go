package rest

import (
	"dwilive/auth"
	"dwilive/domain"
	"dwilive/errors"
	"dwilive/services"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type authHandler struct {
	auth services.IAuthService
	log  *slog.Logger
}

func (h *authHandler) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decode(w, r, &req); err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	res, err := h.auth.Register(r.Context(), req)
	if err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	RespondJSON(w, http.StatusCreated, res)
}

func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decode(w, r, &req); err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	res, err := h.auth.Login(r.Context(), req)
	if err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

type userHandler struct {
	users services.IUserService
	log   *slog.Logger
}

func (h *userHandler) RegisterRoutes(r chi.Router) {
	r.Get("/users/me", h.me)
	r.Patch("/users/me", h.updateMe)
	r.Get("/users/search", h.search)
}

func (h *userHandler) me(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	dto, err := h.users.Me(r.Context(), user.ID)
	if err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, dto)
}

func (h *userHandler) updateMe(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateProfileRequest
	if err := decode(w, r, &req); err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	dto, err := h.users.UpdateMe(r.Context(), currentUser(r).ID, req)
	if err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, dto)
}

func (h *userHandler) search(w http.ResponseWriter, r *http.Request) {
	found, err := h.users.Search(r.Context(), currentUser(r).ID, r.URL.Query().Get("q"))
	if err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, found)
}

type conversationHandler struct {
	conversations services.IConversationService
	log           *slog.Logger
}

func (h *conversationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/conversations", func(c chi.Router) {
		c.Post("/", h.create)
		c.Get("/", h.list)
		c.Route("/{id}", func(one chi.Router) {
			one.Get("/", h.get)
			one.Patch("/", h.rename)
			one.Post("/members", h.addMember)
			one.Delete("/members/{userId}", h.removeMember)
			one.Post("/join", h.join)
			one.Post("/leave", h.leave)
			one.Get("/messages", h.history)
		})
	})
}

func (h *conversationHandler) create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateConversationRequest
	if err := decode(w, r, &req); err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	dto, err := h.conversations.Create(r.Context(), currentUser(r), req)
	if err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	RespondJSON(w, http.StatusCreated, dto)
}

func (h *conversationHandler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.conversations.List(r.Context(), currentUser(r))
	if err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, list)
}

func (h *conversationHandler) get(w http.ResponseWriter, r *http.Request) {
	dto, err := h.conversations.Get(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, dto)
}

func (h *conversationHandler) rename(w http.ResponseWriter, r *http.Request) {
	var req services.RenameRequest
	if err := decode(w, r, &req); err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	dto, err := h.conversations.Rename(r.Context(), currentUser(r), chi.URLParam(r, "id"), req)
	if err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, dto)
}

func (h *conversationHandler) addMember(w http.ResponseWriter, r *http.Request) {
	var req services.AddMemberRequest
	if err := decode(w, r, &req); err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	dto, err := h.conversations.AddMember(r.Context(), currentUser(r), chi.URLParam(r, "id"), req)
	if err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, dto)
}

func (h *conversationHandler) removeMember(w http.ResponseWriter, r *http.Request) {
	dto, err := h.conversations.RemoveMember(r.Context(), currentUser(r), chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, dto)
}

func (h *conversationHandler) join(w http.ResponseWriter, r *http.Request) {
	dto, err := h.conversations.JoinPublic(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, dto)
}

func (h *conversationHandler) leave(w http.ResponseWriter, r *http.Request) {
	if err := h.conversations.Leave(r.Context(), currentUser(r), chi.URLParam(r, "id")); err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *conversationHandler) history(w http.ResponseWriter, r *http.Request) {
	query := services.HistoryQuery{Before: r.URL.Query().Get("before")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			RespondError(w, r, h.log, fmt.Errorf("%w: limit must be a positive integer", errors.ErrValidation))
			return
		}
		query.Limit = limit
	}
	messages, err := h.conversations.History(r.Context(), currentUser(r), chi.URLParam(r, "id"), query)
	if err != nil {
		RespondError(w, r, h.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, messages)
}

// currentUser is set by auth.Middleware on every private route.
func currentUser(r *http.Request) domain.User {
	user, _ := auth.UserFromContext(r.Context())
	return user
}
