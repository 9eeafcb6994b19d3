package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-max-bridge/internal/domain"
	"telegram-max-bridge/internal/domain/model"
	"telegram-max-bridge/internal/infra/adapters/telegram"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Not-found stays opaque.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrCrossTenantLink):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrConnectionLimitReached):
		respondJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrCredentialsUnreadable):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "stored credentials unreadable, re-enter the bot token",
		})
	default:
		s.log.Error().Err(err).Msg("request failed")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// ===== Provider-facing webhook endpoints =====

type webhookResponse struct {
	Status    string `json:"status"`
	Processed *int   `json:"processed,omitempty"`
	Total     *int   `json:"total,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	webhookID := chi.URLParam(r, "webhookID")

	var upd tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	// Updates that are not channel posts dispatch as nil and come back as an
	// acknowledged ignore.
	post, _ := telegram.ChannelPostFromUpdate(&upd)
	res, err := s.dispatchUC.HandleChannelPost(r.Context(), webhookID, post)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := webhookResponse{Status: res.Status, Reason: res.Reason}
	if res.Status == "ok" {
		resp.Processed = &res.Processed
		resp.Total = &res.Total
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWebhookHealth(w http.ResponseWriter, r *http.Request) {
	webhookID := chi.URLParam(r, "webhookID")

	h, err := s.dispatchUC.Health(r.Context(), webhookID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"source_channel_id": h.SourceChannelID,
		"is_active":         h.IsActive,
	})
}

// ===== Tenant-facing management API =====

type sessionRequest struct {
	Email string `json:"email"`
}

type userView struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	ConnectionsLimit int       `json:"connections_limit"`
	DailyPostsLimit  int       `json:"daily_posts_limit"`
	CreatedAt        time.Time `json:"created_at"`
}

func toUserView(u *model.User) userView {
	return userView{
		ID:               u.ID,
		Email:            u.Email,
		ConnectionsLimit: u.ConnectionsLimit,
		DailyPostsLimit:  u.DailyPostsLimit,
		CreatedAt:        u.CreatedAt,
	}
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	u, err := s.userUC.RegisterOrFetch(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, err)
		return
	}
	token, err := s.auth.Mint(w, u.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"token": token, "user": toUserView(u)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.userUC.GetByID(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserView(u))
}

func (s *Server) handleGetLimits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := UserIDFromContext(ctx)

	u, err := s.userUC.GetByID(ctx, userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	remaining, err := s.limiterUC.RemainingConnections(ctx, userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"connections_limit":     u.ConnectionsLimit,
		"daily_posts_limit":     u.DailyPostsLimit,
		"remaining_connections": remaining,
	})
}

type limitsRequest struct {
	ConnectionsLimit int `json:"connections_limit"`
	DailyPostsLimit  int `json:"daily_posts_limit"`
}

func (s *Server) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	var req limitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	u, err := s.userUC.SetLimits(r.Context(), UserIDFromContext(r.Context()), req.ConnectionsLimit, req.DailyPostsLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserView(u))
}

// ===== Source connections =====

type connectionCreateRequest struct {
	ChannelID       int64  `json:"channel_id"`
	ChannelUsername string `json:"channel_username"`
	BotToken        string `json:"bot_token"`
}

type connectionView struct {
	ID              string    `json:"id"`
	ChannelID       int64     `json:"channel_id"`
	ChannelUsername string    `json:"channel_username"`
	WebhookURL      string    `json:"webhook_url"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

func toConnectionView(c *model.SourceConnection) connectionView {
	return connectionView{
		ID:              c.ID,
		ChannelID:       c.ChannelID,
		ChannelUsername: c.ChannelUsername,
		WebhookURL:      c.WebhookURL,
		IsActive:        c.IsActive,
		CreatedAt:       c.CreatedAt,
	}
}

func (s *Server) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	conn, err := s.connUC.Create(r.Context(), UserIDFromContext(r.Context()), req.ChannelID, req.ChannelUsername, req.BotToken)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toConnectionView(conn))
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.connUC.List(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]connectionView, 0, len(conns))
	for _, c := range conns {
		out = append(out, toConnectionView(c))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.connUC.Get(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toConnectionView(conn))
}

func (s *Server) handleWebhookStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.connUC.WebhookStatus(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"url":               st.URL,
		"pending_updates":   st.PendingUpdates,
		"last_error_date":   st.LastErrorDate,
		"last_error_reason": st.LastErrorReason,
	})
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.connUC.Delete(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== Destination channels =====

type channelCreateRequest struct {
	ChatID   int64  `json:"chat_id"`
	Name     string `json:"name"`
	BotToken string `json:"bot_token"`
}

type channelView struct {
	ID        string    `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func toChannelView(c *model.DestinationChannel) channelView {
	return channelView{
		ID:        c.ID,
		ChatID:    c.ChatID,
		Name:      c.Name,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
	}
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req channelCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	ch, err := s.chanUC.Create(r.Context(), UserIDFromContext(r.Context()), req.ChatID, req.Name, req.BotToken)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toChannelView(ch))
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	chans, err := s.chanUC.List(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]channelView, 0, len(chans))
	for _, c := range chans {
		out = append(out, toChannelView(c))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := s.chanUC.Get(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toChannelView(ch))
}

func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	if err := s.chanUC.Delete(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== Links =====

type linkCreateRequest struct {
	SourceID      string `json:"source_id"`
	DestinationID string `json:"destination_id"`
	Name          string `json:"name"`
}

type linkView struct {
	ID            string    `json:"id"`
	SourceID      string    `json:"source_id"`
	DestinationID string    `json:"destination_id"`
	Name          string    `json:"name"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

func toLinkView(l *model.Link) linkView {
	return linkView{
		ID:            l.ID,
		SourceID:      l.SourceID,
		DestinationID: l.DestinationID,
		Name:          l.Name,
		IsActive:      l.IsActive,
		CreatedAt:     l.CreatedAt,
	}
}

func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	var req linkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	link, err := s.linkUC.Create(r.Context(), UserIDFromContext(r.Context()), req.SourceID, req.DestinationID, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toLinkView(link))
}

func (s *Server) handleListLinks(w http.ResponseWriter, r *http.Request) {
	links, err := s.linkUC.List(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]linkView, 0, len(links))
	for _, l := range links {
		out = append(out, toLinkView(l))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetLink(w http.ResponseWriter, r *http.Request) {
	link, err := s.linkUC.Get(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toLinkView(link))
}

func (s *Server) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	if err := s.linkUC.Delete(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type postRecordView struct {
	ID              string    `json:"id"`
	SourceMessageID int64     `json:"source_message_id,omitempty"`
	DestMessageID   string    `json:"dest_message_id,omitempty"`
	ContentType     string    `json:"content_type"`
	Outcome         string    `json:"outcome"`
	ErrorMessage    string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (s *Server) handleLinkHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	linkID := chi.URLParam(r, "id")

	// History is per-link and links are tenant-owned; resolve through the
	// link use case so foreign ids 404.
	if _, err := s.linkUC.Get(ctx, UserIDFromContext(ctx), linkID); err != nil {
		s.writeError(w, err)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	recs, total, err := s.ledgerUC.History(ctx, linkID, page, pageSize)
	if err != nil {
		s.writeError(w, err)
		return
	}

	items := make([]postRecordView, 0, len(recs))
	for _, rec := range recs {
		items = append(items, postRecordView{
			ID:              rec.ID,
			SourceMessageID: rec.SourceMessageID,
			DestMessageID:   rec.DestMessageID,
			ContentType:     string(rec.ContentType),
			Outcome:         string(rec.Outcome),
			ErrorMessage:    rec.ErrorMessage,
			CreatedAt:       rec.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}
