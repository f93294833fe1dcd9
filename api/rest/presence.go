package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bumpspot/server/apperr"
	mw "github.com/bumpspot/server/middleware"
	"github.com/bumpspot/server/presence"
	"github.com/gin-gonic/gin"
)

// PresenceHandler exposes the check-in engine over REST.
type PresenceHandler struct {
	svc *presence.Service
}

// NewPresenceHandler creates a PresenceHandler.
func NewPresenceHandler(svc *presence.Service) *PresenceHandler {
	return &PresenceHandler{svc: svc}
}

// Create handles POST /api/checkins.
func (h *PresenceHandler) Create(c *gin.Context) {
	userID := mw.GetUserID(c)

	var req struct {
		PlaceID    int64  `json:"place_id" binding:"required"`
		Activity   string `json:"activity" binding:"max=140"`
		Privacy    string `json:"privacy"`
		TTLMinutes *int   `json:"ttl_minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, apperr.Validation("place_id is required"))
		return
	}

	var ttl *time.Duration
	if req.TTLMinutes != nil {
		d := time.Duration(*req.TTLMinutes) * time.Minute
		ttl = &d
	}

	rec, err := h.svc.CheckIn(c.Request.Context(), userID, req.PlaceID, req.Activity, req.Privacy, ttl)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondData(c, http.StatusCreated, rec)
}

// ListActive handles GET /api/checkins.
func (h *PresenceHandler) ListActive(c *gin.Context) {
	userID := mw.GetUserID(c)
	records, err := h.svc.ListActive(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, records)
}

// ByPlace handles GET /api/checkins/by-place.
func (h *PresenceHandler) ByPlace(c *gin.Context) {
	userID := mw.GetUserID(c)
	groups, err := h.svc.GroupByPlace(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, groups)
}

// History handles GET /api/checkins/history.
func (h *PresenceHandler) History(c *gin.Context) {
	userID := mw.GetUserID(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := h.svc.History(c.Request.Context(), userID, limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, records)
}

// Update handles PATCH /api/checkins/:id. Any subset of activity,
// privacy and ttl_minutes may be sent; clear_expiry removes the expiry
// so the check-in stays active until explicitly ended.
func (h *PresenceHandler) Update(c *gin.Context) {
	userID := mw.GetUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondErr(c, apperr.Validation("invalid id"))
		return
	}

	var req struct {
		Activity    *string `json:"activity"`
		Privacy     *string `json:"privacy"`
		TTLMinutes  *int    `json:"ttl_minutes"`
		ClearExpiry bool    `json:"clear_expiry"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, apperr.Validation("invalid request body"))
		return
	}

	fields := presence.Fields{
		Activity:    req.Activity,
		Privacy:     req.Privacy,
		ClearExpiry: req.ClearExpiry,
	}
	if req.TTLMinutes != nil {
		if *req.TTLMinutes <= 0 {
			respondErr(c, apperr.Validation("ttl_minutes must be positive"))
			return
		}
		expires := time.Now().Add(time.Duration(*req.TTLMinutes) * time.Minute)
		fields.ExpiresAt = &expires
	}

	rec, err := h.svc.Update(c.Request.Context(), id, userID, fields)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, rec)
}

// Expire handles DELETE /api/checkins/:id — a soft delete that stamps
// the expiry to now.
func (h *PresenceHandler) Expire(c *gin.Context) {
	userID := mw.GetUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondErr(c, apperr.Validation("invalid id"))
		return
	}

	rec, err := h.svc.Expire(c.Request.Context(), id, userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, rec)
}
