package rest

import (
	"net/http"
	"strconv"

	"github.com/bumpspot/server/apperr"
	"github.com/bumpspot/server/feed"
	mw "github.com/bumpspot/server/middleware"
	"github.com/gin-gonic/gin"
)

// FeedHandler handles the activity feed endpoint.
type FeedHandler struct {
	svc *feed.Service
}

// NewFeedHandler creates a FeedHandler.
func NewFeedHandler(svc *feed.Service) *FeedHandler {
	return &FeedHandler{svc: svc}
}

// Recent handles GET /api/feed?limit=50.
func (h *FeedHandler) Recent(c *gin.Context) {
	userID := mw.GetUserID(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	events, err := h.svc.Recent(c.Request.Context(), userID, limit)
	if err != nil {
		respondErr(c, apperr.Store(err))
		return
	}
	respondData(c, http.StatusOK, events)
}
