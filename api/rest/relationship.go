package rest

import (
	"net/http"
	"strconv"

	"github.com/bumpspot/server/apperr"
	mw "github.com/bumpspot/server/middleware"
	"github.com/bumpspot/server/relation"
	"github.com/gin-gonic/gin"
)

// RelationshipHandler exposes the relationship engine over REST.
type RelationshipHandler struct {
	svc *relation.Service
}

// NewRelationshipHandler creates a RelationshipHandler.
func NewRelationshipHandler(svc *relation.Service) *RelationshipHandler {
	return &RelationshipHandler{svc: svc}
}

// List handles GET /api/relationships.
func (h *RelationshipHandler) List(c *gin.Context) {
	userID := mw.GetUserID(c)
	parts, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, parts)
}

// Propose handles POST /api/relationships.
func (h *RelationshipHandler) Propose(c *gin.Context) {
	userID := mw.GetUserID(c)

	var req struct {
		RecipientID int64 `json:"recipient_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, apperr.Validation("recipient_id is required"))
		return
	}

	rel, err := h.svc.Propose(c.Request.Context(), userID, req.RecipientID)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondData(c, http.StatusCreated, rel)
}

// Accept handles POST /api/relationships/:id/accept.
func (h *RelationshipHandler) Accept(c *gin.Context) {
	userID := mw.GetUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondErr(c, apperr.Validation("invalid id"))
		return
	}

	rel, err := h.svc.Accept(c.Request.Context(), id, userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, rel)
}

// Remove handles DELETE /api/relationships/:id. One operation covers
// decline, cancel and unfriend.
func (h *RelationshipHandler) Remove(c *gin.Context) {
	userID := mw.GetUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondErr(c, apperr.Validation("invalid id"))
		return
	}

	if err := h.svc.Remove(c.Request.Context(), id, userID); err != nil {
		respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"removed": true})
}

// SetHopeToBump handles PUT /api/relationships/:id/hope-to-bump.
func (h *RelationshipHandler) SetHopeToBump(c *gin.Context) {
	userID := mw.GetUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondErr(c, apperr.Validation("invalid id"))
		return
	}

	var req struct {
		Value *bool `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, apperr.Validation("value is required"))
		return
	}

	rel, err := h.svc.SetHopeToBump(c.Request.Context(), id, userID, *req.Value)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, rel)
}

// Candidates handles GET /api/relationships/candidates?q=.
func (h *RelationshipHandler) Candidates(c *gin.Context) {
	userID := mw.GetUserID(c)
	results, err := h.svc.SearchCandidates(c.Request.Context(), c.Query("q"), userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, results)
}
