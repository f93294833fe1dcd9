package rest

import (
	"net/http"
	"strconv"

	"github.com/bumpspot/server/apperr"
	"github.com/bumpspot/server/model"
	"github.com/bumpspot/server/presence"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PlaceHandler handles place REST endpoints.
type PlaceHandler struct {
	db  *gorm.DB
	svc *presence.Service
}

// NewPlaceHandler creates a PlaceHandler.
func NewPlaceHandler(db *gorm.DB, svc *presence.Service) *PlaceHandler {
	return &PlaceHandler{db: db, svc: svc}
}

// List handles GET /api/places. Ascending name order keeps repeated
// polls stable.
func (h *PlaceHandler) List(c *gin.Context) {
	var places []model.Place
	if err := h.db.WithContext(c.Request.Context()).
		Order("name ASC").
		Find(&places).Error; err != nil {
		respondErr(c, apperr.Store(err))
		return
	}
	respondData(c, http.StatusOK, places)
}

// Create handles POST /api/places.
func (h *PlaceHandler) Create(c *gin.Context) {
	var req struct {
		Name    string  `json:"name" binding:"required,max=128"`
		Address string  `json:"address" binding:"max=255"`
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, apperr.Validation("name is required"))
		return
	}

	place := model.Place{Name: req.Name, Address: req.Address, Lat: req.Lat, Lng: req.Lng}
	if err := h.db.WithContext(c.Request.Context()).Create(&place).Error; err != nil {
		respondErr(c, apperr.Store(err))
		return
	}
	respondData(c, http.StatusCreated, place)
}

// Popular handles GET /api/places/popular?limit=10.
func (h *PlaceHandler) Popular(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	ranking, err := h.svc.Popular(c.Request.Context(), limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, ranking)
}
