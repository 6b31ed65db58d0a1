package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/crop-notifier/internal/middleware"
	"github.com/h4ks-com/crop-notifier/internal/models"
	"github.com/h4ks-com/crop-notifier/internal/repository"
	"github.com/h4ks-com/crop-notifier/internal/services"
)

type CropHandler struct {
	cropService *services.CropService
	userService *services.UserService
}

func NewCropHandler(cropService *services.CropService, userService *services.UserService) *CropHandler {
	return &CropHandler{
		cropService: cropService,
		userService: userService,
	}
}

type PlantRequest struct {
	CropTypeID uint `json:"crop_type_id" binding:"required"`
	Quantity   int  `json:"quantity"`
}

type CropTypeRequest struct {
	Name           string  `json:"name" binding:"required"`
	Kind           string  `json:"kind"`
	GrowSeconds    int     `json:"grow_seconds"`
	HarvestSeconds int     `json:"harvest_seconds" binding:"required,min=1"`
	SellPrice      float64 `json:"sell_price" binding:"gte=0"`
	ImageURL       string  `json:"image_url"`
	Description    string  `json:"description"`
	Active         *bool   `json:"active"`
}

type CropTypeResponse struct {
	ID             uint    `json:"id"`
	Name           string  `json:"name"`
	Kind           string  `json:"kind"`
	GrowSeconds    int     `json:"grow_seconds"`
	HarvestSeconds int     `json:"harvest_seconds"`
	SellPrice      float64 `json:"sell_price"`
	ImageURL       string  `json:"image_url,omitempty"`
	Description    string  `json:"description,omitempty"`
	Active         bool    `json:"active"`
}

type CropResponse struct {
	ID               uint    `json:"id"`
	CropType         string  `json:"crop_type"`
	CropTypeID       uint    `json:"crop_type_id"`
	Quantity         int     `json:"quantity"`
	PlantedAt        string  `json:"planted_at"`
	HarvestReadyAt   string  `json:"harvest_ready_at"`
	Ready            bool    `json:"ready"`
	SecondsLeft      int64   `json:"seconds_left"`
	IsHarvested      bool    `json:"is_harvested"`
	HarvestedAt      *string `json:"harvested_at,omitempty"`
	NotificationSent bool    `json:"notification_sent"`
}

func toCropTypeResponse(cropType models.CropType) CropTypeResponse {
	return CropTypeResponse{
		ID:             cropType.ID,
		Name:           cropType.Name,
		Kind:           cropType.Kind,
		GrowSeconds:    cropType.GrowSeconds,
		HarvestSeconds: cropType.HarvestSeconds,
		SellPrice:      cropType.SellPrice,
		ImageURL:       cropType.ImageURL,
		Description:    cropType.Description,
		Active:         cropType.Active,
	}
}

func toCropResponse(crop models.UserCrop, now time.Time) CropResponse {
	left := crop.HarvestReadyAt.Sub(now)
	if left < 0 || crop.IsHarvested {
		left = 0
	}
	return CropResponse{
		ID:               crop.ID,
		CropType:         crop.CropType.Name,
		CropTypeID:       crop.CropTypeID,
		Quantity:         crop.Quantity,
		PlantedAt:        formatTime(crop.PlantedAt),
		HarvestReadyAt:   formatTime(crop.HarvestReadyAt),
		Ready:            !crop.IsHarvested && crop.ReadyAt(now),
		SecondsLeft:      int64(left / time.Second),
		IsHarvested:      crop.IsHarvested,
		HarvestedAt:      formatTimePtr(crop.HarvestedAt),
		NotificationSent: crop.NotificationSent,
	}
}

// Catalog godoc
// @Summary List crop types
// @Description Active entries of the crop catalog
// @Tags crops
// @Produce json
// @Success 200 {array} CropTypeResponse
// @Failure 500 {object} ErrorResponse
// @Router /crop-types [get]
func (h *CropHandler) Catalog(c *gin.Context) {
	cropTypes, err := h.cropService.Catalog()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	response := make([]CropTypeResponse, len(cropTypes))
	for i, cropType := range cropTypes {
		response[i] = toCropTypeResponse(cropType)
	}

	c.JSON(http.StatusOK, response)
}

// ListCrops godoc
// @Summary List my crops
// @Description Crops planted by the authenticated user
// @Tags crops
// @Produce json
// @Security BearerAuth
// @Param include_harvested query bool false "Include harvested crops"
// @Success 200 {array} CropResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /crops [get]
func (h *CropHandler) ListCrops(c *gin.Context) {
	username := middleware.GetUsername(c)
	if _, err := h.userService.GetOrCreate(username); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	crops, err := h.cropService.ListCrops(username, c.Query("include_harvested") == "true")
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	now := time.Now()
	response := make([]CropResponse, len(crops))
	for i, crop := range crops {
		response[i] = toCropResponse(crop, now)
	}

	c.JSON(http.StatusOK, response)
}

// Plant godoc
// @Summary Plant a crop
// @Description Plant a crop; its ready time is fixed from the catalog harvest duration
// @Tags crops
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PlantRequest true "Crop to plant"
// @Success 201 {object} CropResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /crops [post]
func (h *CropHandler) Plant(c *gin.Context) {
	username := middleware.GetUsername(c)

	var req PlantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if _, err := h.userService.GetOrCreate(username); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	crop, err := h.cropService.Plant(username, req.CropTypeID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidQuantity):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.Is(err, services.ErrCropTypeNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, toCropResponse(*crop, time.Now()))
}

// Harvest godoc
// @Summary Harvest a crop
// @Tags crops
// @Produce json
// @Security BearerAuth
// @Param id path int true "Crop ID"
// @Success 200 {object} CropResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /crops/{id}/harvest [post]
func (h *CropHandler) Harvest(c *gin.Context) {
	username := middleware.GetUsername(c)

	cropID, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid crop id"})
		return
	}

	crop, err := h.cropService.Harvest(username, cropID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound), errors.Is(err, services.ErrCropNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "crop not found"})
		case errors.Is(err, services.ErrCropAlreadyHarvested):
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		case errors.Is(err, services.ErrCropNotReady):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, toCropResponse(*crop, time.Now()))
}

// Overview godoc
// @Summary Crop counts
// @Description Growing, ready and harvested counts for the authenticated user
// @Tags crops
// @Produce json
// @Security BearerAuth
// @Success 200 {object} repository.CropCounts
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /crops/overview [get]
func (h *CropHandler) Overview(c *gin.Context) {
	username := middleware.GetUsername(c)

	counts, err := h.cropService.Overview(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusOK, repository.CropCounts{})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, counts)
}

// SaveCropType godoc
// @Summary Create or update a crop type (Admin)
// @Description Upsert a catalog entry by name. Existing plantings keep their ready time.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CropTypeRequest true "Crop type"
// @Success 200 {object} CropTypeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /admin/crop-types [put]
func (h *CropHandler) SaveCropType(c *gin.Context) {
	var req CropTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	cropType := &models.CropType{
		Name:           req.Name,
		Kind:           req.Kind,
		GrowSeconds:    req.GrowSeconds,
		HarvestSeconds: req.HarvestSeconds,
		SellPrice:      req.SellPrice,
		ImageURL:       req.ImageURL,
		Description:    req.Description,
		Active:         req.Active == nil || *req.Active,
	}

	if err := h.cropService.SaveCropType(cropType); err != nil {
		if errors.Is(err, services.ErrInvalidCropType) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, toCropTypeResponse(*cropType))
}
