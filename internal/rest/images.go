package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/dfryer1193/epicarchive/api"
	"github.com/dfryer1193/epicarchive/archive/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ImageHandler serves the archive index over HTTP
type ImageHandler struct {
	index domain.ArchiveIndex
}

func NewImageHandler(index domain.ArchiveIndex) *ImageHandler {
	return &ImageHandler{index: index}
}

func (h *ImageHandler) ListImages(c *gin.Context) {
	var date time.Time
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation(domain.DateLayout, raw, time.UTC)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.Error{Error: "date must be formatted as YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	images, err := h.index.ListImages(c.Request.Context(), date)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list archived images")
		c.JSON(http.StatusInternalServerError, api.Error{Error: "failed to list images"})
		return
	}

	resp := api.ImageList{Images: make([]api.Image, 0, len(images))}
	if !date.IsZero() {
		resp.Date = date.Format(domain.DateLayout)
	}
	for _, img := range images {
		resp.Images = append(resp.Images, toApiImage(img))
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ImageHandler) GetImage(c *gin.Context) {
	img, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toApiImage(img))
}

func (h *ImageHandler) GetImageFile(c *gin.Context) {
	img, ok := h.lookup(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "image/png")
	c.File(img.Path)
}

func (h *ImageHandler) lookup(c *gin.Context) (*domain.ArchivedImage, bool) {
	identifier := c.Param("identifier")

	img, err := h.index.GetImage(c.Request.Context(), identifier)
	if errors.Is(err, domain.ErrImageNotFound) {
		c.JSON(http.StatusNotFound, api.Error{Error: "image not found"})
		return nil, false
	}
	if err != nil {
		log.Error().Err(err).Str("identifier", identifier).Msg("Failed to get archived image")
		c.JSON(http.StatusInternalServerError, api.Error{Error: "failed to get image"})
		return nil, false
	}

	return img, true
}

func toApiImage(img *domain.ArchivedImage) api.Image {
	return api.Image{
		Identifier: img.Identifier,
		Caption:    img.Caption,
		Image:      img.Image,
		Version:    img.Version,
		CapturedAt: img.CapturedAt.UTC().Format(domain.CapturedAtLayout),
		Size:       img.Size,
		RunID:      img.RunID,
		StoredAt:   img.StoredAt.UTC().Format(time.RFC3339),
	}
}
