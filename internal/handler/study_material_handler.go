package handler

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-book-exchange/internal/dto"
	"github.com/noah-isme/campus-book-exchange/internal/models"
	"github.com/noah-isme/campus-book-exchange/internal/service"
	appErrors "github.com/noah-isme/campus-book-exchange/pkg/errors"
	"github.com/noah-isme/campus-book-exchange/pkg/response"
)

type studyMaterialService interface {
	Upload(ctx context.Context, actor models.Actor, input dto.StudyMaterialInput, file *service.Upload) (*models.StudyMaterial, error)
	Pending(ctx context.Context) ([]models.StudyMaterial, error)
	Approved(ctx context.Context) ([]models.StudyMaterial, error)
	Approve(ctx context.Context, id int64) error
	Reject(ctx context.Context, id int64) error
	Open(ctx context.Context, actor models.Actor, id int64) (*models.StudyMaterial, *os.File, error)
}

// StudyMaterialHandler exposes study material sharing.
type StudyMaterialHandler struct {
	materials studyMaterialService
	maxUpload int64
}

// NewStudyMaterialHandler constructs StudyMaterialHandler.
func NewStudyMaterialHandler(materials studyMaterialService, maxUpload int64) *StudyMaterialHandler {
	return &StudyMaterialHandler{materials: materials, maxUpload: maxUpload}
}

// Upload godoc
// @Summary Share a study material
// @Tags StudyMaterials
// @Accept mpfd
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param semester formData string false "Semester"
// @Param department formData string false "Department"
// @Param study_material formData file true "File"
// @Success 201 {object} response.Envelope
// @Router /study-materials [post]
func (h *StudyMaterialHandler) Upload(c *gin.Context) {
	var input dto.StudyMaterialInput
	if err := c.ShouldBind(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid study material details"))
		return
	}
	file, closeFn, err := formUpload(c, "study_material", h.maxUpload, false)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	material, err := h.materials.Upload(c.Request.Context(), actorFromContext(c), input, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Study material uploaded, awaiting approval", material)
}

// Approved godoc
// @Summary List approved study materials
// @Tags StudyMaterials
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /study-materials [get]
func (h *StudyMaterialHandler) Approved(c *gin.Context) {
	list, err := h.materials.Approved(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// Pending godoc
// @Summary List study materials awaiting approval
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/study-materials/pending [get]
func (h *StudyMaterialHandler) Pending(c *gin.Context) {
	list, err := h.materials.Pending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// Approve godoc
// @Summary Approve a study material
// @Tags Admin
// @Produce json
// @Param id path int true "Material ID"
// @Success 200 {object} response.Envelope
// @Router /admin/study-materials/{id}/approve [post]
func (h *StudyMaterialHandler) Approve(c *gin.Context) {
	h.moderate(c, "Study material approved", h.materials.Approve)
}

// Reject godoc
// @Summary Reject a study material
// @Tags Admin
// @Produce json
// @Param id path int true "Material ID"
// @Success 200 {object} response.Envelope
// @Router /admin/study-materials/{id}/reject [post]
func (h *StudyMaterialHandler) Reject(c *gin.Context) {
	h.moderate(c, "Study material rejected", h.materials.Reject)
}

// Download godoc
// @Summary Download a study material
// @Tags StudyMaterials
// @Produce octet-stream
// @Param id path int true "Material ID"
// @Success 200 {file} file
// @Router /study-materials/{id}/download [get]
func (h *StudyMaterialHandler) Download(c *gin.Context) {
	id, err := pathID(c, "material id")
	if err != nil {
		response.Error(c, err)
		return
	}
	material, file, err := h.materials.Open(c.Request.Context(), actorFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read file"))
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+material.FileName+"\"")
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
}

func (h *StudyMaterialHandler) moderate(c *gin.Context, message string, fn func(context.Context, int64) error) {
	id, err := pathID(c, "material id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := fn(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, message, nil)
}
