package handler

import (
	"mime/multipart"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-book-exchange/internal/middleware"
	"github.com/noah-isme/campus-book-exchange/internal/models"
	"github.com/noah-isme/campus-book-exchange/internal/service"
	appErrors "github.com/noah-isme/campus-book-exchange/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

func actorFromContext(c *gin.Context) models.Actor {
	return models.ActorFromClaims(claimsFromContext(c))
}

func bookID(c *gin.Context) (int64, error) {
	return pathID(c, "book id")
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid "+name)
	}
	return id, nil
}

// bindJSON decodes an optional JSON body; an empty body leaves dst untouched.
func bindJSON(c *gin.Context, dst interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body")
	}
	return nil
}

// formUpload opens the multipart file field. A missing field yields nil when
// optional is set.
func formUpload(c *gin.Context, field string, maxBytes int64, optional bool) (*service.Upload, func(), error) {
	header, err := c.FormFile(field)
	if err != nil {
		if optional {
			return nil, func() {}, nil
		}
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, field+" is required")
	}
	if maxBytes > 0 && header.Size > maxBytes {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, field+" is too large")
	}
	return openUpload(header)
}

func openUpload(header *multipart.FileHeader) (*service.Upload, func(), error) {
	file, err := header.Open()
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to read upload")
	}
	return &service.Upload{Name: header.Filename, Reader: file}, func() { _ = file.Close() }, nil
}
