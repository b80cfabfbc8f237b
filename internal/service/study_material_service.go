package service

import (
	"context"
	"errors"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-book-exchange/internal/dto"
	"github.com/noah-isme/campus-book-exchange/internal/models"
	appErrors "github.com/noah-isme/campus-book-exchange/pkg/errors"
	"github.com/noah-isme/campus-book-exchange/pkg/storage"
)

type materialStore interface {
	Create(ctx context.Context, m *models.StudyMaterial) error
	GetByID(ctx context.Context, id int64) (*models.StudyMaterial, error)
	ListByStatus(ctx context.Context, status string) ([]models.StudyMaterial, error)
	Approve(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

type materialFiles interface {
	fileStore
	Open(name string) (*os.File, error)
}

// StudyMaterialService handles shared study files and their moderation.
type StudyMaterialService struct {
	store     materialStore
	files     materialFiles
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudyMaterialService constructs a StudyMaterialService.
func NewStudyMaterialService(store materialStore, files materialFiles, validate *validator.Validate, logger *zap.Logger) *StudyMaterialService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudyMaterialService{store: store, files: files, validator: validate, logger: logger}
}

// Upload stores the file and records it as pending.
func (s *StudyMaterialService) Upload(ctx context.Context, actor models.Actor, input dto.StudyMaterialInput, file *Upload) (*models.StudyMaterial, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, validationError(err, "invalid study material details")
	}
	if file == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "study_material file is required")
	}
	stored, err := s.files.Save(file.Name, file.Reader)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to store file")
	}
	material := &models.StudyMaterial{
		UserID:      actor.Email,
		Title:       input.Title,
		FileName:    file.Name,
		FilePath:    stored,
		Description: input.Description,
		Semester:    input.Semester,
		Department:  input.Department,
	}
	if err := s.store.Create(ctx, material); err != nil {
		s.removeFile(stored)
		return nil, appErrors.Internal(err, "failed to save study material")
	}
	return material, nil
}

// Pending lists uploads awaiting moderation.
func (s *StudyMaterialService) Pending(ctx context.Context) ([]models.StudyMaterial, error) {
	return s.list(ctx, models.MaterialPending)
}

// Approved lists published materials.
func (s *StudyMaterialService) Approved(ctx context.Context) ([]models.StudyMaterial, error) {
	return s.list(ctx, models.MaterialApproved)
}

func (s *StudyMaterialService) list(ctx context.Context, status string) ([]models.StudyMaterial, error) {
	list, err := s.store.ListByStatus(ctx, status)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list study materials")
	}
	if list == nil {
		list = []models.StudyMaterial{}
	}
	return list, nil
}

// Approve publishes a pending upload.
func (s *StudyMaterialService) Approve(ctx context.Context, id int64) error {
	if err := s.store.Approve(ctx, id); err != nil {
		return storeError(err, "pending study material not found", "failed to approve study material")
	}
	return nil
}

// Reject deletes the record and, best-effort, the stored file.
func (s *StudyMaterialService) Reject(ctx context.Context, id int64) error {
	material, err := s.store.GetByID(ctx, id)
	if err != nil {
		return storeError(err, "study material not found", "failed to load study material")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return storeError(err, "study material not found", "failed to reject study material")
	}
	s.removeFile(material.FilePath)
	return nil
}

// Open returns the material with a handle to its file. Plain users may only
// download approved materials or their own uploads.
func (s *StudyMaterialService) Open(ctx context.Context, actor models.Actor, id int64) (*models.StudyMaterial, *os.File, error) {
	material, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, storeError(err, "study material not found", "failed to load study material")
	}
	if material.Status != models.MaterialApproved && !actor.Admin && material.UserID != actor.Email {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "study material not found")
	}
	f, err := s.files.Open(material.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, storage.ErrInvalidName) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "file not found on server")
		}
		return nil, nil, appErrors.Internal(err, "failed to open file")
	}
	return material, f, nil
}

func (s *StudyMaterialService) removeFile(name string) {
	if err := s.files.Delete(name); err != nil {
		s.logger.Warn("failed to delete study material file", zap.String("file", name), zap.Error(err))
	}
}
