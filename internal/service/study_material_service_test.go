package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-book-exchange/internal/dto"
	"github.com/noah-isme/campus-book-exchange/internal/models"
	appErrors "github.com/noah-isme/campus-book-exchange/pkg/errors"
	"github.com/noah-isme/campus-book-exchange/pkg/storage"
)

type memoryMaterials struct {
	nextID int64
	items  map[int64]models.StudyMaterial
}

func newMemoryMaterials() *memoryMaterials {
	return &memoryMaterials{items: map[int64]models.StudyMaterial{}}
}

func (m *memoryMaterials) Create(_ context.Context, mat *models.StudyMaterial) error {
	m.nextID++
	mat.ID = m.nextID
	mat.Status = models.MaterialPending
	m.items[mat.ID] = *mat
	return nil
}

func (m *memoryMaterials) GetByID(_ context.Context, id int64) (*models.StudyMaterial, error) {
	mat, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &mat, nil
}

func (m *memoryMaterials) ListByStatus(_ context.Context, status string) ([]models.StudyMaterial, error) {
	var out []models.StudyMaterial
	for _, mat := range m.items {
		if mat.Status == status {
			out = append(out, mat)
		}
	}
	return out, nil
}

func (m *memoryMaterials) Approve(_ context.Context, id int64) error {
	mat, ok := m.items[id]
	if !ok || mat.Status != models.MaterialPending {
		return sql.ErrNoRows
	}
	mat.Status = models.MaterialApproved
	m.items[id] = mat
	return nil
}

func (m *memoryMaterials) Delete(_ context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func TestStudyMaterialModeration(t *testing.T) {
	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	store := newMemoryMaterials()
	svc := NewStudyMaterialService(store, files, nil, nil)

	_, err = svc.Upload(context.Background(), seller, dto.StudyMaterialInput{Title: "Notes"}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	mat, err := svc.Upload(context.Background(), seller, dto.StudyMaterialInput{Title: "DSP notes", Semester: "5"}, &Upload{Name: "dsp.pdf", Reader: strings.NewReader("notes")})
	require.NoError(t, err)
	assert.Equal(t, "dsp.pdf", mat.FileName)

	pending, err := svc.Pending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, _, err = svc.Open(context.Background(), other, mat.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, f, err := svc.Open(context.Background(), seller, mat.ID)
	require.NoError(t, err)
	body, _ := io.ReadAll(f)
	require.NoError(t, f.Close())
	assert.Equal(t, "notes", string(body))

	require.NoError(t, svc.Approve(context.Background(), mat.ID))
	err = svc.Approve(context.Background(), mat.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	approved, err := svc.Approved(context.Background())
	require.NoError(t, err)
	assert.Len(t, approved, 1)

	_, f, err = svc.Open(context.Background(), other, mat.ID)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestStudyMaterialRejectRemovesFile(t *testing.T) {
	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	store := newMemoryMaterials()
	svc := NewStudyMaterialService(store, files, nil, nil)

	mat, err := svc.Upload(context.Background(), seller, dto.StudyMaterialInput{Title: "Old papers"}, &Upload{Name: "papers.zip", Reader: strings.NewReader("zip")})
	require.NoError(t, err)
	stored := filepath.Join(dir, mat.FilePath)
	assert.FileExists(t, stored)

	require.NoError(t, svc.Reject(context.Background(), mat.ID))
	assert.NoFileExists(t, stored)
	assert.Empty(t, store.items)

	_, _, err = svc.Open(context.Background(), admin, mat.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
