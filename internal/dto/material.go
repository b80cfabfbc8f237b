package dto

// StudyMaterialInput carries the multipart fields of a study material upload.
type StudyMaterialInput struct {
	Title       string `form:"title" validate:"required,max=255"`
	Description string `form:"description" validate:"max=2000"`
	Semester    string `form:"semester" validate:"max=32"`
	Department  string `form:"department" validate:"max=128"`
}
