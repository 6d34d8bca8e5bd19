package models

// RegisterInput carries registration fields and the local paths of uploaded images.
type RegisterInput struct {
	FullName       string
	Email          string
	Username       string
	Password       string
	AvatarPath     string // required
	CoverImagePath string // optional
}
