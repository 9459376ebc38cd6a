package database

import "campusboard/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Tag{},
		&models.PostTag{},
		&models.PostRef{},
		&models.PostVote{},
		&models.PostComment{},
		&models.AlumniVerificationApplication{},
		&models.UserNotificationState{},
		&models.UserNotificationRead{},
	}
}
