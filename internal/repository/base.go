package repository

import (
	"campusboard/internal/database"
	"campusboard/internal/models"

	"gorm.io/gorm"
)

// readDB routes lookups that tolerate replica lag to the read replica.
// Post rows and vote rows always come from the primary so a read right
// after a sweep or a vote sees the write.
func readDB(primary *gorm.DB) *gorm.DB {
	return database.GetReadDB(primary)
}

func translate(err error) error {
	return models.TranslateDatastoreError(err)
}
