package repository

import (
	"context"
	"regexp"
	"testing"

	"campusboard/internal/cache"
	"campusboard/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_GetByID(t *testing.T) {
	cache.SetClient(nil)
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		expectedUser *models.User
		expectedCode string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "full_name", "email", "role"}).
					AddRow(1, "Ada Lovelace", "ada@example.edu", "alumni")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
			expectedUser: &models.User{ID: 1, FullName: "Ada Lovelace", Email: "ada@example.edu", Role: models.RoleAlumni},
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			expectedCode: models.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)
			if tt.expectedCode != "" {
				require.Error(t, err)
				assert.True(t, models.IsCode(err, tt.expectedCode))
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedUser.FullName, user.FullName)
				assert.Equal(t, tt.expectedUser.Role, user.Role)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByIDs_SkipsUnknown(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &models.User{ID: 1, FullName: "One", Role: models.RoleStudent}))
	require.NoError(t, repo.Upsert(ctx, &models.User{ID: 2, FullName: "Two", Role: models.RoleFaculty}))
	require.NoError(t, repo.Upsert(ctx, &models.User{ID: 2, FullName: "Two Renamed", Role: models.RoleFaculty}))

	users, err := repo.GetByIDs(ctx, []uint{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, "Two Renamed", users[2].FullName)
	assert.Nil(t, users[3])
}
