package repository

import (
	"context"
	"errors"
	"time"

	"campusboard/internal/models"
	"campusboard/internal/observability"

	"gorm.io/gorm"
)

// VerificationRepository stores alumni verification applications.
type VerificationRepository interface {
	Create(ctx context.Context, app *models.AlumniVerificationApplication) error
	GetByID(ctx context.Context, id uint) (*models.AlumniVerificationApplication, error)
	ListByApplicant(ctx context.Context, applicantID uint) ([]models.AlumniVerificationApplication, error)
	SaveReview(ctx context.Context, app *models.AlumniVerificationApplication) error
	SupersedePending(ctx context.Context, applicantID, exceptID, reviewerID uint, note string, at time.Time) (int64, error)
	List(ctx context.Context, status *models.VerificationStatus, limit, offset int) ([]models.AlumniVerificationApplication, int64, error)
}

type verificationRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewVerificationRepository creates a new VerificationRepository
func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &verificationRepository{db: db, log: observability.NewRepoLogger("alumni_verification_applications")}
}

func (r *verificationRepository) Create(ctx context.Context, app *models.AlumniVerificationApplication) error {
	if err := r.db.WithContext(ctx).Create(app).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return translate(err)
	}
	r.log.LogCreate(ctx, map[string]any{"application_id": app.ID, "applicant_id": app.ApplicantID})
	return nil
}

func (r *verificationRepository) GetByID(ctx context.Context, id uint) (*models.AlumniVerificationApplication, error) {
	var app models.AlumniVerificationApplication
	if err := r.db.WithContext(ctx).First(&app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Application", id)
		}
		return nil, translate(err)
	}
	return &app, nil
}

// ListByApplicant returns the applicant's history, newest first.
func (r *verificationRepository) ListByApplicant(ctx context.Context, applicantID uint) ([]models.AlumniVerificationApplication, error) {
	apps := []models.AlumniVerificationApplication{}
	err := r.db.WithContext(ctx).
		Where("applicant_id = ?", applicantID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&apps).Error
	if err != nil {
		return nil, translate(err)
	}
	return apps, nil
}

// SaveReview persists the review outcome of one application.
func (r *verificationRepository) SaveReview(ctx context.Context, app *models.AlumniVerificationApplication) error {
	err := r.db.WithContext(ctx).Model(app).
		Select("status", "review_note", "reviewed_by", "reviewed_at", "updated_at").
		Updates(app).Error
	if err != nil {
		r.log.LogError(ctx, err, "review")
		return translate(err)
	}
	r.log.LogUpdate(ctx, map[string]any{"application_id": app.ID, "status": app.Status})
	return nil
}

// SupersedePending rejects every other pending application of the applicant.
func (r *verificationRepository) SupersedePending(ctx context.Context, applicantID, exceptID, reviewerID uint, note string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.AlumniVerificationApplication{}).
		Where("applicant_id = ? AND status = ? AND id <> ?", applicantID, models.VerificationPending, exceptID).
		Updates(map[string]any{
			"status":      models.VerificationRejected,
			"review_note": note,
			"reviewed_by": reviewerID,
			"reviewed_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "supersede")
		return 0, translate(res.Error)
	}
	r.log.LogUpdate(ctx, map[string]any{"applicant_id": applicantID, "superseded": res.RowsAffected})
	return res.RowsAffected, nil
}

// List returns the moderation queue, newest first. A nil status lists all.
func (r *verificationRepository) List(ctx context.Context, status *models.VerificationStatus, limit, offset int) ([]models.AlumniVerificationApplication, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.AlumniVerificationApplication{})
	if status != nil {
		base = base.Where("status = ?", *status)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	apps := []models.AlumniVerificationApplication{}
	err := base.Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&apps).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return apps, total, nil
}
