package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"campusboard/internal/middleware"
	"campusboard/internal/models"
	"campusboard/internal/notifications"
	"campusboard/internal/observability"
	"campusboard/internal/repository"
	"campusboard/internal/validation"
)

const (
	defaultQueueLimit = 20
	maxQueueLimit     = 100
)

// Review actions.
const (
	ReviewApprove = "approve"
	ReviewReject  = "reject"
)

// ObjectSigner issues short-lived links to stored objects.
type ObjectSigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
}

// VerificationService runs the alumni verification workflow.
type VerificationService struct {
	repo   repository.VerificationRepository
	users  repository.UserRepository
	signer ObjectSigner
	events *notifications.Dispatcher
	now    func() time.Time
}

// NewVerificationService creates a verification service. signer and events may be nil.
func NewVerificationService(
	repo repository.VerificationRepository,
	users repository.UserRepository,
	signer ObjectSigner,
	events *notifications.Dispatcher,
) *VerificationService {
	return &VerificationService{repo: repo, users: users, signer: signer, events: events, now: time.Now}
}

// ApplyInput is an alumni's verification request.
type ApplyInput struct {
	StudentID      string `json:"studentId"`
	IDCardImage    string `json:"idCardImage"`
	CurrentJobInfo string `json:"currentJobInfo"`
}

// VerificationOverview is an applicant's effective status with full history.
type VerificationOverview struct {
	Status       models.VerificationStatus              `json:"status"`
	Applications []models.AlumniVerificationApplication `json:"applications"`
}

// VerificationQueue is one page of the moderation queue.
type VerificationQueue struct {
	Applications []models.AlumniVerificationApplication
	Total        int64
	Limit        int
	Offset       int
}

// EffectiveStatus folds every application of userID into one status.
func (s *VerificationService) EffectiveStatus(ctx context.Context, userID uint) (models.VerificationStatus, error) {
	apps, err := s.repo.ListByApplicant(ctx, userID)
	if err != nil {
		return "", err
	}
	return effectiveOf(apps), nil
}

func effectiveOf(apps []models.AlumniVerificationApplication) models.VerificationStatus {
	statuses := make([]models.VerificationStatus, 0, len(apps))
	for _, a := range apps {
		statuses = append(statuses, a.Status)
	}
	return models.EffectiveVerificationStatus(statuses)
}

// Me returns the caller's effective status and application history.
func (s *VerificationService) Me(ctx context.Context, caller models.Caller) (*VerificationOverview, error) {
	if !caller.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	apps, err := s.repo.ListByApplicant(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	return &VerificationOverview{Status: effectiveOf(apps), Applications: apps}, nil
}

// Apply files a new pending application for an alumni caller. Rejected
// applicants may reapply; verified ones may not.
func (s *VerificationService) Apply(ctx context.Context, caller models.Caller, in ApplyInput) (*models.AlumniVerificationApplication, error) {
	if !caller.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if caller.Role != models.RoleAlumni {
		return nil, models.NewForbiddenError("Only alumni accounts can apply for verification")
	}

	app := &models.AlumniVerificationApplication{
		ApplicantID:    caller.UserID,
		StudentID:      validation.SanitizeText(in.StudentID),
		IDCardImage:    strings.TrimSpace(in.IDCardImage),
		CurrentJobInfo: validation.SanitizeText(in.CurrentJobInfo),
		Status:         models.VerificationPending,
	}

	var errs fieldErrors
	errs.add("studentId", validation.ValidateLength("studentId", app.StudentID, 1, validation.MaxStudentIDLength))
	errs.add("idCardImage", validation.ValidateLength("idCardImage", app.IDCardImage, 1, 512))
	errs.add("currentJobInfo", validation.ValidateLength("currentJobInfo", app.CurrentJobInfo, 0, validation.MaxNoteLength))
	if err := errs.err(); err != nil {
		return nil, err
	}

	status, err := s.EffectiveStatus(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if status == models.VerificationApproved {
		return nil, models.NewFieldValidationError("status", "Alumni account is already verified")
	}

	if err := s.repo.Create(ctx, app); err != nil {
		return nil, err
	}

	s.events.Publish(ctx, notifications.NewEvent(notifications.EventVerificationSubmitted, map[string]any{
		"applicationId": app.ID,
		"applicantId":   app.ApplicantID,
		"key":           models.VerificationNotificationKey(app.ID),
	}, notifications.Audience{Moderators: true}))

	return app, nil
}

// Review approves or rejects a pending application. Approval also rejects
// every other pending application of the same applicant.
func (s *VerificationService) Review(ctx context.Context, applicationID uint, action, note string, reviewer models.Caller) (*models.AlumniVerificationApplication, error) {
	if !reviewer.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if !reviewer.IsModerator() {
		return nil, models.NewForbiddenError("Moderator access required")
	}

	var status models.VerificationStatus
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ReviewApprove:
		status = models.VerificationApproved
	case ReviewReject:
		status = models.VerificationRejected
	default:
		return nil, models.NewFieldValidationError("action", "action must be approve or reject")
	}

	note = validation.SanitizeText(note)
	if err := validation.ValidateLength("note", note, 0, validation.MaxNoteLength); err != nil {
		return nil, models.NewFieldValidationError("note", err.Error())
	}

	app, err := s.repo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.VerificationPending {
		return nil, models.NewFieldValidationError("status", fmt.Sprintf("Application is already %s", app.Status))
	}

	now := s.now().UTC()
	reviewerID := reviewer.UserID
	app.Status = status
	app.ReviewNote = note
	app.ReviewedBy = &reviewerID
	app.ReviewedAt = &now
	app.UpdatedAt = now
	if err := s.repo.SaveReview(ctx, app); err != nil {
		return nil, err
	}

	if status == models.VerificationApproved {
		superseded, err := s.repo.SupersedePending(ctx, app.ApplicantID, app.ID, reviewerID,
			fmt.Sprintf("superseded by approved application #%d", app.ID), now)
		if err != nil {
			return nil, err
		}
		if superseded > 0 {
			middleware.Logger.InfoContext(ctx, "superseded pending verification applications",
				slog.Any("applicant_id", app.ApplicantID), slog.Int64("count", superseded))
		}
	}
	observability.VerificationReviews.WithLabelValues(string(status)).Inc()

	s.events.Publish(ctx, notifications.NewEvent(notifications.EventVerificationReviewed, map[string]any{
		"applicationId": app.ID,
		"status":        app.Status,
		"key":           models.VerificationNotificationKey(app.ID),
	}, notifications.Audience{Moderators: true, UserIDs: []uint{app.ApplicantID}}))

	return app, nil
}

// Queue lists applications for moderators, optionally by status, with
// applicants resolved and ID card images signed.
func (s *VerificationService) Queue(ctx context.Context, caller models.Caller, rawStatus string, limit, offset int) (*VerificationQueue, error) {
	if !caller.IsModerator() {
		if !caller.Authenticated() {
			return nil, models.NewUnauthorizedError("Authentication required")
		}
		return nil, models.NewForbiddenError("Moderator access required")
	}

	var status *models.VerificationStatus
	if raw := strings.TrimSpace(rawStatus); raw != "" && !strings.EqualFold(raw, "all") {
		parsed, ok := models.ParseVerificationStatus(raw)
		if !ok {
			return nil, models.NewFieldValidationError("status", "status must be pending, approved, rejected or all")
		}
		status = &parsed
	}

	limit, offset = clampPage(limit, offset, defaultQueueLimit, maxQueueLimit)
	apps, total, err := s.repo.List(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	s.decorate(ctx, apps)
	return &VerificationQueue{Applications: apps, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *VerificationService) decorate(ctx context.Context, apps []models.AlumniVerificationApplication) {
	if len(apps) == 0 {
		return
	}
	ids := make([]uint, 0, len(apps))
	for _, a := range apps {
		ids = append(ids, a.ApplicantID)
	}
	users, err := s.users.GetByIDs(ctx, dedupeIDs(ids))
	if err != nil {
		middleware.Logger.WarnContext(ctx, "applicant lookup failed", slog.String("error", err.Error()))
	}
	for i := range apps {
		apps[i].Applicant = users[apps[i].ApplicantID]
		if s.signer == nil {
			continue
		}
		link, err := s.signer.PresignGet(ctx, apps[i].IDCardImage)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "presign id card failed",
				slog.Any("application_id", apps[i].ID), slog.String("error", err.Error()))
			continue
		}
		apps[i].IDCardImageURL = link
	}
}
