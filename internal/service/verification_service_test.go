package service

import (
	"context"
	"errors"
	"testing"

	"campusboard/internal/models"
	"campusboard/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signerStub struct {
	err error
}

func (s signerStub) PresignGet(_ context.Context, key string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://signed.example/" + key, nil
}

func TestVerificationService_ApplyRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alumni := h.user(t, 1, models.RoleAlumni)
	student := h.user(t, 2, models.RoleStudent)

	_, err := h.verifications.Apply(ctx, models.Caller{}, ApplyInput{})
	requireCode(t, err, models.CodeUnauthorized)

	_, err = h.verifications.Apply(ctx, student, ApplyInput{StudentID: "S", IDCardImage: "k"})
	requireCode(t, err, models.CodeForbidden)

	_, err = h.verifications.Apply(ctx, alumni, ApplyInput{CurrentJobInfo: "Engineer"})
	appErr := requireCode(t, err, models.CodeValidation)
	require.Len(t, appErr.Fields, 2)
	assert.Equal(t, "studentId", appErr.Fields[0].Field)
	assert.Equal(t, "idCardImage", appErr.Fields[1].Field)

	app, err := h.verifications.Apply(ctx, alumni, ApplyInput{StudentID: " 2019-042 ", IDCardImage: "cards/1.png", CurrentJobInfo: "SRE at Acme"})
	require.NoError(t, err)
	assert.Equal(t, models.VerificationPending, app.Status)
	assert.Equal(t, "2019-042", app.StudentID)

	status, err := h.verifications.EffectiveStatus(ctx, alumni.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationPending, status)

	status, err = h.verifications.EffectiveStatus(ctx, 404)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationNotSubmitted, status)
}

func TestVerificationService_ApproveSupersedesOtherPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alumni := h.user(t, 1, models.RoleAlumni)
	faculty := h.user(t, 2, models.RoleFaculty)

	a, err := h.verifications.Apply(ctx, alumni, ApplyInput{StudentID: "S-1", IDCardImage: "cards/a.png"})
	require.NoError(t, err)
	b, err := h.verifications.Apply(ctx, alumni, ApplyInput{StudentID: "S-1", IDCardImage: "cards/b.png"})
	require.NoError(t, err)

	approved, err := h.verifications.Review(ctx, a.ID, "APPROVE", "looks good", faculty)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, faculty.UserID, *approved.ReviewedBy)
	assert.NotNil(t, approved.ReviewedAt)

	overview, err := h.verifications.Me(ctx, alumni)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationApproved, overview.Status)
	require.Len(t, overview.Applications, 2)

	byID := map[uint]models.AlumniVerificationApplication{}
	for _, app := range overview.Applications {
		byID[app.ID] = app
	}
	assert.Equal(t, models.VerificationApproved, byID[a.ID].Status)
	assert.Equal(t, models.VerificationRejected, byID[b.ID].Status)
	assert.Equal(t, "superseded by approved application #1", byID[b.ID].ReviewNote)

	_, err = h.verifications.Review(ctx, b.ID, ReviewApprove, "", faculty)
	requireCode(t, err, models.CodeValidation)

	_, err = h.verifications.Apply(ctx, alumni, ApplyInput{StudentID: "S-1", IDCardImage: "cards/c.png"})
	requireCode(t, err, models.CodeValidation)

	h.events.Wait()
	assert.Contains(t, h.sink.types(), notifications.EventVerificationReviewed)
}

func TestVerificationService_RejectAllowsResubmission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alumni := h.user(t, 1, models.RoleAlumni)
	admin := h.user(t, 2, models.RoleAdmin)

	app, err := h.verifications.Apply(ctx, alumni, ApplyInput{StudentID: "S-9", IDCardImage: "cards/x.png"})
	require.NoError(t, err)
	_, err = h.verifications.Review(ctx, app.ID, ReviewReject, "blurry photo", admin)
	require.NoError(t, err)

	status, err := h.verifications.EffectiveStatus(ctx, alumni.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationRejected, status)

	_, err = h.verifications.Apply(ctx, alumni, ApplyInput{StudentID: "S-9", IDCardImage: "cards/y.png"})
	require.NoError(t, err)

	status, err = h.verifications.EffectiveStatus(ctx, alumni.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationPending, status)
}

func TestVerificationService_ReviewGuards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alumni := h.user(t, 1, models.RoleAlumni)
	faculty := h.user(t, 2, models.RoleFaculty)
	app, err := h.verifications.Apply(ctx, alumni, ApplyInput{StudentID: "S", IDCardImage: "k"})
	require.NoError(t, err)

	_, err = h.verifications.Review(ctx, app.ID, ReviewApprove, "", models.Caller{})
	requireCode(t, err, models.CodeUnauthorized)

	_, err = h.verifications.Review(ctx, app.ID, ReviewApprove, "", alumni)
	requireCode(t, err, models.CodeForbidden)

	_, err = h.verifications.Review(ctx, app.ID, "maybe", "", faculty)
	requireCode(t, err, models.CodeValidation)

	_, err = h.verifications.Review(ctx, 999, ReviewApprove, "", faculty)
	requireCode(t, err, models.CodeNotFound)
}

func TestVerificationService_QueueFiltersAndSigns(t *testing.T) {
	h := newHarness(t)
	h.verifications.signer = signerStub{}
	ctx := context.Background()
	alumni := h.user(t, 1, models.RoleAlumni)
	faculty := h.user(t, 2, models.RoleFaculty)

	first, err := h.verifications.Apply(ctx, alumni, ApplyInput{StudentID: "S", IDCardImage: "cards/1.png"})
	require.NoError(t, err)
	_, err = h.verifications.Review(ctx, first.ID, ReviewReject, "", faculty)
	require.NoError(t, err)
	_, err = h.verifications.Apply(ctx, alumni, ApplyInput{StudentID: "S", IDCardImage: "cards/2.png"})
	require.NoError(t, err)

	queue, err := h.verifications.Queue(ctx, faculty, "pending", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), queue.Total)
	require.Len(t, queue.Applications, 1)
	assert.Equal(t, "https://signed.example/cards/2.png", queue.Applications[0].IDCardImageURL)
	require.NotNil(t, queue.Applications[0].Applicant)
	assert.Equal(t, alumni.UserID, queue.Applications[0].Applicant.ID)

	queue, err = h.verifications.Queue(ctx, faculty, "all", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), queue.Total)

	_, err = h.verifications.Queue(ctx, faculty, "lost", 10, 0)
	requireCode(t, err, models.CodeValidation)

	_, err = h.verifications.Queue(ctx, alumni, "", 10, 0)
	requireCode(t, err, models.CodeForbidden)

	h.verifications.signer = signerStub{err: errors.New("s3 down")}
	queue, err = h.verifications.Queue(ctx, faculty, "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, queue.Applications[0].IDCardImageURL)
}
