// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"campusboard/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Options controls how much data the seeder writes.
type Options struct {
	Users         int
	Posts         int
	Tags          int
	MaxDays       int
	ExpiredShare  float64
	VotesPerPost  int
	CommentsLimit int
	// RandSeed makes the generated content reproducible when non-zero.
	RandSeed      int64
}

// DefaultOptions is a small but representative community.
func DefaultOptions() Options {
	return Options{
		Users:         40,
		Posts:         120,
		Tags:          12,
		MaxDays:       60,
		ExpiredShare:  0.1,
		VotesPerPost:  8,
		CommentsLimit: 5,
	}
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	fake *gofakeit.Faker
}

// NewFactory creates a Factory bound to db.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 60
	}
	//nolint:gosec // Weak random number generator is fine for seeding
	return &Factory{db: db, opts: opts, rng: rand.New(rand.NewSource(seed)), fake: gofakeit.New(seed)}
}

// CreateUser persists a user with the given role.
func (f *Factory) CreateUser(role models.Role, overrides ...func(*models.User)) (*models.User, error) {
	first, last := f.fake.FirstName(), f.fake.LastName()
	user := &models.User{
		FullName: first + " " + last,
		Email:    strings.ToLower(fmt.Sprintf("%s.%s.%d@campus.example", first, last, f.rng.Intn(10000))),
		Role:     role,
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateTag persists a tag, reusing an existing one with the same slug.
func (f *Factory) CreateTag(name string) (*models.Tag, error) {
	tag := models.Tag{Name: name, Slug: models.Slugify(name)}
	if err := f.db.Where(models.Tag{Slug: tag.Slug}).FirstOrCreate(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// BuildPost constructs an unsaved post of postType authored by author.
func (f *Factory) BuildPost(author *models.User, postType models.PostType) *models.Post {
	title := f.fake.Sentence(f.rng.Intn(5) + 3)
	daysBack := f.rng.Intn(f.opts.MaxDays)
	created := time.Now().UTC().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(f.rng.Intn(24*60))*time.Minute)

	post := &models.Post{
		Type:      postType,
		Title:     &title,
		Summary:   f.fake.Paragraph(1, 3, 12, " "),
		AuthorID:  &author.ID,
		Status:    models.PostStatusPublished,
		Pinned:    postType == models.PostTypeAnnouncement && f.rng.Intn(5) == 0,
		CreatedAt: created,
		UpdatedAt: created,
	}

	switch postType {
	case models.PostTypeJob, models.PostTypeEvent, models.PostTypeCollab:
		expires := time.Now().UTC().Add(time.Duration(f.rng.Intn(30)+1) * 24 * time.Hour)
		if f.rng.Float64() < f.opts.ExpiredShare {
			expires = time.Now().UTC().Add(-time.Duration(f.rng.Intn(72)+1) * time.Hour)
		}
		post.ExpiresAt = &expires
	}
	if f.rng.Intn(12) == 0 {
		post.Status = models.PostStatusDraft
	}
	return post
}

// CreatePost persists a post with its tags and an optional external ref.
func (f *Factory) CreatePost(author *models.User, postType models.PostType, tags []*models.Tag) (*models.Post, error) {
	post := f.BuildPost(author, postType)
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		for _, tag := range tags {
			if err := tx.Create(&models.PostTag{PostID: post.ID, TagID: tag.ID}).Error; err != nil {
				return err
			}
		}
		if ref := f.refFor(post); ref != nil {
			if err := tx.Create(ref).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (f *Factory) refFor(post *models.Post) *models.PostRef {
	switch post.Type {
	case models.PostTypeJob:
		return &models.PostRef{
			PostID:   post.ID,
			Service:  "jobs",
			EntityID: f.fake.UUID(),
			Metadata: datatypes.JSONMap{"company": f.fake.Company(), "location": f.fake.City()},
		}
	case models.PostTypeEvent:
		return &models.PostRef{
			PostID:   post.ID,
			Service:  "events",
			EntityID: f.fake.UUID(),
			Metadata: datatypes.JSONMap{"venue": f.fake.Street(), "capacity": f.rng.Intn(200) + 20},
		}
	default:
		return nil
	}
}

// CreateVote records value (1 or -1) for user on post.
func (f *Factory) CreateVote(user *models.User, post *models.Post, value int) error {
	return f.db.Create(&models.PostVote{PostID: post.ID, UserID: user.ID, Value: value}).Error
}

// CreateComment persists a comment by author on post.
func (f *Factory) CreateComment(author *models.User, post *models.Post) (*models.PostComment, error) {
	comment := &models.PostComment{
		PostID:   post.ID,
		AuthorID: author.ID,
		Content:  f.fake.Sentence(f.rng.Intn(12) + 4),
	}
	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateApplication persists an alumni verification application in status.
// Reviewed statuses are attributed to reviewer.
func (f *Factory) CreateApplication(applicant *models.User, status models.VerificationStatus, reviewer *models.User) (*models.AlumniVerificationApplication, error) {
	app := &models.AlumniVerificationApplication{
		ApplicantID:    applicant.ID,
		StudentID:      fmt.Sprintf("S%07d", f.rng.Intn(10000000)),
		IDCardImage:    fmt.Sprintf("id-cards/%d/%s.jpg", applicant.ID, f.fake.UUID()),
		CurrentJobInfo: fmt.Sprintf("%s at %s", f.fake.JobTitle(), f.fake.Company()),
		Status:         status,
	}
	if status != models.VerificationPending && reviewer != nil {
		now := time.Now()
		app.ReviewedBy = &reviewer.ID
		app.ReviewedAt = &now
		if status == models.VerificationRejected {
			app.ReviewNote = "ID card unreadable, please resubmit"
		}
	}
	if err := f.db.Create(app).Error; err != nil {
		return nil, err
	}
	return app, nil
}
