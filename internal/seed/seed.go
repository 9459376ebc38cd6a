package seed

import (
	"fmt"
	"log/slog"
	"time"

	"campusboard/internal/database"
	"campusboard/internal/middleware"
	"campusboard/internal/models"

	"gorm.io/gorm"
)

// Result counts what a seeding run created.
type Result struct {
	Users        int
	Tags         int
	Posts        int
	Votes        int
	Comments     int
	Applications int
	ExpiredPosts int
}

var tagNames = []string{
	"Career Fair", "Internships", "Research", "Hackathon", "Alumni Network",
	"Scholarships", "Student Clubs", "Open Source", "Design", "Data Science",
	"Entrepreneurship", "Mentorship", "Sports", "Music", "Volunteering",
}

// roleAuthoring lists the post types each role creates in the demo data.
// Alumni only author once verified.
var roleAuthoring = map[models.Role][]models.PostType{
	models.RoleAdmin:   {models.PostTypeAnnouncement, models.PostTypeEvent},
	models.RoleFaculty: {models.PostTypeAnnouncement, models.PostTypeEvent, models.PostTypeEventRecap, models.PostTypeJob},
	models.RoleAlumni:  {models.PostTypeJob, models.PostTypeAchievement, models.PostTypeCollab},
	models.RoleStudent: {models.PostTypeAchievement, models.PostTypeCollab, models.PostTypeEventRecap},
}

// Seeder writes a coherent demo community.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	opts    Options
}

// NewSeeder creates a Seeder over db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts), opts: opts}
}

// ClearAll deletes every row from the schema-managed tables, children first.
func (s *Seeder) ClearAll() error {
	all := database.PersistentModels()
	for i := len(all) - 1; i >= 0; i-- {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(all[i]).Error; err != nil {
			return fmt.Errorf("clear %T: %w", all[i], err)
		}
	}
	middleware.Logger.Info("seed data cleared")
	return nil
}

// Run seeds users of every role, tags, posts, votes, comments and alumni
// verification applications.
func (s *Seeder) Run() (Result, error) {
	var res Result
	f := s.factory

	byRole := make(map[models.Role][]*models.User)
	roles := []models.Role{models.RoleAdmin, models.RoleFaculty, models.RoleAlumni, models.RoleStudent}
	for i := 0; i < max(s.opts.Users, len(roles)); i++ {
		role := roles[i%len(roles)]
		if i >= len(roles) {
			// Mostly students and alumni after the first of each role.
			role = []models.Role{models.RoleStudent, models.RoleStudent, models.RoleAlumni, models.RoleFaculty}[f.rng.Intn(4)]
		}
		user, err := f.CreateUser(role)
		if err != nil {
			return res, fmt.Errorf("failed to create users: %w", err)
		}
		byRole[role] = append(byRole[role], user)
		res.Users++
	}

	reviewer := byRole[models.RoleFaculty][0]
	var authors []*models.User
	authors = append(authors, byRole[models.RoleAdmin]...)
	authors = append(authors, byRole[models.RoleFaculty]...)
	authors = append(authors, byRole[models.RoleStudent]...)
	for i, alum := range byRole[models.RoleAlumni] {
		status := []models.VerificationStatus{models.VerificationApproved, models.VerificationApproved,
			models.VerificationPending, models.VerificationRejected}[i%4]
		if status == models.VerificationRejected {
			if _, err := f.CreateApplication(alum, models.VerificationRejected, reviewer); err != nil {
				return res, fmt.Errorf("failed to create applications: %w", err)
			}
			res.Applications++
			status = models.VerificationPending
		}
		if _, err := f.CreateApplication(alum, status, reviewer); err != nil {
			return res, fmt.Errorf("failed to create applications: %w", err)
		}
		res.Applications++
		if status == models.VerificationApproved {
			authors = append(authors, alum)
		}
	}

	tags := make([]*models.Tag, 0, s.opts.Tags)
	for i := 0; i < s.opts.Tags && i < len(tagNames); i++ {
		tag, err := f.CreateTag(tagNames[i])
		if err != nil {
			return res, fmt.Errorf("failed to create tags: %w", err)
		}
		tags = append(tags, tag)
		res.Tags++
	}

	var everyone []*models.User
	for _, role := range roles {
		everyone = append(everyone, byRole[role]...)
	}

	for i := 0; i < s.opts.Posts; i++ {
		author := authors[f.rng.Intn(len(authors))]
		types := roleAuthoring[author.Role]
		postType := types[f.rng.Intn(len(types))]

		var postTags []*models.Tag
		if len(tags) > 0 {
			for _, j := range f.rng.Perm(len(tags))[:f.rng.Intn(min(3, len(tags))+1)] {
				postTags = append(postTags, tags[j])
			}
		}

		post, err := f.CreatePost(author, postType, postTags)
		if err != nil {
			return res, fmt.Errorf("failed to create posts: %w", err)
		}
		res.Posts++
		if post.ExpiresAt != nil && post.IsExpired(time.Now().UTC()) {
			res.ExpiredPosts++
		}

		voters := f.rng.Perm(len(everyone))[:f.rng.Intn(min(s.opts.VotesPerPost, len(everyone))+1)]
		for _, v := range voters {
			value := 1
			if f.rng.Intn(4) == 0 {
				value = -1
			}
			if err := f.CreateVote(everyone[v], post, value); err != nil {
				return res, fmt.Errorf("failed to create votes: %w", err)
			}
			res.Votes++
		}

		for c := f.rng.Intn(s.opts.CommentsLimit + 1); c > 0; c-- {
			if _, err := f.CreateComment(everyone[f.rng.Intn(len(everyone))], post); err != nil {
				return res, fmt.Errorf("failed to create comments: %w", err)
			}
			res.Comments++
		}
	}

	middleware.Logger.Info("seed completed",
		slog.Int("users", res.Users),
		slog.Int("tags", res.Tags),
		slog.Int("posts", res.Posts),
		slog.Int("expired_posts", res.ExpiredPosts),
		slog.Int("votes", res.Votes),
		slog.Int("comments", res.Comments),
		slog.Int("applications", res.Applications),
	)
	return res, nil
}
