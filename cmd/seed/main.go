// Command seed fills the database with a demo campus community.
package main

import (
	"flag"
	"log"

	"campusboard/internal/config"
	"campusboard/internal/database"
	"campusboard/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.Users, "Number of users to create")
	numPosts := flag.Int("posts", defaults.Posts, "Number of posts to create")
	numTags := flag.Int("tags", defaults.Tags, "Number of tags to create")
	expiredShare := flag.Float64("expired", defaults.ExpiredShare, "Share of expiring posts created already expired")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible content (0 picks one)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Printf("Seeding: %d users, %d posts, %d tags, clean=%v", *numUsers, *numPosts, *numTags, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	opts := defaults
	opts.Users = *numUsers
	opts.Posts = *numPosts
	opts.Tags = *numTags
	opts.ExpiredShare = *expiredShare
	opts.RandSeed = *randSeed

	s := seed.NewSeeder(db, opts)
	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	res, err := s.Run()
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Done: %d users, %d posts (%d expired), %d votes, %d comments, %d verification applications",
		res.Users, res.Posts, res.ExpiredPosts, res.Votes, res.Comments, res.Applications)
}
