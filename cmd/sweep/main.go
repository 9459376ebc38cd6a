// Command sweep archives expired posts once, for cron-style deployments.
package main

import (
	"context"
	"log"
	"time"

	"campusboard/internal/config"
	"campusboard/internal/database"
	"campusboard/internal/repository"
	"campusboard/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{SkipSchema: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	archived, err := service.NewSweeper(repository.NewPostRepository(db), nil).SweepOnce(ctx)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	log.Printf("archived %d expired posts", archived)
}
