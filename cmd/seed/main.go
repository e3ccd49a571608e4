// Command main fills a development database with demo bus-pass applications.
package main

import (
	"context"
	"flag"
	"log"

	"buspass/internal/config"
	"buspass/internal/database"
	"buspass/internal/models"
	"buspass/internal/seed"
	"buspass/internal/service"
	"buspass/internal/storage"
)

func main() {
	numApplications := flag.Int("applications", 40, "Number of applications to create")
	shouldClean := flag.Bool("clean", false, "Delete existing applications before seeding")
	dryRun := flag.Bool("dry-run", false, "Generate records without writing them")
	randomSeed := flag.Int64("seed", 0, "Random seed (0 picks one from the clock)")
	prefix := flag.String("prefix", "APP", "Application number prefix")
	maxDays := flag.Int("days", 30, "Spread submissions over this many past days")
	flag.Parse()

	log.Println("🌱 Bus pass seeder")
	log.Println("==================")
	log.Printf("Target: %d applications, clean=%v, dry-run=%v\n", *numApplications, *shouldClean, *dryRun)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}

	sealKey, signatureKey := service.DefaultSealKey, service.DefaultSignatureKey
	if cfg.CardSealKey != "" {
		sealKey = cfg.CardSealKey
	}
	if cfg.CardSignatureKey != "" {
		signatureKey = cfg.CardSignatureKey
	}

	summary, err := seed.Seed(ctx, db, store, seed.Options{
		NumApplications: *numApplications,
		MaxDays:         *maxDays,
		Prefix:          *prefix,
		RandomSeed:      *randomSeed,
		DryRun:          *dryRun,
		ShouldClean:     *shouldClean,
		SealKey:         sealKey,
		SignatureKey:    signatureKey,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ Done: %d pending, %d approved, %d rejected, %d card assets written\n",
		summary.Applications[models.StatusPending],
		summary.Applications[models.StatusApproved],
		summary.Applications[models.StatusRejected],
		summary.Assets)
}
