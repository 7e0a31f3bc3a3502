package main

import (
	"log"

	"github.com/classpilot/api/database"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	store, err := database.StartGORM()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	gormDB := store.GetDB().(*gorm.DB)

	if err := database.RunSeeds(gormDB); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	// Sanity check through the raw store
	pq, err := database.Start()
	if err != nil {
		log.Printf("Warning: raw connection failed, skipping row counts: %v", err)
		return
	}
	defer pq.Close()

	for _, table := range []string{"accounts", "institutes", "super_admin_profiles"} {
		n, err := pq.CountRows(table)
		if err != nil {
			log.Printf("count %s: %v", table, err)
			continue
		}
		log.Printf("%s: %d rows", table, n)
	}

	log.Println("Seeding completed. Super admin comes from ADMIN_EMAIL/ADMIN_PASSWORD.")
}
