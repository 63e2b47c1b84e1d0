package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		if clearData {
			tables := []string{
				"survey_answers", "survey_responses", "survey_access_codes",
				"employees", "user_permissions", "role_permissions",
				"corporate_dealerships", "admin_requests",
				"manager_dealership_requests", "dealership_access_requests",
				"users", "dealerships",
			}
			for _, t := range tables {
				if _, err := db.Exec("DELETE FROM " + t); err != nil {
					log.Fatalf("failed to clear %s: %v", t, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		password := "password1"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		var dealershipID int64
		err = db.QueryRow("SELECT id FROM dealerships WHERE name = $1", "Demo Motors").Scan(&dealershipID)
		if err != nil {
			err = db.QueryRow(`
				INSERT INTO dealerships (name, city, state, subscription_status, trial_ends_at, created_at, updated_at)
				VALUES ($1, $2, $3, 'trial', now() + interval '14 days', now(), now())
				RETURNING id`,
				"Demo Motors", "Austin", "TX").Scan(&dealershipID)
			if err != nil {
				log.Fatalf("failed to insert demo dealership: %v", err)
			}
			fmt.Println("Seeded dealership: Demo Motors")
		}

		users := []struct {
			Email    string
			Name     string
			Role     string
			Approved bool
		}{
			{"admin@demo-motors.test", "Demo Admin", "admin", true},
			{"manager@demo-motors.test", "Demo Manager", "manager", true},
			{"pending@demo-motors.test", "Pending Manager", "manager", false},
		}

		for _, u := range users {
			var exists int
			if err := db.QueryRow("SELECT 1 FROM users WHERE email = $1", u.Email).Scan(&exists); err == nil {
				fmt.Println("user already exists:", u.Email)
				continue
			}

			_, err := db.Exec(`
				INSERT INTO users (email, name, password_hash, role, dealership_id, is_verified, is_approved, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, true, $6, now(), now())`,
				u.Email, u.Name, string(hash), u.Role, dealershipID, u.Approved)
			if err != nil {
				log.Fatalf("failed to insert user %s: %v", u.Email, err)
			}
			fmt.Printf("Seeded %s user: %s (password: %s)\n", u.Role, u.Email, password)
		}
	},
}
