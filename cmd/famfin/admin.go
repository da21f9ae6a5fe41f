package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/famfin/internal/auth"
	"github.com/dukerupert/famfin/internal/database"
	"github.com/dukerupert/famfin/internal/model"
	"github.com/dukerupert/famfin/internal/push"
	"github.com/dukerupert/famfin/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and print the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// Open runs migrations.
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		v, err := database.Version(db)
		if err != nil {
			return err
		}
		fmt.Printf("Database %s at schema version %d\n", cfg.DBPath, v)
		return nil
	},
}

var vapidKeysCmd = &cobra.Command{
	Use:   "vapid-keys",
	Short: "Generate a VAPID key pair for web push",
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		fmt.Printf("FAMFIN_VAPID_PUBLIC_KEY=%s\n", pub)
		fmt.Printf("FAMFIN_VAPID_PRIVATE_KEY=%s\n", priv)
		return nil
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create a user with the global admin role, or promote an existing one",
	Long: `Create a user with the global admin role. If the email is already
registered, the existing user is promoted instead.

The password may be given with --password or FAMFIN_ADMIN_PASSWORD.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("FAMFIN_ADMIN_PASSWORD")
		}
		email = strings.TrimSpace(email)
		if email == "" {
			return errors.New("--email is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		users := store.NewUserStore(db)
		existing, err := users.GetByEmail(email)
		if err != nil {
			return err
		}
		if existing != nil {
			if _, err := users.UpdateRole(existing.ID, model.RoleAdmin); err != nil {
				return err
			}
			fmt.Printf("Promoted %s (id %d) to admin\n", existing.Email, existing.ID)
			return nil
		}

		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		u, err := users.Create(email, name, hash, model.RoleAdmin)
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		fmt.Printf("Created admin %s (id %d)\n", u.Email, u.ID)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().String("email", "", "admin email address")
	createAdminCmd.Flags().String("name", "", "display name (defaults to the email's local part)")
	createAdminCmd.Flags().String("password", "", "password (at least 8 characters)")
}
