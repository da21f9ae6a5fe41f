package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/famfin/internal/backup"
	"github.com/dukerupert/famfin/internal/config"
	"github.com/dukerupert/famfin/internal/database"
)

const passphraseEnv = "FAMFIN_BACKUP_PASSPHRASE"

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage encrypted database backups in S3-compatible storage",
}

var backupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Snapshot, encrypt and upload the database now",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		passphrase, err := backupPassphrase(cmd)
		if err != nil {
			return err
		}
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		obj, err := backup.NewManager(cfg.Backup, db, slog.Default()).Run(cmd.Context(), passphrase)
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %s (%d bytes)\n", obj.Key, obj.Size)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := storageOnlyManager()
		if err != nil {
			return err
		}
		objects, err := m.List(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tSIZE\tCREATED")
		for _, o := range objects {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", o.Key, o.Size, o.CreatedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore KEY",
	Short: "Replace the database with a stored backup (stop the server first)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		passphrase, err := backupPassphrase(cmd)
		if err != nil {
			return err
		}
		m := backup.NewManager(cfg.Backup, nil, slog.Default())
		if err := m.Restore(cmd.Context(), args[0], passphrase, cfg.DBPath); err != nil {
			return err
		}
		fmt.Printf("Restored %s into %s\n", args[0], cfg.DBPath)
		return nil
	},
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete backups older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		retention := cfg.Backup.Retention
		if cmd.Flags().Changed("retention") {
			retention, _ = cmd.Flags().GetDuration("retention")
		}
		n, err := backup.NewManager(cfg.Backup, nil, slog.Default()).Prune(cmd.Context(), retention)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d backup(s) older than %s\n", n, retention)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{backupRunCmd, backupRestoreCmd} {
		c.Flags().String("passphrase", "", "encryption passphrase (default $"+passphraseEnv+")")
	}
	backupPruneCmd.Flags().Duration("retention", 0, "override backup.retention")

	backupCmd.AddCommand(backupRunCmd, backupListCmd, backupRestoreCmd, backupPruneCmd)
}

func backupPassphrase(cmd *cobra.Command) (string, error) {
	p, _ := cmd.Flags().GetString("passphrase")
	if p == "" {
		p = os.Getenv(passphraseEnv)
	}
	if p == "" {
		return "", errors.New("--passphrase or " + passphraseEnv + " is required")
	}
	return p, nil
}

func storageOnlyManager() (*backup.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return backup.NewManager(cfg.Backup, nil, slog.Default()), nil
}

// startScheduledBackups runs periodic backups when storage, an interval and
// a passphrase are all configured.
func startScheduledBackups(ctx context.Context, cfg config.Config, m *backup.Manager, logger *slog.Logger) {
	if !cfg.Backup.Enabled() || cfg.Backup.Interval <= 0 {
		return
	}
	passphrase := os.Getenv(passphraseEnv)
	if passphrase == "" {
		logger.Warn("scheduled backups disabled, " + passphraseEnv + " not set")
		return
	}
	m.Start(ctx, cfg.Backup.Interval, cfg.Backup.Retention, passphrase)
}
