package main

import (
	"fmt"
	"os"

	"photovault/internal/gallery"

	"github.com/spf13/cobra"
)

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Write a backup archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetString("since")
		encrypt, _ := cmd.Flags().GetBool("encrypt")
		deviceLock, _ := cmd.Flags().GetBool("device-lock")
		thumbnails, _ := cmd.Flags().GetBool("thumbnails")
		settings, _ := cmd.Flags().GetBool("settings")

		opts := gallery.BackupOptions{
			Encrypt:           encrypt || deviceLock,
			UseDeviceLock:     deviceLock,
			IncludeThumbnails: thumbnails,
			IncludeSettings:   settings,
		}
		if encrypt && !deviceLock {
			pass, err := readNewSecret(os.Stderr, "Backup passphrase: ")
			if err != nil {
				return err
			}
			opts.Credential = pass
		}

		a, err := newApp("Backup")
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Backup(cmd.Context(), args[0], since, opts)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Backup %s (%s) written to %s\n", stats.BackupID, stats.Kind, stats.Path)
		fmt.Printf("%d categories, %d photos, %d deletions, %d files, %d bytes\n",
			stats.CategoryCount, stats.PhotoCount, stats.DeletedCount, stats.FileCount, stats.Bytes)
		if stats.Encrypted {
			fmt.Println("Metadata is encrypted.")
		}
		return nil
	},
}

// backups command
var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List recorded backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListBackups")
		if err != nil {
			return err
		}
		defer a.Close()

		backups, err := a.Backups(cmd.Context())
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Println("No backups recorded.")
			return nil
		}
		for _, b := range backups {
			lock := " "
			if b.Encrypted {
				lock = "E"
			}
			fmt.Printf("%s  %-11s  %s  %s  %4d photos  %s\n",
				b.ID,
				b.Kind,
				b.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				lock,
				b.PhotoCount,
				b.Path,
			)
		}
		return nil
	},
}

// validate command
var validateCmd = &cobra.Command{
	Use:   "validate ARCHIVE",
	Short: "Check an archive without restoring it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Validate")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.Validate(args[0])
		if err != nil {
			return fmt.Errorf("archive rejected: %w", err)
		}
		fmt.Printf("Entries:     %d (%d bytes uncompressed)\n", st.Entries, st.DeclaredSize)
		fmt.Printf("Media:       %d photos, %d thumbnails\n", st.MediaFiles, st.ThumbnailFiles)
		if st.Encrypted {
			fmt.Println("Metadata:    encrypted")
			return nil
		}
		fmt.Printf("Version:     %d\n", st.Version)
		fmt.Printf("Contents:    %d categories, %d photos\n", st.CategoryCount, st.PhotoCount)
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore ARCHIVE",
	Short: "Restore a backup archive into the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategyName, _ := cmd.Flags().GetString("strategy")
		duplicateName, _ := cmd.Flags().GetString("on-duplicate")
		verify, _ := cmd.Flags().GetBool("verify")
		thumbnails, _ := cmd.Flags().GetBool("thumbnails")
		settings, _ := cmd.Flags().GetBool("settings")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		strategy, err := gallery.ParseRestoreStrategy(strategyName)
		if err != nil {
			return err
		}
		onDuplicate, err := gallery.ParseDuplicateResolution(duplicateName)
		if err != nil {
			return err
		}
		opts := gallery.RestoreOptions{
			Strategy:          strategy,
			OnDuplicate:       onDuplicate,
			ValidateIntegrity: verify,
			RestoreThumbnails: thumbnails,
			RestoreSettings:   settings,
			DryRun:            dryRun,
		}

		a, err := newApp("Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.Validate(args[0])
		if err != nil {
			return fmt.Errorf("archive rejected: %w", err)
		}
		if st.Encrypted {
			prompt := "Backup passphrase: "
			if a.HasDeviceLock() {
				prompt = "Backup passphrase (the device PIN if it was sealed with the device lock): "
			}
			if opts.Credential, err = readSecret(os.Stderr, prompt); err != nil {
				return err
			}
		}

		res, err := a.Restore(cmd.Context(), args[0], opts, func(p gallery.Progress) {
			fmt.Fprintf(os.Stderr, "\r%-16s %d/%d %-40s", p.Phase, p.ItemsProcessed, p.ItemsTotal, truncate(p.Operation, 40))
		})
		fmt.Fprintln(os.Stderr)
		if res != nil {
			printRestoreResult(res)
		}
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		return nil
	},
}

func printRestoreResult(res *gallery.RestoreResult) {
	if res.DryRun && res.Plan != nil {
		p := res.Plan
		fmt.Printf("Dry run (%s):\n", p.Strategy)
		if p.ClearsLibrary {
			fmt.Println("  the live library would be cleared first")
		}
		fmt.Printf("  categories: %d new, %d skipped, %d replaced, %d renamed\n",
			p.Categories.Create, p.Categories.Skip, p.Categories.Replace, p.Categories.Rename)
		fmt.Printf("  photos:     %d new, %d skipped, %d replaced, %d renamed, %d left out\n",
			p.Photos.Create, p.Photos.Skip, p.Photos.Replace, p.Photos.Rename, p.Excluded)
		fmt.Printf("  deletions:  %d\n", p.Deletions)
		for _, r := range p.Renames {
			fmt.Printf("  rename %s\n", r)
		}
	} else {
		fmt.Printf("Restore %s: %d categories, %d photos, %d skipped, %d renamed, %d replaced, %d deletions\n",
			res.Phase, res.CategoriesRestored, res.PhotosRestored, res.Skipped, res.Renamed, res.Replaced, res.DeletionsApplied)
		if res.SettingsRestored {
			fmt.Println("Settings restored.")
		}
	}
	if res.RolledBack {
		fmt.Println("The library was rolled back to its state before the restore.")
	}
	if res.RollbackError != "" {
		fmt.Printf("Rollback failed: %s\n", res.RollbackError)
	}
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	for _, e := range res.Errors {
		fmt.Printf("error: %s\n", e)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n+3:]
}

// lock command
var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Manage the device lock used to seal backups",
}

var lockSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the device PIN",
	RunE: func(cmd *cobra.Command, args []string) error {
		pin, err := readNewSecret(os.Stderr, "Device PIN: ")
		if err != nil {
			return err
		}

		a, err := newApp("SetDeviceLock")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetDeviceLock(pin); err != nil {
			return err
		}
		fmt.Println("Device lock set.")
		return nil
	},
}

var lockClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the device PIN",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ClearDeviceLock")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ClearDeviceLock(); err != nil {
			return err
		}
		fmt.Println("Device lock removed.")
		return nil
	},
}

var lockStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a device PIN is set",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeviceLockStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		if a.HasDeviceLock() {
			fmt.Println("Device lock is set.")
		} else {
			fmt.Println("No device lock.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().String("since", "", "Write an incremental backup against this backup id")
	backupCmd.Flags().Bool("encrypt", false, "Encrypt the metadata with a passphrase")
	backupCmd.Flags().Bool("device-lock", false, "Encrypt the metadata with the device PIN")
	backupCmd.Flags().Bool("thumbnails", true, "Include thumbnails")
	backupCmd.Flags().Bool("settings", true, "Include app settings")

	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(validateCmd)

	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().String("strategy", "merge", "merge or replace")
	restoreCmd.Flags().String("on-duplicate", "skip", "skip, replace, rename or ask")
	restoreCmd.Flags().Bool("verify", true, "Verify media checksums")
	restoreCmd.Flags().Bool("thumbnails", true, "Restore thumbnails")
	restoreCmd.Flags().Bool("settings", false, "Restore app settings")
	restoreCmd.Flags().Bool("dry-run", false, "Show what would change without changing anything")

	lockCmd.AddCommand(lockSetCmd)
	lockCmd.AddCommand(lockClearCmd)
	lockCmd.AddCommand(lockStatusCmd)
	rootCmd.AddCommand(lockCmd)
}
