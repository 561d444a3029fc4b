package main

import (
	"fmt"
	"path/filepath"

	"photovault/internal/gallery"

	"github.com/spf13/cobra"
)

// category command
var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Manage categories",
}

var categoryAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		color, _ := cmd.Flags().GetString("color")

		a, err := newApp("AddCategory")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.AddCategory(cmd.Context(), args[0], color)
		if err != nil {
			return err
		}
		fmt.Printf("Added category %s (%s)\n", c.Name, c.ID)
		return nil
	},
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListCategories")
		if err != nil {
			return err
		}
		defer a.Close()

		cats, err := a.ListCategories(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range cats {
			marker := " "
			if c.IsDefault {
				marker = "*"
			}
			fmt.Printf("%s %-36s  %s  %s\n", marker, c.ID, c.Color, c.Name)
		}
		return nil
	},
}

var categoryRenameCmd = &cobra.Command{
	Use:   "rename NAME NEW_NAME",
	Short: "Rename a category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RenameCategory")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.RenameCategory(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Renamed category to %s\n", c.Name)
		return nil
	},
}

var categoryRmCmd = &cobra.Command{
	Use:   "rm NAME",
	Short: "Delete a category and its photos",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeleteCategory")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteCategory(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted category %s\n", args[0])
		return nil
	},
}

// photo command
var photoCmd = &cobra.Command{
	Use:   "photo",
	Short: "Manage photos",
}

var photoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List photos",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")

		a, err := newApp("ListPhotos")
		if err != nil {
			return err
		}
		defer a.Close()

		photos, err := a.ListPhotos(cmd.Context(), category)
		if err != nil {
			return err
		}
		if len(photos) == 0 {
			fmt.Println("No photos.")
			return nil
		}
		for _, p := range photos {
			fmt.Printf("%-36s  %5dx%-5d  %8d  %s\n", p.ID, p.Width, p.Height, p.Size, p.Path)
		}
		return nil
	},
}

var photoRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeletePhoto")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeletePhoto(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted photo %s\n", args[0])
		return nil
	},
}

// theme command
var themeCmd = &cobra.Command{
	Use:   "theme THEME",
	Short: "Set the gallery theme",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SetTheme")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.SetTheme(cmd.Context(), args[0])
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import PATH...",
	Short: "Import photos",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		recursive, _ := cmd.Flags().GetBool("recursive")

		a, err := newApp("Import")
		if err != nil {
			return err
		}
		defer a.Close()

		results, summary, err := a.Import(cmd.Context(), args, category, recursive)
		for _, r := range results {
			switch r.Kind {
			case gallery.ResultSuccess:
				fmt.Printf("imported   %s -> %s\n", filepath.Base(r.Source), r.Path)
			case gallery.ResultDuplicate:
				fmt.Printf("duplicate  %s\n", filepath.Base(r.Source))
			default:
				fmt.Printf("failed     %s: %s\n", filepath.Base(r.Source), r.Message)
			}
		}
		fmt.Printf("Imported %d, duplicates %d, failed %d, not attempted %d\n",
			summary.Imported, summary.Duplicates, summary.Failed, summary.NotAttempted)
		return err
	},
}

// purge command
var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove deleted items past their retention",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Purge")
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Purge(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d categories, %d photos, %d files\n", stats.Categories, stats.Photos, stats.Files)
		for _, e := range stats.Errors {
			fmt.Printf("  error: %s\n", e)
		}
		return nil
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show library statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Stats")
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.Stats(cmd.Context())
		if err != nil {
			return err
		}
		lib := s.Library
		fmt.Printf("Categories:     %d\n", lib.Categories)
		fmt.Printf("Photos:         %d (%d imported, %d bundled)\n", lib.Photos, lib.ImportedPhotos, lib.BundledPhotos)
		fmt.Printf("Library size:   %d bytes\n", lib.TotalBytes)
		fmt.Printf("Pending purge:  %d\n", lib.PendingPurge)
		fmt.Printf("Backups:        %d\n", lib.Backups)
		if lib.LastBackup != nil {
			fmt.Printf("Last backup:    %s (%s)\n", lib.LastBackup.CreatedAt.Local().Format("2006-01-02 15:04:05"), lib.LastBackup.Kind)
		}
		for _, b := range s.Breakers {
			fmt.Printf("Breaker %-7s %s (%d failures)\n", b.Name+":", b.State, b.TotalFailures)
		}
		return nil
	},
}

func init() {
	categoryCmd.AddCommand(categoryAddCmd)
	categoryAddCmd.Flags().String("color", "", "Category color as #RRGGBB")
	categoryCmd.AddCommand(categoryListCmd)
	categoryCmd.AddCommand(categoryRenameCmd)
	categoryCmd.AddCommand(categoryRmCmd)

	photoCmd.AddCommand(photoListCmd)
	photoListCmd.Flags().StringP("category", "c", "", "Only list photos in this category")
	photoCmd.AddCommand(photoRmCmd)

	rootCmd.AddCommand(categoryCmd)
	rootCmd.AddCommand(photoCmd)
	rootCmd.AddCommand(themeCmd)
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringP("category", "c", "", "Category name or id (default: general)")
	importCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(statsCmd)
}
