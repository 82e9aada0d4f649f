package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/medisur/internal/facilities"
	"github.com/ziadkadry99/medisur/internal/progress"
)

var facilitiesCmd = &cobra.Command{
	Use:   "facilities",
	Short: "Manage the facility directory",
}

var facilitiesImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Register or update facilities from a YAML file",
	Long: `Reads a YAML file with a top-level "facilities" list and registers each
entry. Facilities that already exist (matched by name) are updated in place.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		entries, err := facilities.LoadFile(args[0])
		if err != nil {
			return err
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		store := facilities.NewStore(database)
		ctx := context.Background()

		var created, updated int
		reporter := progress.NewReporter("Importing facilities")
		reporter.Start(len(entries))
		for i := range entries {
			f := entries[i]
			isNew, err := upsertFacility(ctx, store, &f)
			if err != nil {
				reporter.Finish()
				return fmt.Errorf("importing %q: %w", f.Name, err)
			}
			if isNew {
				created++
			} else {
				updated++
			}
			reporter.Update(i+1, f.Name)
		}
		reporter.Finish()

		fmt.Fprintf(os.Stderr, "Imported %d facilities (%d new, %d updated)\n", len(entries), created, updated)
		return nil
	},
}

// upsertFacility creates f, or updates the existing facility with the same
// name. It reports whether f was new.
func upsertFacility(ctx context.Context, store *facilities.Store, f *facilities.Facility) (bool, error) {
	existing, err := store.GetByName(ctx, f.Name)
	if errors.Is(err, facilities.ErrNotFound) {
		return true, store.Create(ctx, f)
	}
	if err != nil {
		return false, err
	}

	f.ID = existing.ID
	if f.Status == "" {
		f.Status = existing.Status
	}
	return false, store.Update(ctx, f)
}

func init() {
	facilitiesCmd.AddCommand(facilitiesImportCmd)
	rootCmd.AddCommand(facilitiesCmd)
}
