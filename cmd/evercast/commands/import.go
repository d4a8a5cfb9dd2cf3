package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/evercast/internal/catalog"
	"github.com/stwalsh4118/evercast/internal/db"
	"github.com/stwalsh4118/evercast/internal/logger"
)

const importTimeout = time.Minute

var importDryRun bool

// NewImportCmd creates the import command
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.json | ->",
		Short: "Replace the stored catalogue with a JSON file",
		Long: `Replace the stored catalogue with the items in a JSON file.

The file holds either an array of items or an object with an "items" array.
Each item needs a category; streams need a source_url. Items without an id
get a stable one derived from their content, so re-importing keeps links valid.
The replacement is atomic: a bad file leaves the stored catalogue untouched.

Examples:
  evercast import catalogue.json
  evercast import --dry-run catalogue.json
  cat catalogue.json | evercast import -`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate the file without writing it")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening catalogue: %w", err)
		}
		defer f.Close()
		in = f
	}

	if importDryRun {
		records, err := catalog.Decode(in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d items are valid\n", len(records))
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), importTimeout)
	defer cancel()

	service := catalog.NewService(db.NewRepositories(database).Content, cfg.Playback.DefaultSlideDuration)
	n, err := service.Import(ctx, in)
	if err != nil {
		return fmt.Errorf("importing catalogue: %w", err)
	}

	logger.Log.Info().Int("items", n).Str("source", args[0]).Msg("Catalogue imported")
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items\n", n)
	return nil
}
