package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/evercast/internal/db"
	"github.com/stwalsh4118/evercast/internal/models"
)

var contentJSON bool

// NewContentCmd creates the content command
func NewContentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "List the stored catalogue",
		Long: `List the stored catalogue in import order.

Examples:
  evercast content
  evercast content --json`,
		Args: cobra.NoArgs,
		RunE: runContent,
	}

	cmd.Flags().BoolVar(&contentJSON, "json", false, "Print records as JSON")

	return cmd
}

func runContent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	records, err := db.NewRepositories(database).Content.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing content: %w", err)
	}

	return printRecords(cmd, records)
}

func printRecords(cmd *cobra.Command, records []*models.ContentRecord) error {
	out := cmd.OutOrStdout()

	if contentJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No content stored. Run 'evercast import <file>' first.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tCATEGORY\tTITLE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Kind, r.Category, truncate(r.Title, 48))
	}
	return w.Flush()
}

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
