package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/fleetwatch/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest stored snapshot of every resource",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Error("Snapshot history needs database.url")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database.Config)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	snaps, err := postgres.NewSnapshotRepo(db).LatestAll(ctx)
	if err != nil {
		slog.Error("Failed to query snapshots", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "RESOURCE\tID\tAVAILABLE\tUPDATED\tBYTES")

	for _, s := range snaps {
		updated := time.Unix(s.CreatedAt, 0).Format(time.RFC3339)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%d\n", s.Resource, s.DeviceID, s.Available, updated, len(s.Payload))
	}
	_ = w.Flush()
}
