package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/fleetwatch/internal/core/worker"
	"github.com/vietddude/fleetwatch/internal/infra/storage/postgres"
)

var olderThan time.Duration

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete stored snapshots older than the retention period",
	Run:   runPrune,
}

func init() {
	pruneCmd.Flags().DurationVar(&olderThan, "older-than", 0, "retention override (default is database.retention_period)")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	retention := cfg.Database.RetentionPeriod
	if olderThan > 0 {
		retention = olderThan
	}
	if retention <= 0 {
		fmt.Println("Retention is disabled, pass --older-than to prune")
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

	deleted := worker.NewPruner(retention, postgres.NewSnapshotRepo(db)).Prune(ctx)
	fmt.Printf("Deleted %d snapshots older than %s\n", deleted, retention)
}
