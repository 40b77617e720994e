package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List the vehicles and energy sites of the account",
	Run:   runProducts,
}

func init() {
	rootCmd.AddCommand(productsCmd)
}

func runProducts(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	api := newFleetClient(cfg)
	defer api.Close()

	products, err := api.Products(context.Background())
	if err != nil {
		slog.Error("Failed to fetch products", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "TYPE\tID\tNAME\tSTATE")

	for _, p := range products {
		switch {
		case p.IsVehicle():
			_, _ = fmt.Fprintf(w, "vehicle\t%s\t%s\t%s\n", p.VIN, p.DisplayName, p.State)
		case p.IsEnergySite():
			_, _ = fmt.Fprintf(w, "energy_site\t%d\t%s\t-\n", p.EnergySiteID, p.SiteName)
		}
	}
	_ = w.Flush()
}
