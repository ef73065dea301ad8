package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newGeocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode <location>",
		Short: "Look up coordinates for a location",
		Long:  "Resolve a free-text location to coordinates with the configured geocoding service.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runGeocode,
	}
}

func runGeocode(cmd *cobra.Command, args []string) error {
	location := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	geocoder, closeGeocoder, err := newGeocoder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeGeocoder()

	pt, err := geocoder.Lookup(ctx, location)
	if err != nil {
		return fmt.Errorf("geocoding %q: %w", location, err)
	}

	if isJSON() {
		return printJSON(cmd.OutOrStdout(), pt)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n  Latitude:  %.6f\n  Longitude: %.6f\n", location, pt.Lat, pt.Lng)
	return nil
}
