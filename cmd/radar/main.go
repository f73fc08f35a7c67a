package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/okian/loka/internal/client"
	"github.com/okian/loka/internal/domain/geo"
	"github.com/okian/loka/internal/radarview"
)

var (
	flagURL      string
	flagLat      float64
	flagLon      float64
	flagRadius   float64
	flagInterval time.Duration
	flagWidth    float64
	flagTimeout  time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "radar",
		Short: "Terminal radar of the users near a point",
		Long: `radar polls a running location service for the users near a point and
draws them on a circular radar, nudging markers apart when they collide.

Press r to refresh immediately and q to quit.`,
		RunE: run,
	}

	rootCmd.Flags().StringVar(&flagURL, "url", "http://localhost:5000", "Base URL of the location service")
	rootCmd.Flags().Float64Var(&flagLat, "lat", 0, "Latitude of the radar centre")
	rootCmd.Flags().Float64Var(&flagLon, "lon", 0, "Longitude of the radar centre")
	rootCmd.Flags().Float64Var(&flagRadius, "radius", 50, "Search radius in meters, also the radar range")
	rootCmd.Flags().DurationVar(&flagInterval, "interval", 2*time.Second, "Delay between polls")
	rootCmd.Flags().Float64Var(&flagWidth, "width", 0, "Projection viewport width in pixels, 0 uses the terminal width")
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", 5*time.Second, "HTTP request timeout")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	center, err := geo.NewCoordinate(flagLat, flagLon)
	if err != nil {
		return err
	}
	if flagRadius <= 0 {
		return fmt.Errorf("radius must be positive, got %v", flagRadius)
	}

	model := radarview.New(client.New(flagURL, flagTimeout), radarview.Options{
		Center:        center,
		RadiusMeters:  flagRadius,
		Interval:      flagInterval,
		ViewportWidth: flagWidth,
		Timeout:       flagTimeout,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
