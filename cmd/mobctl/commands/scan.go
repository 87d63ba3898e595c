package commands

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/Naing-Phone-Aung/CSIT321-FinalYearProject/internal/discovery"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover MobControl hosts on the local network",
	Long: `Listen for host announcement datagrams and print every host seen
within the scan window.

Examples:
  # Scan with the default window
  mobctl scan

  # Scan a non-standard announcement port for longer
  mobctl scan --port 15001 --window 10s
`,
	RunE: runScan,
}

var (
	scanPort   int
	scanWindow time.Duration
)

func init() {
	scanCmd.Flags().IntVar(&scanPort, "port", discovery.DefaultPort, "Announcement port to listen on")
	scanCmd.Flags().DurationVar(&scanWindow, "window", 4*time.Second, "How long to collect announcements")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	listener := discovery.NewListener(scanPort, clockwork.NewRealClock())
	if err := listener.Start(); err != nil {
		return fmt.Errorf("could not listen for announcements: %w", err)
	}
	defer listener.Stop()

	fmt.Printf("Scanning for hosts (%s)...\n", scanWindow)
	listener.Scan(scanWindow)

	// Announcements arrive every few seconds; wait out the window, then read
	// the collected set.
	time.Sleep(scanWindow)

	records := listener.Records()
	if len(records) == 0 {
		fmt.Println("No hosts found.")
		return nil
	}

	fmt.Printf("Found %d host(s):\n\n", len(records))
	for _, r := range records {
		fmt.Printf("  %s\n    %s\n\n", r.Name, r.Endpoint)
	}
	return nil
}
