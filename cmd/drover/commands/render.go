package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/droverhq/drover/pkg/run"
)

// printReport renders a run report to stdout, honoring the --json flag.
func printReport(report *run.Report) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	header := fmt.Sprintf("PLAY %s (run %s)", report.Play, report.ID)
	if report.DryRun {
		header += "  [dry-run]"
	}
	fmt.Println(header)
	fmt.Println()

	var changed, ok, failed, skipped int
	for _, host := range report.Hosts {
		if host.Error != "" {
			fmt.Printf("host %s: %s (%s: %s)\n", host.Host, host.State, host.Kind, host.Error)
		} else {
			fmt.Printf("host %s: %s\n", host.Host, host.State)
		}
		for _, result := range host.Results {
			name := result.Task
			if result.Handler {
				name = "handler: " + name
			}
			switch result.Status {
			case run.StatusFailed:
				fmt.Printf("  %-8s %-32s (%s: %s)\n", result.Status, name, result.Kind, result.Error)
			default:
				fmt.Printf("  %-8s %-32s %s\n", result.Status, name, result.Reason)
			}
			switch result.Status {
			case run.StatusChanged:
				changed++
			case run.StatusOK:
				ok++
			case run.StatusFailed:
				failed++
			case run.StatusSkipped:
				skipped++
			}
		}
	}

	fmt.Println()
	fmt.Printf("%d host(s): %d changed, %d ok, %d failed, %d skipped in %s\n",
		len(report.Hosts), changed, ok, failed, skipped, report.Duration.Round(time.Millisecond))
	return nil
}
