package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine status from a running service",
	Long: `Queries the /api/status endpoint of a running monitoring service
and prints a summary.

Example:
  go run ./cmd/monitor status
  go run ./cmd/monitor status --addr http://localhost:8090`,
	RunE: runStatus,
}

var statusAddr string

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:8090", "service base URL")
}

// statusPayload mirrors the /api/status response shape.
type statusPayload struct {
	Engine struct {
		LastTickAt       time.Time `json:"last_tick_at"`
		TickCount        int64     `json:"tick_count"`
		SignalsEvaluated int64     `json:"signals_evaluated"`
		OutcomesWritten  int64     `json:"outcomes_written"`
		RepairsWritten   int64     `json:"repairs_written"`
		PendingStreaks   int       `json:"pending_streaks"`
	} `json:"engine"`
	CachedQuotes int       `json:"cached_quotes"`
	Timestamp    time.Time `json:"timestamp"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(statusAddr + "/api/status")
	if err != nil {
		return fmt.Errorf("query status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, statusAddr)
	}

	var payload statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode status response: %w", err)
	}

	fmt.Println("=== Engine Status ===")
	fmt.Printf("%-20s %s\n", "Last tick:", payload.Engine.LastTickAt.Format("15:04:05"))
	fmt.Printf("%-20s %d\n", "Ticks:", payload.Engine.TickCount)
	fmt.Printf("%-20s %d\n", "Signals evaluated:", payload.Engine.SignalsEvaluated)
	fmt.Printf("%-20s %d\n", "Outcomes written:", payload.Engine.OutcomesWritten)
	fmt.Printf("%-20s %d\n", "Repairs written:", payload.Engine.RepairsWritten)
	fmt.Printf("%-20s %d\n", "Pending streaks:", payload.Engine.PendingStreaks)
	fmt.Printf("%-20s %d\n", "Cached quotes:", payload.CachedQuotes)
	return nil
}
