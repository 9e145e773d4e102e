// File: cmd/status.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/raidpilot/api/schemas"
	"github.com/xkilldash9x/raidpilot/internal/automation"
	"github.com/xkilldash9x/raidpilot/internal/breaks"
	"github.com/xkilldash9x/raidpilot/internal/config"
	"github.com/xkilldash9x/raidpilot/internal/observability"
	"github.com/xkilldash9x/raidpilot/internal/settings"
	"github.com/xkilldash9x/raidpilot/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// savedState is everything a run leaves behind in the store.
type savedState struct {
	Status   *schemas.StatusReport `json:"status,omitempty"`
	Run      *automation.RunState  `json:"run,omitempty"`
	Breaks   *breaks.State         `json:"breaks,omitempty"`
	Settings *settings.Settings    `json:"settings,omitempty"`
}

// newStatusCmd creates the `status` command, which reports the last persisted state
// without launching a browser.
func newStatusCmd() *cobra.Command {
	var asJSON bool

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state saved by the last run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			return runStatus(cmd.Context(), cfg, cmd.OutOrStdout(), asJSON)
		},
	}
	statusCmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw saved documents as JSON.")
	return statusCmd
}

func runStatus(ctx context.Context, cfg config.Interface, out io.Writer, asJSON bool) error {
	kv, closeStore, err := store.Open(ctx, cfg.Store(), observability.GetLogger())
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer closeStore()

	state, err := loadSavedState(ctx, kv)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}

	if state.Status == nil && state.Run == nil {
		fmt.Fprintln(out, "No saved state; raidpilot has not run with this store yet.")
		return nil
	}
	if state.Settings != nil {
		s := state.Settings
		fmt.Fprintf(out, "settings: raid=%s combat=%s breaks=%s randomize=%s\n",
			onOff(s.AutoRaid), onOff(s.AutoCombat), onOff(s.Breaks), onOff(s.RandomizeBreaks))
	}
	if state.Status != nil {
		printStatus(out, *state.Status)
		fmt.Fprintf(out, "saved at %s\n", state.Status.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if state.Breaks != nil && state.Breaks.OnBreak {
		fmt.Fprintf(out, "break scheduled to end at %s\n", state.Breaks.BreakEndsAt.Local().Format("15:04:05"))
	}
	return nil
}

// loadSavedState reads every document a run persists. Missing documents are left nil.
func loadSavedState(ctx context.Context, kv store.KV) (savedState, error) {
	var st savedState
	docs := []struct {
		key  string
		dest interface{}
	}{
		{store.KeyStatus, &schemas.StatusReport{}},
		{store.KeyRunState, &automation.RunState{}},
		{store.KeyBreakState, &breaks.State{}},
		{store.KeySettings, &settings.Settings{}},
	}
	for _, d := range docs {
		err := store.GetJSON(ctx, kv, d.key, d.dest)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return st, fmt.Errorf("failed to read %s: %w", d.key, err)
		}
		switch v := d.dest.(type) {
		case *schemas.StatusReport:
			st.Status = v
		case *automation.RunState:
			st.Run = v
		case *breaks.State:
			st.Breaks = v
		case *settings.Settings:
			st.Settings = v
		}
	}
	return st, nil
}
