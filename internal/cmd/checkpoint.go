package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hirs-avhrr/internal/checkpoint"
	"github.com/felixgeelhaar/hirs-avhrr/internal/progress"
	"github.com/felixgeelhaar/hirs-avhrr/internal/ux"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect submission checkpoints",
	Long: `Inspect the checkpoints written by 'submit'.

Each interval of a submission is checkpointed under an id of the form
hirs_avhrr_<satellite>_s<start>_e<end>. Run 'submit --resume' with the same
satellite and interval to skip the contexts that already succeeded.

Examples:
  hirs-avhrr checkpoint list
  hirs-avhrr checkpoint show hirs_avhrr_metop-b_s201707010000_e201707312359`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var checkpointDir string

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := checkpointManager()
		if err != nil {
			return err
		}
		ids, err := mgr.List()
		if err != nil {
			return fmt.Errorf("failed to list checkpoints: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintf(out, "No checkpoints found in %s.\n", mgr.Dir())
			return nil
		}

		fmt.Fprintf(out, "%-52s %9s %6s %6s  %s\n", "ID", "SUCCEEDED", "FAILED", "TOTAL", "UPDATED")
		for _, id := range ids {
			state, err := mgr.Load(id)
			if err != nil {
				continue // Skip unreadable checkpoints
			}
			fmt.Fprintf(out, "%-52s %9d %6d %6d  %s\n",
				id,
				len(state.TasksWithStatus(checkpoint.StatusSucceeded)),
				len(state.TasksWithStatus(checkpoint.StatusFailed)),
				len(state.Tasks),
				state.UpdatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the tasks of one checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := checkpointManager()
		if err != nil {
			return err
		}
		state, err := mgr.Load(args[0])
		if err != nil {
			return ux.FormatError(err, "loading checkpoint")
		}

		out := cmd.OutOrStdout()
		reporter := progress.NewReporter(progress.Config{Writer: out, IsCI: true})
		reporter.PrintResumeInfo(state)

		if v, ok := state.GetMetadata("interval"); ok {
			fmt.Fprintln(out, ux.Field("Interval", v))
		}
		if state.RunID != "" {
			fmt.Fprintln(out, ux.Field("Last run", state.RunID))
		}

		failed := state.TasksWithStatus(checkpoint.StatusFailed)
		if len(failed) > 0 {
			fmt.Fprintln(out)
			fmt.Fprintln(out, ux.FailureStyle.Render("Failed tasks:"))
			for _, id := range failed {
				task, _ := state.Task(id)
				fmt.Fprintf(out, "  ✗ %s [%s] attempts=%d %s\n", id, task.ErrorKind, task.Attempts, firstLine(task.Error))
			}
		}
		return nil
	},
}

var checkpointDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a checkpoint so the next submission starts fresh",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := checkpointManager()
		if err != nil {
			return err
		}
		if !mgr.Exists(args[0]) {
			return fmt.Errorf("checkpoint %s not found in %s", args[0], mgr.Dir())
		}
		if err := mgr.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

// checkpointManager uses --dir, falling back to batch.checkpoint_dir.
func checkpointManager() (*checkpoint.Manager, error) {
	if checkpointDir != "" {
		return checkpoint.NewManager(checkpointDir), nil
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return checkpoint.NewManager(cfg.Batch.CheckpointDir), nil
}

func init() {
	checkpointCmd.PersistentFlags().StringVar(&checkpointDir, "dir", "", "checkpoint directory (default batch.checkpoint_dir)")

	checkpointCmd.AddCommand(checkpointListCmd)
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointDeleteCmd)
	rootCmd.AddCommand(checkpointCmd)
}
