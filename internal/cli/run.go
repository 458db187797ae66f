package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage submission runs",
	}

	cmd.AddCommand(
		newRunShowCmd(clientFn, outputFn),
		newRunEventsCmd(clientFn, outputFn),
		newRunLineageCmd(clientFn, outputFn),
		newRunAckCmd(clientFn, outputFn),
		newRunRetryCmd(clientFn, outputFn),
		newRunCancelCmd(clientFn, outputFn),
		newRunPauseCmd(clientFn, outputFn),
		newRunResumeCmd(clientFn, outputFn),
		newRunArtifactsCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "TARGET_ID", "ATTEMPT", "STATUS", "REASON", "EXTERNAL_ID", "CREATED"},
				[][]string{{run.ID, run.TargetID, strconv.Itoa(run.AttemptNo), run.Status, run.StatusReason, run.ExternalSubmissionID, run.CreatedAt}},
				run,
			)
			return nil
		},
	}
}

func newRunEventsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "events RUN_ID",
		Short: "Show the event journal of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			events, err := client.ListRunEvents(args[0])
			if err != nil {
				return err
			}

			headers := []string{"TYPE", "FROM", "TO", "REASON", "BY", "AT"}
			rows := make([][]string, len(events))
			for i, e := range events {
				rows[i] = []string{e.Type, e.FromStatus, e.ToStatus, e.StatusReason, e.TriggeredBy, e.CreatedAt}
			}

			out.Print(headers, rows, events)
			return nil
		},
	}
}

func newRunLineageCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "lineage RUN_ID",
		Short: "Show the full retry lineage of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.GetRunLineage(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "ATTEMPT", "STATUS", "REASON", "COMPLETED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, strconv.Itoa(r.AttemptNo), r.Status, r.StatusReason, r.CompletedAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}
}

func newRunAckCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "ack RUN_ID",
		Short: "Acknowledge directory feedback before a retry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.AcknowledgeRun(args[0], userID)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Changes acknowledged for run %s", run.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Acknowledging user ID")
	cmd.MarkFlagRequired("user")

	return cmd
}

func newRunRetryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var reason string
	var userID string

	cmd := &cobra.Command{
		Use:   "retry RUN_ID",
		Short: "Queue a new attempt chained to a finished run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.RetryRun(args[0], RetryRunRequest{
				Reason: reason,
				UserID: userID,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run queued: %s (attempt %d)", run.ID, run.AttemptNo))
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Queue reason (default: manual_retry)")
	cmd.Flags().StringVar(&userID, "user", "", "Requesting user ID")

	return cmd
}

func newRunCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var userID string
	var admin bool

	cmd := &cobra.Command{
		Use:   "cancel RUN_ID",
		Short: "Cancel a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.CancelRun(args[0], CancelRunRequest{
				UserID: userID,
				Admin:  admin,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run cancelled: %s", run.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Requesting user ID")
	cmd.Flags().BoolVar(&admin, "admin", false, "Cancel as platform operator")

	return cmd
}

func newRunPauseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "pause RUN_ID",
		Short: "Pause a queued run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.PauseRun(args[0], userID)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run paused: %s", run.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Requesting user ID")

	return cmd
}

func newRunResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "resume RUN_ID",
		Short: "Return a paused run to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.ResumeRun(args[0], userID)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run queued: %s", run.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Requesting user ID")

	return cmd
}

func newRunArtifactsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts RUN_ID",
		Short: "List artifacts of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			artifacts, err := client.ListRunArtifacts(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "KIND", "CONTENT_TYPE", "SIZE", "CREATED"}
			rows := make([][]string, len(artifacts))
			for i, a := range artifacts {
				rows[i] = []string{a.ID, a.Kind, a.ContentType, strconv.FormatInt(a.SizeBytes, 10), a.CreatedAt}
			}

			out.Print(headers, rows, artifacts)
			return nil
		},
	}
}
