package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewTargetCmd создаёт группу команд для управления targets.
func NewTargetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Manage submission targets",
	}

	cmd.AddCommand(
		newTargetListCmd(clientFn, outputFn),
		newTargetCreateCmd(clientFn, outputFn),
		newTargetShowCmd(clientFn, outputFn),
		newTargetRunsCmd(clientFn, outputFn),
	)

	return cmd
}

func newTargetListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var businessID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submission targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			targets, err := client.ListTargets(ListTargetsOpts{
				BusinessID: businessID,
				Status:     status,
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "DIRECTORY", "BUSINESS_ID", "STATUS", "LIVE_VERIFIED", "CREATED"}
			rows := make([][]string, len(targets))
			for i, t := range targets {
				rows[i] = []string{t.ID, t.DirectorySlug, t.BusinessID, t.CurrentStatus, t.LiveVerifiedAt, t.CreatedAt}
			}

			out.Print(headers, rows, targets)
			return nil
		},
	}

	cmd.Flags().StringVar(&businessID, "business-id", "", "Filter by business ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by current status")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newTargetCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "create DIRECTORY BUSINESS_ID",
		Short: "Create a target and queue its first run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.CreateTarget(args[0], args[1])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Target created: %s (run %s queued)", result.Target.ID, result.Run.ID))
			out.Print(
				[]string{"TARGET_ID", "DIRECTORY", "RUN_ID", "STATUS"},
				[][]string{{result.Target.ID, result.Target.DirectorySlug, result.Run.ID, result.Run.Status}},
				result,
			)
			return nil
		},
	}
}

func newTargetShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show target details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			target, err := client.GetTarget(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "DIRECTORY", "BUSINESS_ID", "STATUS", "CURRENT_RUN", "LIVE_VERIFIED"},
				[][]string{{target.ID, target.DirectorySlug, target.BusinessID, target.CurrentStatus, target.CurrentRunID, target.LiveVerifiedAt}},
				target,
			)
			return nil
		},
	}
}

func newTargetRunsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "runs TARGET_ID",
		Short: "List runs of a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListTargetRuns(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "ATTEMPT", "STATUS", "REASON", "CHANGED", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, strconv.Itoa(r.AttemptNo), r.Status, r.StatusReason, r.StatusChangedAt, r.CreatedAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}
}

// NewDirectoryCmd создаёт группу команд справочника каталогов.
func NewDirectoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Browse the directory catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List supported directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			dirs, err := client.ListDirectories()
			if err != nil {
				return err
			}

			headers := []string{"SLUG", "NAME", "CONNECTOR", "RATE_LIMIT/H", "WEBHOOK"}
			rows := make([][]string, len(dirs))
			for i, d := range dirs {
				rows[i] = []string{d.Slug, d.Name, d.Connector, strconv.Itoa(d.RateLimitPerHour), strconv.FormatBool(d.SupportsWebhook)}
			}

			out.Print(headers, rows, dirs)
			return nil
		},
	})

	return cmd
}
