// Command onboard drives a user's BenefitMetrics onboarding from the
// terminal, keeping a local cache in sync with the onboarding service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"benefitmetrics-backend/internal/client"
	"benefitmetrics-backend/internal/config"
	"benefitmetrics-backend/internal/logging"
	"benefitmetrics-backend/internal/onboarding"
	"benefitmetrics-backend/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	apiURL    string
	token     string
	userID    string
	cachePath string
	role      string
	logLevel  string
	verbose   bool
}

func main() {
	if err := newRootCmd(config.LoadClient()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Client) *cobra.Command {
	opts := &options{logLevel: cfg.LogLevel}
	root := &cobra.Command{
		Use:          "onboard",
		Short:        "Work through BenefitMetrics onboarding",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api", cfg.APIURL, "onboarding service base URL")
	flags.StringVar(&opts.token, "token", cfg.Token, "session token (JWT)")
	flags.StringVar(&opts.userID, "user", "", "user id when no token is available")
	flags.StringVar(&opts.cachePath, "cache", cfg.CachePath, "local cache database")
	flags.StringVar(&opts.role, "role", cfg.Role, "onboarding role (employee or employer)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newStepsCmd(opts),
		newStatusCmd(opts),
		newCompleteCmd(opts),
		newSkipCmd(opts),
		newGotoCmd(opts),
		newResetCmd(opts),
	)
	return root
}

// session is one CLI invocation's tracker with its resources.
type session struct {
	tracker *onboarding.Tracker
	api     *client.Client
	local   *storage.SQLiteStore
	logger  *zap.Logger
}

func openSession(ctx context.Context, opts *options) (*session, error) {
	role, err := onboarding.ParseRole(opts.role)
	if err != nil {
		return nil, err
	}

	level := opts.logLevel
	if opts.verbose {
		level = "debug"
	}
	logger, err := logging.New(level)
	if err != nil {
		return nil, err
	}

	userID := opts.userID
	if opts.token != "" {
		if userID, err = client.UserIDFromToken(opts.token); err != nil {
			return nil, err
		}
	}
	if userID == "" {
		return nil, errors.New("a --token or --user is required")
	}

	local, err := storage.OpenSQLite(ctx, opts.cachePath)
	if err != nil {
		return nil, err
	}

	api := client.New(opts.apiURL, opts.token)
	repo := storage.NewRepository(local, api, logger.Named("storage"))
	tracker := onboarding.NewTracker(repo, api, logger.Named("tracker"))
	if err := tracker.Init(ctx, role, userID); err != nil {
		local.Close()
		return nil, err
	}
	return &session{tracker: tracker, api: api, local: local, logger: logger}, nil
}

func (s *session) Close() {
	s.tracker.Teardown()
	s.local.Close()
	_ = s.logger.Sync()
}

// withSession opens a session around fn and prints the resulting state.
func withSession(opts *options, fn func(ctx context.Context, s *session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), opts)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := fn(cmd.Context(), s); err != nil {
			return err
		}
		printState(cmd.OutOrStdout(), s.tracker.State(), s.tracker.Phase())
		return nil
	}
}

func newStepsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List the onboarding steps for a role",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := onboarding.ParseRole(opts.role)
			if err != nil {
				return err
			}
			steps, err := client.New(opts.apiURL, opts.token).FetchSteps(cmd.Context(), role)
			if err != nil {
				steps = onboarding.StepsForRole(role)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, s := range steps {
				req := ""
				if s.IsRequired {
					req = "required"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Title, req)
			}
			return tw.Flush()
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show onboarding progress",
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			return nil
		}),
	}
}

func newCompleteCmd(opts *options) *cobra.Command {
	var data map[string]string
	cmd := &cobra.Command{
		Use:   "complete <step>",
		Short: "Mark a step completed",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringToStringVar(&data, "data", nil, "step data as key=value pairs")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		var stepData map[string]any
		if len(data) > 0 {
			stepData = make(map[string]any, len(data))
			for k, v := range data {
				stepData[k] = v
			}
		}
		return withSession(opts, func(ctx context.Context, s *session) error {
			return s.tracker.CompleteStep(ctx, args[0], stepData)
		})(cmd, args)
	}
	return cmd
}

func newSkipCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "skip <step>",
		Short: "Skip an optional step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, func(ctx context.Context, s *session) error {
				return s.tracker.SkipStep(ctx, args[0])
			})(cmd, args)
		},
	}
}

func newGotoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "goto <step>",
		Short: "Show a step without changing progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, func(ctx context.Context, s *session) error {
				if err := s.tracker.GoToStep(args[0]); err != nil {
					return err
				}
				step, _ := s.tracker.CurrentStep()
				fmt.Fprintf(cmd.OutOrStdout(), "-> %s (%s)\n", step.Title, step.Route)
				return nil
			})(cmd, args)
		},
	}
}

func newResetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Start onboarding over",
		RunE: withSession(opts, func(ctx context.Context, s *session) error {
			return s.tracker.ResetOnboarding(ctx)
		}),
	}
}

func printState(w io.Writer, st *onboarding.ProgressState, phase onboarding.Phase) {
	if st == nil {
		return
	}
	fmt.Fprintf(w, "Role: %s  Phase: %s  Progress: %.0f%%\n", st.Role, phase, st.Progress*100)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range st.Steps {
		cursor := " "
		if s.ID == st.CurrentStepID {
			cursor = ">"
		}
		mark := "[ ]"
		switch s.Status {
		case onboarding.StatusCompleted:
			mark = "[x]"
		case onboarding.StatusSkipped:
			mark = "[-]"
		}
		req := ""
		if s.IsRequired {
			req = "required"
		}
		fmt.Fprintf(tw, "%s %s %s\t%s\t%s\n", cursor, mark, s.ID, s.Title, req)
	}
	tw.Flush()
}
