package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newDrainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Deliver entries left in the configured buffer store",
		Long: `drain loads the backlog persisted by a buffered process that stopped
before flushing, and dispatches it to the configured transports.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, true)
			if err != nil {
				return err
			}

			flushErr := s.manager.Flush(cmd.Context())
			delivered := s.manager.Metrics().FlushedEntries

			if err := s.close(cmd.Context()); err != nil {
				return err
			}
			if flushErr != nil {
				return errors.Wrap(flushErr, "drain")
			}
			printf(cmd.OutOrStdout(), "drained %d entries\n", delivered)
			return nil
		},
	}
}
