// Package cli implements the omnilog command line tool.
package cli

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wayneeseguin/omnilog/pkg/config"
	"github.com/wayneeseguin/omnilog/pkg/omnilog"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// NewRoot constructs the root command and registers emit, drain and version.
func NewRoot(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "omnilog",
		Short:         "Structured log dispatch from the command line",
		Long:          "omnilog emits entries through the transports of a configuration file and drains persisted buffers.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "configuration file (YAML or TOML)")

	root.AddCommand(newEmitCommand())
	root.AddCommand(newDrainCommand())
	root.AddCommand(newVersionCommand(version))
	return root
}

// session is a configured manager for the lifetime of one command.
type session struct {
	manager  *omnilog.Manager
	failures atomic.Uint64
}

// openSession loads the configuration named by --config and installs it on a
// fresh Manager. Transport and pipeline failures are written to stderr.
func openSession(cmd *cobra.Command, forceBuffering bool) (*session, error) {
	path, _ := cmd.Flags().GetString("config")

	file, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	s := &session{manager: omnilog.NewManager()}
	stderr := cmd.ErrOrStderr()

	cfg, err := file.Build(config.BuildOptions{
		ForceBuffering: forceBuffering,
		OnError: func(err error, entry *types.LogEntry, transport string) {
			s.failures.Add(1)
			fmt.Fprintf(stderr, "transport %s: %v\n", transport, err)
		},
		ErrorHandler: func(e omnilog.LogError) {
			fmt.Fprintf(stderr, "omnilog: %s\n", e.Error())
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "build configuration")
	}

	if err := s.manager.Configure(cfg); err != nil {
		return nil, closeOnError(err, cfg)
	}
	return s, nil
}

func closeOnError(err error, cfg omnilog.Config) error {
	if closeErr := config.CloseTransports(cfg.Transports); closeErr != nil {
		return errors.Wrapf(err, "close transports: %v", closeErr)
	}
	return err
}

// close shuts the manager down and fails when any transport reported an error.
func (s *session) close(ctx context.Context) error {
	if err := s.manager.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if n := s.failures.Load(); n > 0 {
		return errors.Errorf("%d transport failure(s)", n)
	}
	return nil
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the omnilog version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printf(cmd.OutOrStdout(), "omnilog %s\n", version)
		},
	}
}

func printf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}
