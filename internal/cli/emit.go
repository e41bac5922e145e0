package cli

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wayneeseguin/omnilog/pkg/omnilog"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

func newEmitCommand() *cobra.Command {
	var (
		loggerName    string
		level         string
		tags          []string
		meta          map[string]string
		fields        map[string]string
		env           string
		correlationID string
		errorName     string
	)

	cmd := &cobra.Command{
		Use:   "emit [flags] message...",
		Short: "Emit one log entry through the configured transports",
		Example: `  omnilog emit --config omnilog.yaml --logger auth --level warn \
    --tag security --meta user=alice --correlation-id req-42 "login failed"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := types.ParseLevel(level)
			if err != nil {
				return err
			}

			md := types.Metadata{
				Tags:          tags,
				Meta:          toFields(meta),
				Context:       toFields(fields),
				Env:           env,
				CorrelationID: correlationID,
			}
			if errorName != "" {
				md.Error = &types.ErrorInfo{Name: errorName, Message: strings.Join(args, " ")}
			}

			s, err := openSession(cmd, false)
			if err != nil {
				return err
			}

			logger, err := s.manager.GetLogger(loggerName)
			if err != nil {
				return err
			}
			logErr := logger.Log(cmd.Context(), lvl, strings.Join(args, " "), md)

			if err := s.close(cmd.Context()); err != nil {
				return err
			}
			return errors.Wrap(logErr, "emit")
		},
	}

	cmd.Flags().StringVarP(&loggerName, "logger", "l", omnilog.RootLoggerName, "logger name")
	cmd.Flags().StringVar(&level, "level", "info", "entry level (debug, info, warn, error)")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag, repeatable")
	cmd.Flags().StringToStringVarP(&meta, "meta", "m", nil, "meta key=value, repeatable")
	cmd.Flags().StringToStringVar(&fields, "context", nil, "context key=value, repeatable")
	cmd.Flags().StringVar(&env, "env", "", "environment name, overriding the configuration")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "correlation id")
	cmd.Flags().StringVar(&errorName, "error", "", "attach an error with this name and the message")
	return cmd
}

func toFields(kv map[string]string) map[string]interface{} {
	if len(kv) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(kv))
	for k, v := range kv {
		out[k] = v
	}
	return out
}
