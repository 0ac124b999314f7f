package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jpfielding/jpegdec.go/pkg/compress/baseline"
	"github.com/jpfielding/jpegdec.go/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	errUsage = errors.New("usage")
	errIO    = errors.New("i/o")
)

// Process exit codes
const (
	ExitOK          = 0
	ExitUsage       = 1
	ExitIO          = 2
	ExitInvalid     = 3
	ExitUnsupported = 4
)

// ExitCode maps a command error onto the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, baseline.ErrUnsupportedFeature):
		return ExitUnsupported
	case errors.Is(err, baseline.ErrInvalidFileFormat):
		return ExitInvalid
	case errors.Is(err, baseline.ErrArgument):
		return ExitUsage
	case errors.Is(err, errIO):
		return ExitIO
	}
	return ExitUsage
}

func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	var logFile io.Closer
	cmd := &cobra.Command{
		Use:           "jpegctl",
		Short:         "a CLI to decode, encode and inspect baseline JPEG",
		Long:          "jpegctl decodes baseline JPEG into BMP/PNG, writes baseline JPEG and dumps JPEG segment structure",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logLevel, _ := cmd.Flags().GetString("log-level")
			logPath, _ := cmd.Flags().GetString("log-file")
			logJSON, _ := cmd.Flags().GetBool("log-json")

			// Parse log level
			var level slog.Level
			levelErr := level.UnmarshalText([]byte(strings.ToUpper(logLevel)))
			if levelErr != nil {
				level = slog.LevelInfo
			}
			var w io.Writer = cmd.ErrOrStderr()
			if logPath != "" {
				rw := logging.RotatingWriter(logPath, 10, 3)
				w, logFile = rw, rw
			}
			slog.SetDefault(logging.Logger(w, logJSON, level))

			if levelErr != nil {
				slog.WarnContext(ctx, "Invalid log level, defaulting to INFO", "level", logLevel, "error", levelErr)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logFile != nil {
				logFile.Close()
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			printCommandTree(cmd.OutOrStdout(), cmd, 0)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})
	cmd.AddCommand(
		NewVersionCmd(ctx, gitsha),
		NewDecodeCmd(ctx),
		NewAnalyzeCmd(ctx),
		NewEncodeCmd(ctx),
	)
	pf := cmd.PersistentFlags()
	pf.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.String("log-file", "", "write logs to this file, rotated by size")
	pf.Bool("log-json", false, "log as json")
	return cmd
}

func printCommandTree(w io.Writer, cmd *cobra.Command, indent int) {
	fmt.Fprintln(w, strings.Repeat("\t", indent), cmd.Use+":", cmd.Short)
	for _, subCmd := range cmd.Commands() {
		printCommandTree(w, subCmd, indent+1)
	}
}

func NewVersionCmd(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "git sha for this build",
		Long:  "git sha for this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), gitsha)
		},
	}
	return cmd
}

// reportErr logs the failure with its exit status before handing it back to main.
func reportErr(ctx context.Context, msg string, err error) error {
	if err != nil {
		slog.ErrorContext(ctx, msg, slog.Any("error", err), slog.Int("exit", ExitCode(err)))
	}
	return err
}

func ioErr(format string, args ...any) error {
	return fmt.Errorf("%w: %w", errIO, fmt.Errorf(format, args...))
}

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}
