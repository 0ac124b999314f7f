package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	cmd "github.com/jpfielding/jpegdec.go/cmd/ctl/cmd"
	"github.com/jpfielding/jpegdec.go/pkg/logging"
	"github.com/jpfielding/jpegdec.go/pkg/util"
)

var (
	GitSHA string = "NA"
)

func main() {
	// register sigterm for graceful shutdown
	ctx, cnc := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cnc()
	go func() {
		defer cnc() // this cnc is from notify and removes the signal so subsequent ctrl-c will restore kill functions
		<-ctx.Done()
	}()
	slog.SetDefault(logging.Logger(os.Stderr, false, slog.LevelInfo))
	ctx = logging.AppendCtx(ctx,
		slog.Group("jpegctl",
			slog.String("git", GitSHA),
			slog.String("run", util.RunID()),
		))
	err := cmd.NewRoot(ctx, GitSHA).Execute()
	code := cmd.ExitCode(err)
	if code != 0 {
		cnc()
		os.Exit(code)
	}
}
