package cmd

import (
	"bufio"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"log/slog"
	"os"

	"github.com/jpfielding/jpegdec.go/pkg/compress/baseline"
	"github.com/spf13/cobra"
	_ "golang.org/x/image/bmp"
)

// NewEncodeCmd writes a PNG or BMP image as baseline JPEG
func NewEncodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "encode PNG/BMP as baseline JPEG",
		Long:  "encode a PNG or BMP image as baseline JPEG with the standard tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, _ := cmd.Flags().GetString("in")
			outPath, _ := cmd.Flags().GetString("out")
			quality, _ := cmd.Flags().GetInt("quality")
			sub, _ := cmd.Flags().GetString("subsample")
			comment, _ := cmd.Flags().GetString("comment")
			if uri == "" || outPath == "" {
				return usageErr("--in and --out are required")
			}
			if quality < 1 || quality > 100 {
				return usageErr("quality %d out of range 1-100", quality)
			}
			subsampling, err := baseline.ParseSubsampling(sub)
			if err != nil {
				return fmt.Errorf("%w: %w", errUsage, err)
			}
			opts := &baseline.Encoder{Quality: quality, Subsampling: subsampling, Comment: comment}
			return reportErr(ctx, "encode failed", runEncode(ctx, cmd, uri, outPath, opts))
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("in", "i", "", "PNG or BMP URI: a path, - for stdin, or http(s)://")
	pf.StringP("out", "o", "", "output path, - for stdout")
	pf.IntP("quality", "q", 75, "quality 1-100")
	pf.String("subsample", "444", "chroma subsampling (444|422|420)")
	pf.String("comment", "", "optional COM segment text")
	return cmd
}

func runEncode(ctx context.Context, cmd *cobra.Command, uri, outPath string, opts *baseline.Encoder) error {
	in, err := openInput(ctx, cmd, uri, false)
	if err != nil {
		return err
	}
	defer in.Close()
	img, format, err := image.Decode(in)
	if err != nil {
		return usageErr("%s is not a PNG or BMP image: %v", uri, err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if outPath != "-" {
		f, err := os.Create(outPath)
		if err != nil {
			return ioErr("failed to create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)
	if err := baseline.Encode(bw, img, opts); err != nil {
		return ioErr("encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return ioErr("encode: %w", err)
	}
	slog.InfoContext(ctx, "encoded",
		slog.String("in", uri),
		slog.String("from", format),
		slog.Int("quality", opts.Quality),
		slog.String("subsampling", opts.Subsampling.String()))
	return nil
}
