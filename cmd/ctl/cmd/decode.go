package cmd

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jpfielding/jpegdec.go/pkg/compress/baseline"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// NewDecodeCmd decodes a baseline JPEG into BMP or PNG
func NewDecodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "decode a baseline JPEG",
		Long:  "decode a baseline JPEG from a file, stdin (-) or http(s) URI, optionally zstd compressed, into BMP or PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, _ := cmd.Flags().GetString("in")
			outPath, _ := cmd.Flags().GetString("out")
			format, _ := cmd.Flags().GetString("format")
			verbose, _ := cmd.Flags().GetBool("verbose")
			if uri == "" && len(args) > 0 {
				uri = args[0]
			}
			if uri == "" || outPath == "" {
				return usageErr("--in and --out are required")
			}
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(outPath)), ".")
			}
			if format != "png" {
				format = "bmp"
			}
			return reportErr(ctx, "decode failed", runDecode(ctx, cmd, uri, outPath, format, verbose))
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("in", "i", "", "JPEG URI: a path, - for stdin, or http(s)://")
	pf.StringP("out", "o", "", "output path, - for stdout")
	pf.String("format", "", "output format (bmp|png), defaults to the output extension")
	pf.BoolP("verbose", "v", false, "dump http request/response headers to stderr")
	return cmd
}

func runDecode(ctx context.Context, cmd *cobra.Command, uri, outPath, format string, verbose bool) error {
	in, err := openInput(ctx, cmd, uri, verbose)
	if err != nil {
		return err
	}
	defer in.Close()

	start := time.Now()
	img, err := baseline.Decode(in)
	if err != nil {
		return fmt.Errorf("%s: %w", uri, err)
	}
	slog.InfoContext(ctx, "decoded",
		slog.String("in", uri),
		slog.Int("width", img.Width),
		slog.Int("height", img.Height),
		slog.Duration("took", time.Since(start)))

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
	switch format {
	case "png":
		err = png.Encode(bw, img)
	default:
		err = bmp.Encode(bw, img)
	}
	if err == nil {
		err = bw.Flush()
	}
	if err != nil {
		return ioErr("failed to write %s: %w", format, err)
	}
	return nil
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error {
	return r.close()
}

// openInput resolves a URI and transparently unwraps zstd compression.
func openInput(ctx context.Context, cmd *cobra.Command, uri string, verbose bool) (io.ReadCloser, error) {
	var in io.ReadCloser
	uri = strings.TrimPrefix(uri, "file://")
	switch {
	case uri == "-":
		in = io.NopCloser(cmd.InOrStdin())
	case strings.HasPrefix(uri, "http"):
		// TODO make this a param
		cl := &http.Client{
			Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, usageErr("failed to create request: %v", err)
		}
		resp, err := cl.Do(req)
		if err != nil {
			return nil, ioErr("failed to download: %w", err)
		}
		if verbose {
			reqDump, _ := httputil.DumpRequest(req, true)
			cmd.ErrOrStderr().Write(reqDump)
			resDump, _ := httputil.DumpResponse(resp, false)
			cmd.ErrOrStderr().Write(resDump)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, ioErr("failed to download: %s", resp.Status)
		}
		in = resp.Body
	default:
		f, err := os.Open(uri)
		if err != nil {
			return nil, ioErr("failed to open file: %w", err)
		}
		in = f
	}

	br := bufio.NewReader(in)
	magic, _ := br.Peek(len(zstdMagic))
	if !bytes.Equal(magic, zstdMagic) {
		return readCloser{Reader: br, close: in.Close}, nil
	}
	zr, err := zstd.NewReader(br)
	if err != nil {
		in.Close()
		return nil, ioErr("failed to open zstd stream: %w", err)
	}
	slog.DebugContext(ctx, "zstd input", slog.String("in", uri))
	return readCloser{Reader: zr, close: func() error {
		zr.Close()
		return in.Close()
	}}, nil
}
