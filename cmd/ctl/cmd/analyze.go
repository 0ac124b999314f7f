package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/jpfielding/jpegdec.go/pkg/compress/baseline"
	"github.com/jpfielding/jpegdec.go/pkg/util"
	"github.com/spf13/cobra"
)

// NewAnalyzeCmd creates the analyze cobra command
func NewAnalyzeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze JPEG segment structure",
		Long:  "Parses and displays the markers, tables, frame and scan headers of a JPEG file, then test decodes it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath, _ := cmd.Flags().GetString("file")
			tables, _ := cmd.Flags().GetBool("tables")
			asJSON, _ := cmd.Flags().GetBool("json")

			if filePath == "" && len(args) > 0 {
				filePath = args[0]
			}

			if filePath == "" {
				return usageErr("file path is required. Use --file flag or provide as argument")
			}

			return reportErr(ctx, "analyze failed", runAnalyze(ctx, cmd, filePath, tables, asJSON))
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringP("file", "f", "", "JPEG file path (or URI) to analyze")
	pf.Bool("tables", false, "print quantization tables and huffman code counts")
	pf.Bool("json", false, "print the header summary as json")

	return cmd
}

// runAnalyze dumps what the decoder saw, even when decoding fails part way
func runAnalyze(ctx context.Context, cmd *cobra.Command, filePath string, tables, asJSON bool) error {
	in, err := openInput(ctx, cmd, filePath, false)
	if err != nil {
		return err
	}
	defer in.Close()
	data, err := io.ReadAll(in)
	if err != nil {
		return ioErr("read %s: %w", filePath, err)
	}

	d := baseline.NewDecoder(bytes.NewReader(data))
	_, decodeErr := d.Decode()
	info := d.Info()
	out := cmd.OutOrStdout()

	if asJSON {
		j, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(j))
		return decodeErr
	}

	fmt.Fprintf(out, "File: %s (%d bytes)\n", filePath, len(data))
	fmt.Fprintf(out, "MD5: %s\n", util.Md5ThenHex(data))
	fmt.Fprintf(out, "Header fingerprint: %s\n\n", util.HashUUID(info))

	fmt.Fprintln(out, "=== Segments ===")
	for _, s := range info.Segments {
		fmt.Fprintln(out, s)
	}
	if info.ScanBytes > 0 {
		fmt.Fprintf(out, "Entropy coded data: %d bytes\n", info.ScanBytes)
	}
	fmt.Fprintln(out)

	if j := info.JFIF; j != nil {
		fmt.Fprintln(out, "=== JFIF ===")
		fmt.Fprintf(out, "Version: %s\n", j.Version())
		fmt.Fprintf(out, "Density: %dx%d (units %d)\n", j.XDensity, j.YDensity, j.Units)
		fmt.Fprintln(out)
	}
	for _, c := range info.Comments {
		fmt.Fprintf(out, "Comment: %q\n", c)
	}

	f := info.Frame
	if f.Width > 0 {
		fmt.Fprintln(out, "=== Frame ===")
		fmt.Fprintf(out, "Size: %dx%d, %d bit\n", f.Width, f.Height, f.Precision)
		fmt.Fprintf(out, "Subsampling: %s\n", f.Subsampling())
		cols, rows := f.MCUs()
		fmt.Fprintf(out, "MCU: %dx%d pixels, %dx%d units\n", f.MCUWidth(), f.MCUHeight(), cols, rows)
		for _, c := range f.Components {
			fmt.Fprintf(out, "  %-2s H=%d V=%d quant=%d\n", c.ID, c.H, c.V, c.TableID)
		}
		fmt.Fprintln(out)
	}
	if len(info.Scan.Components) > 0 {
		fmt.Fprintln(out, "=== Scan ===")
		for _, c := range info.Scan.Components {
			fmt.Fprintf(out, "  %-2s DC=%d AC=%d\n", c.ID, c.DCTable, c.ACTable)
		}
		fmt.Fprintf(out, "  Ss=%d Se=%d Ah=%d Al=%d\n\n", info.Scan.Ss, info.Scan.Se, info.Scan.Ah, info.Scan.Al)
	}

	if tables {
		for _, id := range sortedKeys(info.Quant) {
			fmt.Fprintf(out, "=== Quantization table %d ===\n%s\n", id, info.Quant[id])
		}
		for _, id := range sortedKeys(info.DC) {
			fmt.Fprintf(out, "DC huffman %d: counts %v\n", id, info.DC[id].Counts())
		}
		for _, id := range sortedKeys(info.AC) {
			fmt.Fprintf(out, "AC huffman %d: counts %v\n", id, info.AC[id].Counts())
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "=== Decode Test ===")
	if decodeErr != nil {
		fmt.Fprintf(out, "Decode error: %v\n", decodeErr)
		return decodeErr
	}
	fmt.Fprintln(out, "Decode: ok")
	return nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
