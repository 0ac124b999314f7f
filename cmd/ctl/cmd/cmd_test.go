package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jpfielding/jpegdec.go/pkg/compress/baseline"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func run(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	root := NewRoot(context.Background(), "abc123")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(append([]string{}, args...))
	err := root.Execute()
	return out.String(), err
}

func redImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	return img
}

func writeJPEG(t *testing.T, dir string) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, baseline.Encode(&buf, redImage(24, 16), &baseline.Encoder{Subsampling: baseline.Subsample422}))
	path := filepath.Join(dir, "red.jpg")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path, buf.Bytes()
}

func assertRed(t *testing.T, img image.Image) {
	t.Helper()
	require.Equal(t, image.Rect(0, 0, 24, 16), img.Bounds())
	r, g, b, _ := img.At(5, 7).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Less(t, g>>8, uint32(50))
	assert.Less(t, b>>8, uint32(50))
}

func TestVersion(t *testing.T) {
	out, err := run(t, nil, "version")
	require.NoError(t, err)
	assert.Equal(t, "abc123\n", out)
}

func TestRoot_PrintsTree(t *testing.T) {
	out, err := run(t, nil)
	require.NoError(t, err)
	for _, sub := range []string{"decode:", "encode:", "analyze:", "version:"} {
		assert.Contains(t, out, sub)
	}
}

func TestDecode_Formats(t *testing.T) {
	dir := t.TempDir()
	in, _ := writeJPEG(t, dir)

	t.Run("bmp", func(t *testing.T) {
		out := filepath.Join(dir, "out.bmp")
		_, err := run(t, nil, "decode", "-i", in, "-o", out)
		require.NoError(t, err)
		f, err := os.Open(out)
		require.NoError(t, err)
		defer f.Close()
		img, err := bmp.Decode(f)
		require.NoError(t, err)
		assertRed(t, img)
	})
	t.Run("png by extension", func(t *testing.T) {
		out := filepath.Join(dir, "out.png")
		_, err := run(t, nil, "decode", "-i", "file://"+in, "-o", out)
		require.NoError(t, err)
		f, err := os.Open(out)
		require.NoError(t, err)
		defer f.Close()
		img, err := png.Decode(f)
		require.NoError(t, err)
		assertRed(t, img)
	})
}

func TestDecode_StdinToStdout(t *testing.T) {
	_, data := writeJPEG(t, t.TempDir())
	out, err := run(t, bytes.NewReader(data), "decode", "-i", "-", "-o", "-", "--format", "png")
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader([]byte(out)))
	require.NoError(t, err)
	assertRed(t, img)
}

func TestDecode_Zstd(t *testing.T) {
	dir := t.TempDir()
	_, data := writeJPEG(t, dir)
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll(data, nil)
	require.NoError(t, enc.Close())
	in := filepath.Join(dir, "red.jpg.zst")
	require.NoError(t, os.WriteFile(in, compressed, 0o644))

	out := filepath.Join(dir, "out.bmp")
	_, err = run(t, nil, "decode", "-i", in, "-o", out)
	require.NoError(t, err)
	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := bmp.Decode(f)
	require.NoError(t, err)
	assertRed(t, img)
}

func TestDecode_HTTP(t *testing.T) {
	_, data := writeJPEG(t, t.TempDir())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/red.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "out.bmp")
	_, err := run(t, nil, "decode", "-i", srv.URL+"/red.jpg", "-o", out)
	require.NoError(t, err)

	_, err = run(t, nil, "decode", "-i", srv.URL+"/missing.jpg", "-o", out)
	assert.Equal(t, ExitIO, ExitCode(err))
}

func TestExitCodes(t *testing.T) {
	dir := t.TempDir()
	_, data := writeJPEG(t, dir)

	corrupt := bytes.Clone(data)
	corrupt[1] = 0x00
	corruptPath := filepath.Join(dir, "corrupt.jpg")
	require.NoError(t, os.WriteFile(corruptPath, corrupt, 0o644))

	progressive := bytes.Clone(data)
	i := bytes.Index(progressive, []byte{0xFF, baseline.MarkerSOF0})
	require.Positive(t, i)
	progressive[i+1] = baseline.MarkerSOF2
	progressivePath := filepath.Join(dir, "progressive.jpg")
	require.NoError(t, os.WriteFile(progressivePath, progressive, 0o644))

	out := filepath.Join(dir, "out.bmp")
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"missing flags", []string{"decode"}, ExitUsage},
		{"unknown flag", []string{"decode", "--nope"}, ExitUsage},
		{"missing file", []string{"decode", "-i", filepath.Join(dir, "nope.jpg"), "-o", out}, ExitIO},
		{"invalid", []string{"decode", "-i", corruptPath, "-o", out}, ExitInvalid},
		{"unsupported", []string{"decode", "-i", progressivePath, "-o", out}, ExitUnsupported},
		{"unwritable output", []string{"decode", "-i", filepath.Join(dir, "red.jpg"), "-o", filepath.Join(dir, "missing", "out.bmp")}, ExitIO},
		{"bad quality", []string{"encode", "-i", "x.png", "-o", "y.jpg", "-q", "0"}, ExitUsage},
		{"bad subsample", []string{"encode", "-i", "x.png", "-o", "y.jpg", "--subsample", "411"}, ExitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, nil, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.want, ExitCode(err), "%v", err)
		})
	}
	assert.Equal(t, ExitOK, ExitCode(nil))
}

func TestAnalyze(t *testing.T) {
	in, _ := writeJPEG(t, t.TempDir())

	out, err := run(t, nil, "analyze", "-f", in, "--tables")
	require.NoError(t, err)
	for _, want := range []string{
		"=== Segments ===",
		"SOI",
		"SOF0",
		"EOI",
		"Header fingerprint: ",
		"Subsampling: 4:2:2",
		"Size: 24x16, 8 bit",
		"=== Quantization table 0 ===",
		"DC huffman 1: counts",
		"Decode: ok",
	} {
		assert.Contains(t, out, want)
	}

	again, err := run(t, nil, "analyze", in)
	require.NoError(t, err)
	assert.Contains(t, again, "Header fingerprint: ")
}

func TestAnalyze_JSON(t *testing.T) {
	in, _ := writeJPEG(t, t.TempDir())
	out, err := run(t, nil, "analyze", "-f", in, "--json")
	require.NoError(t, err)

	var info struct {
		Frame struct {
			Width, Height int
		}
		JFIF *struct{ Major, Minor int }
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, 24, info.Frame.Width)
	assert.Equal(t, 16, info.Frame.Height)
	require.NotNil(t, info.JFIF)
	assert.Equal(t, 1, info.JFIF.Major)
}

func TestAnalyze_ReportsDecodeError(t *testing.T) {
	dir := t.TempDir()
	_, data := writeJPEG(t, dir)
	path := filepath.Join(dir, "short.jpg")
	require.NoError(t, os.WriteFile(path, data[:len(data)-2], 0o644))

	out, err := run(t, nil, "analyze", "-f", path)
	assert.Equal(t, ExitInvalid, ExitCode(err))
	assert.Contains(t, out, "Decode error:")
	assert.Contains(t, out, "SOF0")
}

func TestEncode(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	f, err := os.Create(in)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, redImage(24, 16)))
	require.NoError(t, f.Close())

	out := filepath.Join(dir, "out.jpg")
	_, err = run(t, nil, "encode", "-i", in, "-o", out, "-q", "90", "--subsample", "4:2:0", "--comment", "hi")
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	info, err := baseline.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "4:2:0", info.Frame.Subsampling())
	assert.Equal(t, []string{"hi"}, info.Comments)

	img, err := baseline.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assertRed(t, img)
}

func TestLogFile(t *testing.T) {
	dir := t.TempDir()
	in, _ := writeJPEG(t, dir)
	logPath := filepath.Join(dir, "ctl.log")

	_, err := run(t, nil, "--log-file", logPath, "--log-json", "--log-level", "debug",
		"decode", "-i", in, "-o", filepath.Join(dir, "out.bmp"))
	require.NoError(t, err)

	logs, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logs), `"msg":"decoded"`)
	assert.Contains(t, string(logs), `"msg":"segment"`)
}
