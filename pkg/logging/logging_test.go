package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_ContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, true, slog.LevelDebug)

	ctx := AppendCtx(context.Background(), slog.String("run", "abc"))
	ctx = AppendCtx(ctx, slog.Int("frame", 3))
	log.InfoContext(ctx, "decoded")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "decoded", rec["msg"])
	assert.Equal(t, "abc", rec["run"])
	assert.EqualValues(t, 3, rec["frame"])
}

func TestAppendCtx_DoesNotLeakIntoParent(t *testing.T) {
	parent := AppendCtx(context.Background(), slog.String("a", "1"))
	_ = AppendCtx(parent, slog.String("b", "2"))

	attrs, ok := parent.Value(ctxKey{}).([]slog.Attr)
	require.True(t, ok)
	assert.Len(t, attrs, 1)
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, false, slog.LevelWarn)
	log.Info("quiet")
	assert.Empty(t, buf.String())
	log.Warn("loud", "k", "v")
	assert.Contains(t, buf.String(), "loud")
	assert.Contains(t, buf.String(), "k=v")
}

func TestRotatingWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.log")
	w := RotatingWriter(path, 1, 2)
	_, err := w.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}
