package svcutil

import (
	"bytes"
	"encoding/json"
	"flag"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v2"
)

func TestParseLevel(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(slog.LevelError, ParseLevel(" error "))
	assert.Equal(slog.LevelInfo, ParseLevel(""))
	assert.Equal(slog.LevelInfo, ParseLevel("chatty"))
}

func testContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("log-level", "", "")
	set.String("log-format", "", "")
	assert.NoError(t, set.Parse(args))
	return cli.NewContext(nil, set, nil)
}

func TestConfigLogger(t *testing.T) {
	assert := assert.New(t)
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger := ConfigLogger(testContext(t, "-log-level", "warn"), &buf)
	logger.Info("dropped")
	logger.Warn("kept", "post", "p1")

	var line map[string]any
	assert.NoError(json.Unmarshal(buf.Bytes(), &line))
	assert.Equal("kept", line["msg"])
	assert.Equal("p1", line["post"])

	buf.Reset()
	logger = ConfigLogger(testContext(t, "-log-format", "text"), &buf)
	logger.Info("hello", "k", "v")
	assert.Contains(buf.String(), "msg=hello k=v")
}
