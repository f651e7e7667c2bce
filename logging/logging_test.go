package logging_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxemy/muse/logging"
)

func newTestLogger(level logging.Level, suppress bool) (*logging.DefaultLogger, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	l := logging.NewLogger(logging.Options{
		Level:            level,
		SuppressWarnings: suppress,
		Color:            "never",
		Stdout:           &out,
		Stderr:           &errOut,
	})
	return l, &out, &errOut
}

func TestParseLevel(t *testing.T) {
	lvl, err := logging.ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, logging.DebugLevel, lvl)

	lvl, err = logging.ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, logging.InfoLevel, lvl)

	_, err = logging.ParseLevel("loud")
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	l, out, errOut := newTestLogger(logging.InfoLevel, false)

	l.Debug("hidden")
	l.Info("shown", logging.Fields{"component": "test"})
	l.Error(errors.New("boom"), "failed")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[INFO] shown component=test")
	assert.Contains(t, errOut.String(), "[ERROR] failed: boom")
}

func TestWarningSuppression(t *testing.T) {
	l, _, errOut := newTestLogger(logging.DebugLevel, true)
	l.Warn("noisy")
	assert.Empty(t, errOut.String())

	l.SetSuppressWarnings(false)
	l.Warn("visible")
	assert.Contains(t, errOut.String(), "[WARN] visible")
}

func TestChildSharesLevel(t *testing.T) {
	l, out, _ := newTestLogger(logging.InfoLevel, false)
	child := l.WithFields(logging.Fields{"function": "child"})

	child.Debug("before")
	l.SetLevel(logging.DebugLevel)
	child.Debug("after")

	assert.NotContains(t, out.String(), "before")
	assert.Contains(t, out.String(), "after function=child")
}

func TestWithContextFields(t *testing.T) {
	l, out, _ := newTestLogger(logging.InfoLevel, false)
	ctx := logging.ContextWithFields(context.Background(), logging.Fields{"run_id": "abc"})

	l.WithContext(ctx).Info("hello")
	assert.Contains(t, out.String(), "run_id=abc")
}
