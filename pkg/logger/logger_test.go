package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe512961708279f8b1a3b1e0a5e0c2b1"

func TestRedactHook(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.AddHook(newRedactHook([]string{testKey, "short", ""}))

	l.WithField("key", testKey[2:]).
		WithError(errors.New("bad key "+testKey)).
		Warn("signer " + testKey + " short")

	out := buf.String()
	assert.NotContains(t, out, testKey[2:])
	assert.Contains(t, out, "***")
	assert.Contains(t, out, "short", "短字符串不做替换")
}

func TestNoRedactHookWithoutSecrets(t *testing.T) {
	assert.Nil(t, newRedactHook(nil))
	assert.Nil(t, newRedactHook([]string{" ", "abc"}))
}

func TestInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "betdex.log")
	require.NoError(t, Init(Config{Level: "debug", Format: "json", OutputFile: path, NoConsole: true}))
	t.Cleanup(Discard)

	assert.Equal(t, logrus.DebugLevel, Logger.GetLevel())
	WithField("component", "test").Info("hello")
	assert.FileExists(t, path)
}

func TestFallbackBeforeInit(t *testing.T) {
	logMu.Lock()
	Logger = nil
	logMu.Unlock()
	t.Cleanup(Discard)

	assert.Same(t, logrus.StandardLogger(), current())
	assert.NotPanics(t, func() { Warnf("x %d", 1) })
}
