package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func resetLogger(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetFormat("text")
		SetLevel("info")
	})
}

func TestSetFormatSwitchesHandler(t *testing.T) {
	resetLogger(t)
	var buf bytes.Buffer
	SetOutput(&buf)

	SetFormat("json")
	Infof("connected to %s", "mt5")
	assert.Contains(t, buf.String(), `"msg":"connected to mt5"`)

	buf.Reset()
	SetFormat("text")
	Infof("connected to %s", "mt5")
	assert.Contains(t, buf.String(), `msg="connected to mt5"`)
	assert.NotContains(t, buf.String(), `{`)
}

func TestSetLevelFiltersDebug(t *testing.T) {
	resetLogger(t)
	var buf bytes.Buffer
	SetOutput(&buf)

	Debugf("hidden")
	assert.Empty(t, buf.String())

	SetLevel("debug")
	Debugf("visible")
	assert.Contains(t, buf.String(), "visible")

	SetLevel("nonsense defaults to info")
	buf.Reset()
	Debugf("hidden again")
	assert.Empty(t, buf.String())
}
