package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetLevel("info")
		SetOutput(os.Stdout)
	})

	SetLevel("warn")
	Infof("hidden %d", 1)
	Warnf("shown %d", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown 2")
}

func TestEventCarriesAttributes(t *testing.T) {
	var buf bytes.Buffer
	SetFormat("json")
	SetOutput(&buf)
	t.Cleanup(func() {
		SetFormat("text")
		SetOutput(os.Stdout)
	})

	Event("tick", "new", []string{"a"}, "open_invoices", 2)
	out := buf.String()
	assert.Contains(t, out, `"msg":"tick"`)
	assert.Contains(t, out, `"open_invoices":2`)
	assert.Contains(t, out, `"new":["a"]`)
}
