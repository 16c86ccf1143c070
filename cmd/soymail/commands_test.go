package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cmd = NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	var err = cmd.Execute()
	return out.String(), err
}

const orderYAML = `
customer:
  name: Ana
order:
  number: 1001
  date: "2024-03-05"
  currency: EUR
  status: shipped
  total: 39.5
  items:
    - name: Notebook
      quantity: 2
      price: 12.25
    - name: Pen
      quantity: 1
      price: 15
`

func TestRenderCmd(t *testing.T) {
	var dir = t.TempDir()
	var dataFile = filepath.Join(dir, "order.yaml")
	require.NoError(t, os.WriteFile(dataFile, []byte(orderYAML), 0644))

	var out, err = run(t, "render", "order_confirmation", "--data", dataFile, "--locale", "de", "--subject")
	require.NoError(t, err)
	var lines = strings.SplitN(out, "\n", 2)
	assert.Equal(t, "Bestellung #1001 bestätigt", lines[0])
	assert.Contains(t, out, "<style type=\"text/css\">")
	assert.Contains(t, out, "Notebook")
	assert.Contains(t, out, "39,50")
	assert.NotContains(t, out, "<!-- soymail:styles -->")
}

func TestRenderCmdOutbox(t *testing.T) {
	var dir = t.TempDir()
	var dataFile = filepath.Join(dir, "user.json")
	require.NoError(t, os.WriteFile(dataFile, []byte(`{"customer":{"name":"Ana"},"store":{"name":"Acme","url":"https://acme.example.com"}}`), 0644))
	var outbox = filepath.Join(dir, "outbox")

	var _, err = run(t, "render", "welcome", "--data", dataFile, "--outbox", outbox, "--to", "ana@example.com")
	require.NoError(t, err)
	var entries, _ = os.ReadDir(outbox)
	assert.Len(t, entries, 2)
}

func TestRenderCmdErrors(t *testing.T) {
	var _, err = run(t, "render", "no_such_type")
	assert.Error(t, err)

	_, err = run(t, "render", "welcome", "--data", "payload.txt")
	assert.Error(t, err)
}

func TestCSSCmd(t *testing.T) {
	var out, err = run(t, "css")
	require.NoError(t, err)
	assert.Contains(t, out, "#2563eb")
	assert.NotContains(t, out, "[[")
}

func TestValidateCmd(t *testing.T) {
	var out, err = run(t, "validate")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)

	var dir = t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "orders"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders", "broken.hbs"), []byte("<div><p>x</p>"), 0644))
	out, err = run(t, "validate", "--templates", dir)
	assert.Error(t, err)
	assert.Contains(t, out, "orders/broken:")
}

func TestHelpersCmd(t *testing.T) {
	var out, err = run(t, "helpers")
	require.NoError(t, err)
	for _, name := range []string{"badge", "button", "formatCurrency", "formatDate", "get", "statusText"} {
		assert.Contains(t, strings.Fields(out), name)
	}
}

func TestTypesCmd(t *testing.T) {
	var out, err = run(t, "types")
	require.NoError(t, err)
	assert.Contains(t, out, "order_confirmation")
	assert.Contains(t, out, "account/password_reset")
}

func TestSendCmdRequiresPostmark(t *testing.T) {
	var _, err = run(t, "send", "welcome", "--to", "ana@example.com")
	assert.Error(t, err)
}

func TestExtractCmd(t *testing.T) {
	var out, err = run(t, "extract")
	require.NoError(t, err)
	assert.Contains(t, out, `msgid "view_order"`)
	assert.Contains(t, out, `msgid "footer_help"`)
	assert.Contains(t, out, `msgctxt "subject"`)
	assert.Contains(t, out, `msgid "password_reset"`)
}
