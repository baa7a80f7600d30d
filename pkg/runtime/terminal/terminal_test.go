package terminal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invoiceText = "GREENFIELD LOGISTICS - INVOICE 0042\n500 L Diesel\n1200 kWh Consumed\n50 kg A4 Paper\n"

func newTestCLI(t *testing.T) (*CLI, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CARBON_STORE_PATH", filepath.Join(dir, "carbon.db"))
	t.Setenv("CARBON_EXTRACTOR_STRATEGY", "rules")

	var out bytes.Buffer
	return NewCLI(Options{Output: &out}), &out, dir
}

func TestCLI_Analyze(t *testing.T) {
	// Given
	cli, out, dir := newTestCLI(t)
	path := filepath.Join(dir, "invoice-0042.txt")
	require.NoError(t, os.WriteFile(path, []byte(invoiceText), 0o600))

	// When
	cli.SetArgs([]string{"analyze", path})
	err := cli.ExecuteContext(context.Background())

	// Then
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Carbon report: invoice-0042.txt")
	assert.Contains(t, out.String(), "Total: 2349.00 kg CO2e")
	assert.Contains(t, out.String(), "Top drivers: Diesel Fuel (55%), Electricity Bill (42%), Printer Paper (3%)")

	// the report is stored and listed
	out.Reset()
	cli.SetArgs([]string{"reports"})
	require.NoError(t, cli.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "PROCESSED")
	assert.Contains(t, out.String(), "2349.00 kg CO2e  3 items  invoice-0042.txt")
}

func TestCLI_AnalyzeTable(t *testing.T) {
	cli, out, dir := newTestCLI(t)
	path := filepath.Join(dir, "scan.txt")
	require.NoError(t, os.WriteFile(path, []byte(invoiceText), 0o600))

	cli.SetArgs([]string{"analyze", path, "--format", "table", "--source", "custom-ref"})
	require.NoError(t, cli.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "Carbon report: custom-ref (builtin-2024.1)")
	assert.Contains(t, out.String(), "| Diesel Fuel ")
}

func TestCLI_AnalyzeUnknownFormat(t *testing.T) {
	cli, _, dir := newTestCLI(t)
	path := filepath.Join(dir, "scan.txt")
	require.NoError(t, os.WriteFile(path, []byte(invoiceText), 0o600))

	cli.SetArgs([]string{"analyze", path, "--format", "pdf"})
	err := cli.ExecuteContext(context.Background())

	assert.ErrorContains(t, err, `unsupported format "pdf"`)
}

func TestCLI_Batch(t *testing.T) {
	cli, out, dir := newTestCLI(t)
	docs := filepath.Join(dir, "docs")
	require.NoError(t, os.Mkdir(docs, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "a.txt"), []byte(invoiceText), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "b.txt"), []byte(""), 0o600))

	cli.SetArgs([]string{"batch", docs, "--concurrency", "2"})
	require.NoError(t, cli.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "PROCESSED  a.txt: 2349.00 kg CO2e, 3 items")
	assert.Contains(t, out.String(), "PROCESSED  b.txt: 0.00 kg CO2e, 0 items")
}

func TestCLI_Factors(t *testing.T) {
	cli, out, _ := newTestCLI(t)

	cli.SetArgs([]string{"factors"})
	require.NoError(t, cli.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "Factor table builtin-2024.1")
	assert.Contains(t, out.String(), "| Diesel Fuel ")
}
