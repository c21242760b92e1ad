package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"extract", "batch", "status", "reset", "export", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "esg-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestBatchCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range batchCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"submit", "status", "results"} {
		assert.True(t, names[name], "expected batch subcommand %q not found", name)
	}
}

func TestExtractCommand_Flags(t *testing.T) {
	flag := extractCmd.Flags().Lookup("concurrency")
	require.NotNil(t, flag, "extract command should have --concurrency flag")
	assert.Equal(t, "0", flag.DefValue)

	require.NotNil(t, extractCmd.Flags().Lookup("with-extracts"))
}

func TestBatchResultsCommand_Flags(t *testing.T) {
	flag := batchResultsCmd.Flags().Lookup("wait")
	require.NotNil(t, flag, "batch results command should have --wait flag")
	assert.Equal(t, "false", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("format")
	require.NotNil(t, flag, "export command should have --format flag")
	assert.Equal(t, "", flag.DefValue)
}

func TestResetCommand_Flags(t *testing.T) {
	require.NotNil(t, resetCmd.Flags().Lookup("stage"))
}
