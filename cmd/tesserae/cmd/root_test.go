package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: a root command

	// When: executing with --help
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()

	// Then: it should show usage information
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "tesserae", "Help should mention program name")
	assert.Contains(t, output, "Usage:", "Help should show usage")
}

func TestRootCmd_ShowsVersion(t *testing.T) {
	// Given: a root command

	// When: executing with --version
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--version"})

	err := cmd.Execute()

	// Then: it should show version
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "tesserae version")
}

func TestRootCmd_HasEveryDomainSubcommand(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()
	subcommands := cmd.Commands()

	// Then: every CLI surface the engine exposes is registered, and nothing
	// resembling a long-lived server process is (no server/API process)
	var commandNames []string
	for _, subcmd := range subcommands {
		commandNames = append(commandNames, subcmd.Name())
	}

	for _, name := range []string{"ingest", "search", "multitext", "delete", "gc", "version"} {
		assert.Contains(t, commandNames, name)
	}
	assert.NotContains(t, commandNames, "serve")
}

func TestRootCmd_HasDataDirFlag(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()

	// Then: it should have the --data-dir persistent flag
	flag := cmd.PersistentFlags().Lookup("data-dir")
	assert.NotNil(t, flag, "Should have --data-dir flag")
	assert.Equal(t, "", flag.DefValue)
}

func TestSearchCmd_ShowsHelp(t *testing.T) {
	// Given: a root command

	// When: executing search --help
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"search", "--help"})

	err := cmd.Execute()

	// Then: it should show search usage
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "search", "Search help should mention search")
	assert.True(t, strings.Contains(output, "--source") && strings.Contains(output, "--target"),
		"Search help should list --source and --target flags")
}

func TestIngestCmd_ShowsHelp(t *testing.T) {
	// Given: a root command

	// When: executing ingest --help
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"ingest", "--help"})

	err := cmd.Execute()

	// Then: it should show ingest usage
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "manifest", "Ingest help should mention the batch manifest flag")
}
