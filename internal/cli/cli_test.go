package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithFlags(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/tasmi.jsonc", "--hadith", "nawawi-2", "--plain", "recite"})
	require.NoError(t, err)
	require.Equal(t, CommandRecite, parsed.Command)
	require.Equal(t, "/tmp/tasmi.jsonc", parsed.ConfigPath)
	require.Equal(t, "nawawi-2", parsed.HadithID)
	require.True(t, parsed.Plain)
	require.False(t, parsed.ShowHelp)
}

func TestParseListQuery(t *testing.T) {
	parsed, err := Parse([]string{"--query", "النية", "list"})
	require.NoError(t, err)
	require.Equal(t, CommandList, parsed.Command)
	require.Equal(t, "النية", parsed.Query)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantErr   string
		wantCmd   Command
		wantHelp  bool
		wantPath  string
		wantPlain bool
	}{
		{
			name:     "help short flag",
			args:     []string{"-h"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "help long flag",
			args:     []string{"--help"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:    "version flag",
			args:    []string{"--version"},
			wantCmd: CommandVersion,
		},
		{
			name:    "config after command",
			args:    []string{"status", "--config", "/tmp/cfg"},
			wantErr: "unexpected arguments after command",
		},
		{
			name:    "missing config path",
			args:    []string{"--config"},
			wantErr: "--config requires a value",
		},
		{
			name:    "hadith followed by flag",
			args:    []string{"--hadith", "--plain", "recite"},
			wantErr: "--hadith requires a value",
		},
		{
			name:    "query outside list",
			args:    []string{"--query", "x", "recite"},
			wantErr: "only valid with list",
		},
		{
			name:    "unknown flag",
			args:    []string{"--bogus"},
			wantErr: "unknown flag",
		},
		{
			name:    "unknown command",
			args:    []string{"toggle"},
			wantErr: "unknown command",
		},
		{
			name:    "extra args after command",
			args:    []string{"doctor", "extra"},
			wantErr: "unexpected arguments",
		},
		{
			name:    "valid cancel command",
			args:    []string{"cancel"},
			wantCmd: CommandCancel,
		},
		{
			name:      "plain diacritics",
			args:      []string{"--plain", "diacritics"},
			wantCmd:   CommandDiacritics,
			wantPlain: true,
		},
		{
			name:     "valid skip with config",
			args:     []string{"--config", "/tmp/cfg", "skip"},
			wantCmd:  CommandSkip,
			wantPath: "/tmp/cfg",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
			require.Equal(t, tc.wantPlain, parsed.Plain)
		})
	}
}

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText("tasmi")
	for _, cmd := range []string{"recite", "listen", "play", "skip", "stop", "cancel", "diacritics", "progress", "list", "doctor"} {
		require.Contains(t, text, cmd)
	}
	require.Contains(t, text, "--config PATH")
	require.Contains(t, text, "--hadith ID")
}
