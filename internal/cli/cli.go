package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRecite     Command = "recite"
	CommandListen     Command = "listen"
	CommandPlay       Command = "play"
	CommandSkip       Command = "skip"
	CommandStop       Command = "stop"
	CommandCancel     Command = "cancel"
	CommandDiacritics Command = "diacritics"
	CommandStatus     Command = "status"
	CommandProgress   Command = "progress"
	CommandList       Command = "list"
	CommandDevices    Command = "devices"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRecite:     {},
	CommandListen:     {},
	CommandPlay:       {},
	CommandSkip:       {},
	CommandStop:       {},
	CommandCancel:     {},
	CommandDiacritics: {},
	CommandStatus:     {},
	CommandProgress:   {},
	CommandList:       {},
	CommandDevices:    {},
	CommandDoctor:     {},
	CommandVersion:    {},
	CommandHelp:       {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	HadithID   string
	Query      string
	Plain      bool
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--plain":
			parsed.Plain = true
		case "--config", "--hadith", "--query":
			i++
			if i >= len(args) || strings.HasPrefix(args[i], "--") {
				return Parsed{}, fmt.Errorf("%s requires a value", arg)
			}
			switch arg {
			case "--config":
				parsed.ConfigPath = args[i]
			case "--hadith":
				parsed.HadithID = args[i]
			case "--query":
				parsed.Query = args[i]
			}
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	if parsed.Query != "" && parsed.Command != CommandList {
		return Parsed{}, errors.New("--query is only valid with list")
	}
	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--hadith ID] [--plain] [--query TEXT] <command>

Session commands:
  recite      Start reciting from memory (starts a session when none is running)
  listen      Hear the hadith read aloud before reciting
  play        Replay the prepared reading
  skip        Skip the word at the cursor
  stop        Stop reciting or playback and return to idle
  cancel      Discard the session and exit
  diacritics  Show the text with diacritics (with --plain: without)
  status      Print current state
  progress    Print word-by-word progress

Other commands:
  list        List hadiths in the library (filter with --query)
  devices     List available input devices
  doctor      Run configuration and environment checks
  version     Print version information
  help        Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/tasmi/config.jsonc)
  --hadith ID     Hadith to recite, by id or number (default: first in library)
  --plain         Show the text without diacritics
  --query TEXT    Filter for list
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
