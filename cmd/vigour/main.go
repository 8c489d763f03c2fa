// ABOUTME: Entry point for the Vigour fan simulator
// ABOUTME: Parses the kong command line and dispatches to subcommands
package main

import (
	"os"

	"github.com/Vigour-Plus-Plus/vigour-go/internal/cli"
	"github.com/Vigour-Plus-Plus/vigour-go/internal/version"
	"github.com/alecthomas/kong"
)

// Globals are flags shared by every command
type Globals struct {
	Config  string `help:"Settings file." default:"settings.ini" placeholder:"path" env:"VIGOUR_CONFIG"`
	EnvFile string `help:"Environment file with VIGOUR_* overrides." name:"env-file" default:".env" placeholder:"path"`
	LogFile string `help:"Log file path (rotated at 1MB)." name:"log-file" default:"log.log" placeholder:"path"`
	Debug   bool   `help:"Enable debug logging."`
}

// CLI is the kong grammar
var CLI struct {
	Globals

	Run        RunCmd        `cmd:"" default:"withargs" help:"Play the fan tone driven by CPU load."`
	Render     RenderCmd     `cmd:"" help:"Render the fan tone to a WAV file."`
	Devices    DevicesCmd    `cmd:"" help:"List audio output backends."`
	Discover   DiscoverCmd   `cmd:"" help:"Find other instances on the local network."`
	InitConfig InitConfigCmd `cmd:"" name:"init-config" help:"Write a settings file with default values."`
	Version    VersionCmd    `cmd:"" help:"Show version information."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("vigour"),
		kong.Description("Hear your CPU: a fan simulator that maps load to a smooth sine tone."),
		kong.UsageOnError(),
		kong.Help(cli.StyledHelpPrinter(version.String())),
	)

	if err := ctx.Run(&CLI.Globals); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}
