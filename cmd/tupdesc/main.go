// Command tupdesc inspects relations and composite values stored in a
// catalog file through the tuple descriptor handles.
package main

import (
	"github.com/alecthomas/kong"

	"PGTupDesc/utils/elog"
	"PGTupDesc/utils/guc"
)

// Globals are the flags shared by every command.
type Globals struct {
	guc.Config `embed:""`

	Catalog string `name:"catalog" short:"C" default:"tupdesc.db" env:"PGTD_CATALOG" help:"Catalog file."`
	Verbose bool   `name:"verbose" short:"v" help:"Log at debug level."`
}

var CLI struct {
	Globals

	Init     InitCmd     `cmd:"" help:"Create the catalog file."`
	Define   DefineCmd   `cmd:"" help:"Add a table, view or composite type to the catalog."`
	Drop     DropCmd     `cmd:"" help:"Remove a class from the catalog."`
	List     ListCmd     `cmd:"" help:"List catalog classes."`
	Describe DescribeCmd `cmd:"" help:"Show the row descriptor of a relation."`
	Decode   DecodeCmd   `cmd:"" help:"Build a composite value from text and read it back."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("tupdesc"),
		kong.Description("Tuple descriptor inspection tool"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	ctx.FatalIfErrorf(CLI.Config.Validate())

	level := CLI.LogLevel
	if CLI.Verbose {
		level = "debug"
	}
	logger, err := elog.NewLogger(level)
	ctx.FatalIfErrorf(err)
	elog.SetLogger(logger)
	defer func() { _ = logger.Sync() }()

	ctx.FatalIfErrorf(CLI.Config.Apply())
	err = ctx.Run(&CLI.Globals)
	ctx.FatalIfErrorf(err)
}
