// Command vaultctl operates a share-based multi-asset vault.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/etnz/folio/cmd"
	"github.com/etnz/folio/docs"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	// Exits when invoked by the shell to complete a command line.
	completion(commander).Complete("vaultctl")

	flag.Parse()

	// Unknown subcommands are looked up as vaultctl-<name> extensions.
	if name := flag.Arg(0); name != "" && !registered(commander, name) {
		if found, code := cmd.RunExtension(name, flag.Args()[1:]); found {
			os.Exit(code)
		}
	}
	os.Exit(int(commander.Execute(context.Background())))
}

func registered(commander *subcommands.Commander, name string) bool {
	found := false
	commander.VisitCommands(func(_ *subcommands.CommandGroup, c subcommands.Command) {
		found = found || c.Name() == name
	})
	return found
}

// completion describes the command line of every registered subcommand.
func completion(commander *subcommands.Commander) *complete.Command {
	root := &complete.Command{
		Sub:   make(map[string]*complete.Command),
		Flags: make(map[string]complete.Predictor),
	}
	flag.CommandLine.VisitAll(func(f *flag.Flag) {
		root.Flags[f.Name] = flagPredictor(f.Name)
	})

	commander.VisitCommands(func(_ *subcommands.CommandGroup, c subcommands.Command) {
		sub := &complete.Command{Flags: make(map[string]complete.Predictor)}
		fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
		c.SetFlags(fs)
		fs.VisitAll(func(f *flag.Flag) {
			sub.Flags[f.Name] = flagPredictor(f.Name)
		})
		if c.Name() == "topic" {
			topics, _ := docs.GetAllTopics()
			sub.Args = predict.Set(append(topics, "*"))
		}
		root.Sub[c.Name()] = sub
	})
	return root
}

func flagPredictor(name string) complete.Predictor {
	switch name {
	case "config":
		return predict.Files("*.yaml")
	case "journal":
		return predict.Files("*.jsonl")
	case "pools":
		return predict.Files("*.json")
	case "all", "add", "list", "plain":
		return predict.Nothing
	default:
		return predict.Something
	}
}
