package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zvonler/ljcorpus/cli/deadletter"
	"github.com/zvonler/ljcorpus/cli/entry"
	"github.com/zvonler/ljcorpus/cli/parse"
	"github.com/zvonler/ljcorpus/cli/scrape"
	"github.com/zvonler/ljcorpus/cli/site"
)

var (
	dbPath string
)

func NewCommand() *cobra.Command {
	ljcorpusCli := &cobra.Command{
		Use:     "ljcorpus",
		Short:   "LJ archive CLI",
		Long:    "LiveJournal community archiver command line interface",
		Example: fmt.Sprintf("  %s <command> [flags...]", os.Args[0]),
	}

	ljcorpusCli.PersistentFlags().StringVar(&dbPath, "database", "ljcorpus.db", "Database filename")
	viper.BindPFlag("database", ljcorpusCli.PersistentFlags().Lookup("database"))

	ljcorpusCli.AddCommand(deadletter.NewCommand())
	ljcorpusCli.AddCommand(entry.NewCommand())
	ljcorpusCli.AddCommand(parse.NewCommand())
	ljcorpusCli.AddCommand(scrape.NewCommand())
	ljcorpusCli.AddCommand(site.NewCommand())

	return ljcorpusCli
}
