package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// reportFlags are the output switches shared by log and diff.
type reportFlags struct {
	all       bool
	allGrades bool
	noMethods bool
	noColor   bool
	filters   []string
}

func (f *reportFlags) register(flags *pflag.FlagSet) {
	flags.BoolVar(&f.all, "all", false, "show every statistic instead of the grade summary")
	flags.BoolVar(&f.allGrades, "all-grades", false, "show unchanged grades too")
	flags.BoolVar(&f.noMethods, "no-methods", false, "do not list changed methods")
	flags.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	registerFilters(flags, &f.filters)
}

func registerFilters(flags *pflag.FlagSet, filters *[]string) {
	flags.StringArrayVarP(filters, "filter", "F", nil,
		"report only records whose snapshot path matches this regex (default: tree totals)")
}

// rangeArgs splits "[rev-range] [path...]" arguments.
func rangeArgs(args []string) (spec string, paths []string) {
	if len(args) == 0 {
		return "", nil
	}

	return args[0], args[1:]
}

// storeFor selects the persistent store, emptied first when force is set.
func storeFor(force bool) storeLocation {
	if force {
		return freshStore
	}

	return persistentStore
}

func registerForce(cmd *cobra.Command, force *bool) {
	cmd.Flags().BoolVarP(force, "force", "f", false, "rebuild the snapshot repository from scratch")
}
