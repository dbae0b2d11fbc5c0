package cli

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zephyrtronium/varcalc"
)

// maxArity bounds the argument counts probed when listing functions.
const maxArity = 8

// FuncInfo describes a callable function.
type FuncInfo struct {
	Name  string `json:"name" yaml:"name"`
	Arity int    `json:"arity" yaml:"arity"`
}

func newFuncsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "funcs",
		Short: "List the available functions",
		Long:  `List the functions that expressions may call, with the number of arguments each takes.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := funcInfos(varcalc.Funcs())
			switch f := viper.GetString("output"); f {
			case "json":
				return printJSON(cmd.OutOrStdout(), infos)
			case "yaml":
				return printYAML(cmd.OutOrStdout(), infos)
			case "text":
				rows := make([][]string, 0, len(infos))
				for _, fi := range infos {
					rows = append(rows, []string{fi.Name, strconv.Itoa(fi.Arity)})
				}
				printTable(cmd.OutOrStdout(), []string{"NAME", "ARITY"}, rows)
				return nil
			default:
				return fmt.Errorf("unknown output format %q", f)
			}
		},
	}
}

// funcInfos describes fns sorted by name.
func funcInfos(fns map[string]varcalc.Func) []FuncInfo {
	infos := make([]FuncInfo, 0, len(fns))
	for name, fn := range fns {
		infos = append(infos, FuncInfo{Name: name, Arity: varcalc.Arity(fn, maxArity)})
	}
	slices.SortFunc(infos, func(a, b FuncInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return infos
}
