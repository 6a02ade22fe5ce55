package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/example/poolside-scheduler/internal/booking"
	"github.com/spf13/cobra"
)

func newVenuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "venues",
		Short: "List known pool venue ids by region",
		Run: func(cmd *cobra.Command, args []string) {
			dir := booking.Venues()
			regions := make([]string, 0, len(dir))
			for r := range dir {
				regions = append(regions, r)
			}
			sort.Strings(regions)
			for _, region := range regions {
				names := make([]string, 0, len(dir[region]))
				for n := range dir[region] {
					names = append(names, n)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(os.Stdout, "%-12s %-20s %s\n", region, name, dir[region][name])
				}
			}
		},
	}
}
