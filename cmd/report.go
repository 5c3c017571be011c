package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/starlight-qa/starlight/internal/utils"
	"github.com/starlight-qa/starlight/pkg/report"
)

// reportCmd implements: starlight report <device>
//
//	--priority string     P0, P1, P2 or none
//	--categories strings  Restrict to these categories (default: active ones)
//	--all-categories      Do not restrict categories at all
//	--team string         Use a team's categories
//	--variant string      Only test cases carrying this field, e.g. usku_v2
//	--tc911               Include tc911 test cases
//	--only-blank          Only test cases still missing a result
var reportCmd = &cobra.Command{
	Use:   "report <device>",
	Short: "Print the changed test cases of a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		device := args[0]

		filters, err := filtersFromFlags(cmd)
		if err != nil {
			return err
		}

		client, err := newSTARClient(cmd)
		if err != nil {
			return err
		}
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if team, _ := cmd.Flags().GetString("team"); team != "" && filters.Categories == nil {
			t, err := db.GetTeam(ctx, team)
			if err != nil {
				return err
			}
			if titles := t.Titles(); len(titles) > 0 {
				filters.Categories = titles
			}
		}

		snapshot, err := db.Snapshot(ctx)
		if err != nil {
			return err
		}
		log := utils.Log.WithField("device", device)
		res, err := report.New(snapshot, report.WithLogger(log)).Run(ctx, client, device, filters)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		return printReport(res)
	},
}

func filtersFromFlags(cmd *cobra.Command) (report.Filters, error) {
	var f report.Filters
	var err error

	rawPriority, _ := cmd.Flags().GetString("priority")
	if f.Priority, err = report.ParsePriority(rawPriority); err != nil {
		return report.Filters{}, err
	}

	if all, _ := cmd.Flags().GetBool("all-categories"); all {
		f.Categories = []string{}
	} else if cmd.Flags().Changed("categories") {
		f.Categories, _ = cmd.Flags().GetStringSlice("categories")
	}
	f.Variant, _ = cmd.Flags().GetString("variant")
	f.TC911, _ = cmd.Flags().GetBool("tc911")
	f.OnlyBlank, _ = cmd.Flags().GetBool("only-blank")
	return f, f.Validate()
}

func printReport(res *report.Result) error {
	fmt.Printf("%s: %d test cases, %s vs %s, built in %s s\n\n",
		res.Device, res.Total, res.CurrentVersion, res.PreviousVersion, res.ElapsedSeconds())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "#\tCATEGORY\tORDER\tTEST CASE\tPRIORITY\t%s\t%s\tISSUE\t\n", res.PreviousVersion, res.CurrentVersion)
	for i := range res.TestCases {
		tc := &res.TestCases[i]
		issue := ""
		if tc.Issue != report.NoIssue {
			issue = tc.Issue.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			tc.DisplayID,
			tc.Category(),
			tc.Value(report.FieldDisplayOrder),
			tc.Name(),
			tc.Priority(),
			tc.Value(report.FieldPreviousVersionResult),
			tc.LastVersionResult(),
			issue,
		)
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("priority", "none", "Priority threshold: P0, P1, P2 or none")
	reportCmd.Flags().StringSlice("categories", nil, "Comma-separated categories to include (default: active categories)")
	reportCmd.Flags().Bool("all-categories", false, "Include every category, active or not")
	reportCmd.Flags().String("team", "", "Use the categories of this team (id or name)")
	reportCmd.Flags().String("variant", "", "Only include test cases carrying this variant field (usku_v2, usku_v3, mr_usku_v2, mr_usku_v3)")
	reportCmd.Flags().Bool("tc911", false, "Include tc911 test cases")
	reportCmd.Flags().Bool("only-blank", false, "Only include test cases without a result for the current binary")
	reportCmd.Flags().Bool("json", false, "Print the report as JSON")
}
