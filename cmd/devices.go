package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// devicesCmd represents the devices command
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the devices known to STAR",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newSTARClient(cmd)
		if err != nil {
			return err
		}
		devices, err := client.Devices(cmd.Context())
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(devices)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "DEVICE\tLAST UPDATE\t")
		for _, d := range devices {
			updated := "never"
			if !d.LastUpdate.IsZero() {
				updated = fmt.Sprintf("%s (%s)", d.LastUpdate.Format("2006-01-02 15:04"), humanize.Time(d.LastUpdate))
			}
			fmt.Fprintf(w, "%s\t%s\t\n", d.Name, updated)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	devicesCmd.Flags().Bool("json", false, "Print devices as JSON")
}
