package cmd

import (
	"github.com/spf13/cobra"
	"github.com/starlight-qa/starlight/internal/server"
	"github.com/starlight-qa/starlight/internal/utils"
)

// webCmd represents the web command
var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Start the starlight web interface",
	Long:  `Start a web server to browse devices and their filtered reports.`,
	Run: func(cmd *cobra.Command, args []string) {
		client, err := newSTARClient(cmd)
		if err != nil {
			utils.Log.Fatalf("Failed to configure STAR client: %v", err)
		}

		db, _, err := openDB()
		if err != nil {
			utils.Log.Fatalf("%v", err)
		}
		defer db.Close()

		// Auth
		user, _ := cmd.Flags().GetString("username")
		pass, _ := cmd.Flags().GetString("password")
		addr, _ := cmd.Flags().GetString("bind")

		srv := server.New(db, client, user, pass)
		if err := srv.Start(addr); err != nil {
			utils.Log.Fatalf("Server failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(webCmd)

	webCmd.Flags().StringP("bind", "b", ":9999", "Address to bind the server to")
	webCmd.Flags().StringP("username", "u", "", "Username for basic auth (optional)")
	webCmd.Flags().StringP("password", "p", "", "Password for basic auth (optional)")
}
