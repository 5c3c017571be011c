package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/starlight-qa/starlight/internal/utils"
	"github.com/starlight-qa/starlight/pkg/report"
	"github.com/starlight-qa/starlight/pkg/storage"
	"github.com/starlight-qa/starlight/pkg/xmltree"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the starlight database",
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, dbPath, err := openDB()
		if err != nil {
			return err
		}
		db.Close()

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the db shell")
		}

		// Print schema first
		fmt.Println("--> Database schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Manage report categories",
}

var categoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		activeOnly, _ := cmd.Flags().GetBool("active")
		cats, err := db.ListCategories(cmd.Context(), activeOnly)
		if err != nil {
			return err
		}
		if len(cats) == 0 {
			fmt.Println("No categories yet. Add some with 'starlight db categories import <device>'.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tACTIVE\t")
		for _, c := range cats {
			fmt.Fprintf(w, "%d\t%s\t%t\t\n", c.ID, c.Title, c.IsActive)
		}
		return w.Flush()
	},
}

var categoriesAddCmd = &cobra.Command{
	Use:   "add <title>...",
	Short: "Add active categories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, path, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return utils.WithDBLock(cmd.Context(), path, func() error {
			for _, title := range args {
				c, err := db.AddCategory(cmd.Context(), title)
				if err != nil {
					return err
				}
				utils.Log.Infof("Added category %d %q", c.ID, c.Title)
			}
			return nil
		})
	},
}

func setActiveCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id|title>...",
		Short: strings.ToUpper(use[:1]) + use[1:] + " categories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, path, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			return utils.WithDBLock(cmd.Context(), path, func() error {
				for _, ref := range args {
					c, err := db.GetCategory(cmd.Context(), ref)
					if err != nil {
						return err
					}
					if err := db.SetCategoryActive(cmd.Context(), c.ID, active); err != nil {
						return err
					}
					utils.Log.Infof("Category %q active=%t", c.Title, active)
				}
				return nil
			})
		},
	}
}

// categoriesImportCmd seeds the store with the categories found in a
// device's current report.
var categoriesImportCmd = &cobra.Command{
	Use:   "import <device>",
	Short: "Import the categories used by a device report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newSTARClient(cmd)
		if err != nil {
			return err
		}
		raw, err := client.FetchReport(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		doc, err := xmltree.Load(raw)
		if err != nil {
			return fmt.Errorf("report for %s: %w", args[0], err)
		}
		titles := report.Categories(doc)

		db, path, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return utils.WithDBLock(cmd.Context(), path, func() error {
			added, err := db.ImportCategories(cmd.Context(), titles)
			if err != nil {
				return err
			}
			utils.Log.Infof("Found %d categories in %s report, %d new", len(titles), args[0], added)
			return nil
		})
	},
}

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "Manage teams and their categories",
}

var teamsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List teams with their active categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		teams, err := db.ListTeams(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCATEGORIES\t")
		for _, t := range teams {
			fmt.Fprintf(w, "%d\t%s\t%s\t\n", t.ID, t.Name, strings.Join(t.Titles(), ", "))
		}
		return w.Flush()
	},
}

var teamsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a team",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, path, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return utils.WithDBLock(cmd.Context(), path, func() error {
			t, err := db.AddTeam(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			utils.Log.Infof("Added team %d %q", t.ID, t.Name)
			return nil
		})
	},
}

// teamCategoryCmd builds assign and unassign, which share their arguments.
func teamCategoryCmd(use, short string, apply func(db *storage.DB, cmd *cobra.Command, team storage.Team, cat storage.Category) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <team> <category>...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, path, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			return utils.WithDBLock(cmd.Context(), path, func() error {
				team, err := db.GetTeam(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for _, ref := range args[1:] {
					cat, err := db.GetCategory(cmd.Context(), ref)
					if err != nil {
						return err
					}
					if err := apply(db, cmd, team, cat); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd)

	dbCmd.AddCommand(categoriesCmd)
	categoriesCmd.AddCommand(categoriesListCmd)
	categoriesCmd.AddCommand(categoriesAddCmd)
	categoriesCmd.AddCommand(setActiveCmd("enable", true))
	categoriesCmd.AddCommand(setActiveCmd("disable", false))
	categoriesCmd.AddCommand(categoriesImportCmd)
	categoriesListCmd.Flags().Bool("active", false, "Only list active categories")

	dbCmd.AddCommand(teamsCmd)
	teamsCmd.AddCommand(teamsListCmd)
	teamsCmd.AddCommand(teamsAddCmd)
	teamsCmd.AddCommand(teamCategoryCmd("assign", "Assign active categories to a team",
		func(db *storage.DB, cmd *cobra.Command, team storage.Team, cat storage.Category) error {
			return db.AssignCategory(cmd.Context(), team.ID, cat.ID)
		}))
	teamsCmd.AddCommand(teamCategoryCmd("unassign", "Remove categories from a team",
		func(db *storage.DB, cmd *cobra.Command, team storage.Team, cat storage.Category) error {
			return db.UnassignCategory(cmd.Context(), team.ID, cat.ID)
		}))
}
