package main

import (
	"github.com/spf13/cobra"

	"skuldbot/compliance/pkg/cli"
	"skuldbot/compliance/pkg/pack"
)

var packsFlags struct {
	tenant string
}

var packsCmd = &cobra.Command{
	Use:   "packs",
	Short: "Inspect registered policy packs",
}

var packsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and configured packs",
	Long: `List the packs registered from the configured sources: the built-in
regulatory packs, the pack directory and the Git repository.

With --tenant only the packs that tenant may resolve are listed.`,
	Args: cobra.NoArgs,
	RunE: runPacksList,
}

var packsShowCmd = &cobra.Command{
	Use:   "show <id@version>",
	Short: "Print one pack",
	Args:  cobra.ExactArgs(1),
	RunE:  runPacksShow,
}

func init() {
	rootCmd.AddCommand(packsCmd)
	packsCmd.AddCommand(packsListCmd, packsShowCmd)
	packsCmd.PersistentFlags().StringVarP(&packsFlags.tenant, "tenant", "t", "", "only packs visible to this tenant")
}

func runPacksList(cmd *cobra.Command, args []string) error {
	a, err := setupPacks(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := formatter()
	if err != nil {
		return err
	}
	return f.FormatTo(cmd.OutOrStdout(), cli.PackList(a.registry.List(packsFlags.tenant)))
}

func runPacksShow(cmd *cobra.Command, args []string) error {
	ref, err := pack.ParseRef(args[0])
	if err != nil {
		return cli.NewConfigError("pack", err.Error())
	}

	a, err := setupPacks(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.registry.Resolve(packsFlags.tenant, ref)
	if err != nil {
		return cli.NewCommandError("packs show", err)
	}
	// A pack has no text form; show it as JSON either way.
	return (&cli.JSONFormatter{Indent: true}).FormatTo(cmd.OutOrStdout(), p)
}

func setupPacks(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := newApp(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := a.loadPacks(cmd.Context()); err != nil {
		a.Close()
		return nil, cli.NewCommandError(cmd.CommandPath(), err)
	}
	return a, nil
}
