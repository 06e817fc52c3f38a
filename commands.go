package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"skillgap/output"
	"skillgap/service"
	"skillgap/skill"
	"skillgap/store"
)

var errConfirmationRequired = errors.New("cannot prompt for confirmation (not a terminal); use --force")

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List skills found in the workspace and global library",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

var catalogCmd = &cobra.Command{
	Use:     "catalog",
	Aliases: []string{"marketplace"},
	Short:   "List skills published by the configured repositories",
	Args:    cobra.NoArgs,
	RunE:    runCatalog,
}

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Show which reference skills the workspace is missing",
	Long: `Compares the workspace's active skills with a reference set, either
the marketplace catalog or the global skill library, and reports coverage.`,
	Args: cobra.NoArgs,
	RunE: runGaps,
}

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "List declared dependencies that no local skill provides",
	Args:  cobra.NoArgs,
	RunE:  runDeps,
}

var importCmd = &cobra.Command{
	Use:   "import NAME...",
	Short: "Copy skills from the global library into the workspace",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImport,
}

var deleteCmd = &cobra.Command{
	Use:     "delete NAME",
	Aliases: []string{"rm"},
	Short:   "Move a skill directory to the trash",
	Long:    `Moves a skill's directory to the trash. Prompts for confirmation in interactive mode.`,
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

var installCmd = &cobra.Command{
	Use:   "install [OWNER/REPO[/PATH][@BRANCH] [SKILL-PATH]]",
	Short: "Download a marketplace skill into the workspace",
	Long: `Downloads every file of a remote skill into the import directory.
Either name a repository and the skill's path inside it, or pass --name to
look the skill up in the catalog.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runInstall,
}

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"log"},
	Short:   "Show recorded scans, coverage and operations",
	Args:    cobra.NoArgs,
	RunE:    runHistory,
}

func init() {
	scanCmd.Flags().String("group", "all", "records to show: all, active, global or missing")
	catalogCmd.Flags().Bool("refresh", false, "bypass the remote cache")
	gapsCmd.Flags().String("against", string(service.RefMarketplace), "reference set: marketplace or global")
	gapsCmd.Flags().Bool("refresh", false, "rescan and bypass the remote cache")
	deleteCmd.Flags().BoolP("force", "f", false, "skip confirmation prompt")
	installCmd.Flags().String("name", "", "install the catalog skill with this name")
	historyCmd.Flags().Int("limit", 20, "maximum entries per section")
	historyCmd.Flags().String("kind", "", "only operations of this kind: import, delete or install")
	historyCmd.Flags().String("skill", "", "only operations on this skill")
	historyCmd.Flags().Bool("failed", false, "only failed operations")

	rootCmd.AddCommand(scanCmd, catalogCmd, gapsCmd, depsCmd, importCmd, deleteCmd, installCmd, historyCmd)
}

func runScan(cmd *cobra.Command, _ []string) error {
	groupName, _ := cmd.Flags().GetString("group")
	group, err := skill.ParseGroup(groupName)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	recs := group.Filter(a.svc.Scan(cmd.Context()).Records)
	if a.format() == output.FormatJSON {
		return output.JSON(os.Stdout, recs)
	}
	output.RecordTable(os.Stdout, recs)
	return nil
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	refresh, _ := cmd.Flags().GetBool("refresh")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cat, err := a.svc.Catalog(cmd.Context(), refresh)
	if err != nil {
		return err
	}
	if a.format() == output.FormatJSON {
		return output.JSON(os.Stdout, cat)
	}
	output.CatalogTable(os.Stdout, cat)
	return nil
}

func runGaps(cmd *cobra.Command, _ []string) error {
	against, _ := cmd.Flags().GetString("against")
	refresh, _ := cmd.Flags().GetBool("refresh")
	ref, err := service.ParseReference(against)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.svc.Gaps(cmd.Context(), ref, refresh)
	if err != nil {
		return err
	}
	if a.format() == output.FormatJSON {
		return output.JSON(os.Stdout, report)
	}
	for _, e := range report.Errors {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", e.Error())
	}
	output.GapTable(os.Stdout, string(report.Reference), report.Result)
	return nil
}

func runDeps(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	deps := a.svc.Dependencies(cmd.Context())
	if a.format() == output.FormatJSON {
		return output.JSON(os.Stdout, deps)
	}
	output.DependencyTable(os.Stdout, deps)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report := a.svc.Import(cmd.Context(), args)
	if a.format() == output.FormatJSON {
		if err := output.JSON(os.Stdout, report); err != nil {
			return err
		}
	} else {
		output.ImportReport(os.Stdout, report)
	}
	if len(report.Failures) > 0 {
		return errReported
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	force, _ := cmd.Flags().GetBool("force")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.svc.Find(cmd.Context(), name, skill.GroupAll); err != nil {
		return err
	}

	// Require confirmation in TTY mode unless --force.
	if !force {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errConfirmationRequired
		}
		fmt.Fprintf(os.Stderr, "Move skill %q to the trash? [y/N] ", name)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(os.Stderr, "Canceled.")
			return nil
		}
	}

	trashed, err := a.svc.DeleteNamed(cmd.Context(), name)
	if err != nil {
		return err
	}
	if a.format() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]string{
			"status":     "trashed",
			"name":       name,
			"trashed_to": trashed,
		})
	}
	output.Messagef(os.Stdout, "Trashed %s: %s", name, trashed)
	return nil
}

func runInstall(cmd *cobra.Command, args []string) error {
	var req service.InstallRequest
	req.Name, _ = cmd.Flags().GetString("name")
	if len(args) > 0 {
		req.Source = args[0]
	}
	if len(args) > 1 {
		req.SkillPath = args[1]
	}
	if req.Source == "" && req.Name == "" {
		return errors.New("install needs a repository or --name")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	dest, err := a.svc.Install(cmd.Context(), req)
	if err != nil {
		return err
	}
	if a.format() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]string{
			"status":       "installed",
			"installed_to": dest,
		})
	}
	output.Messagef(os.Stdout, "Installed to %s", dest)
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	var filter store.OperationFilter
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	kind, _ := cmd.Flags().GetString("kind")
	filter.Kind = store.OpKind(kind)
	filter.SkillName, _ = cmd.Flags().GetString("skill")
	filter.Failed, _ = cmd.Flags().GetBool("failed")

	switch filter.Kind {
	case "", store.OpImport, store.OpDelete, store.OpInstall:
	default:
		return fmt.Errorf("unknown operation kind %q", kind)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	h, err := a.svc.History(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if a.format() == output.FormatJSON {
		return output.JSON(os.Stdout, h)
	}
	output.HistoryTable(os.Stdout, h.Scans, h.Coverage, h.Operations)
	return nil
}
