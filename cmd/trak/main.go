// Package main provides the trak CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"trak/internal/format"
	"trak/internal/lock"
	"trak/internal/notify"
	"trak/internal/ops"
	"trak/internal/ra"
	"trak/internal/status"
	"trak/internal/wcerr"
)

var rootCmd = &cobra.Command{
	Use:           "trak",
	Short:         "trak - working copy client for versioned trees",
	Long:          `trak checks out a versioned tree, tracks local edits against the base revision, and reconciles adds, deletes, copies, and moves before commit.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout <repository> [dir]",
	Short: "Check out a working copy from a repository",
	Long: `Check out a working copy.

The repository may be a file:// URL or a plain directory path.

Examples:
  trak checkout file:///srv/repo project
  trak checkout ../export wc`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCheckout,
}

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show the status of the working copy",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

var addCmd = &cobra.Command{
	Use:   "add <path>...",
	Short: "Schedule paths for addition",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>...",
	Short: "Schedule paths for deletion",
	Long: `Schedule paths for deletion.

Without --force, paths with local modifications are refused. Targets are
processed independently: when a later target fails, earlier targets stay
scheduled.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRm,
}

var cpCmd = &cobra.Command{
	Use:   "cp <src> <dst>",
	Short: "Copy a versioned path, keeping its history reference",
	Args:  cobra.ExactArgs(2),
	RunE:  runCp,
}

var mvCmd = &cobra.Command{
	Use:   "mv <src> <dst>",
	Short: "Move a versioned path, recording move provenance",
	Args:  cobra.ExactArgs(2),
	RunE:  runMv,
}

var revertCmd = &cobra.Command{
	Use:   "revert <path>...",
	Short: "Discard pending local operations",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRevert,
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [path]",
	Short: "Upgrade the working copy store to the current format",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUpgrade,
}

var infoCmd = &cobra.Command{
	Use:   "info [path]",
	Short: "Show working copy information and the stored layer stack",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInfo,
}

var logCmd = &cobra.Command{
	Use:   "log [path]",
	Short: "Show the repository log for the working copy",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLog,
}

var (
	rmForce     bool
	rmKeepLocal bool
	rmDryRun    bool
	addNoIgnore bool
	revertRec   bool
)

func init() {
	rmCmd.Flags().BoolVar(&rmForce, "force", false, "Delete even with local modifications")
	rmCmd.Flags().BoolVar(&rmKeepLocal, "keep-local", false, "Keep the on-disk content")
	rmCmd.Flags().BoolVar(&rmDryRun, "dry-run", false, "Validate without changing anything")
	addCmd.Flags().BoolVar(&addNoIgnore, "no-ignore", false, "Also add ignored paths")
	revertCmd.Flags().BoolVarP(&revertRec, "recursive", "R", false, "Revert the whole subtree")

	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(revertCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(logCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "trak:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the error taxonomy onto stable exit statuses.
func exitCode(err error) int {
	switch wcerr.CodeOf(err) {
	case wcerr.NotFound:
		return 2
	case wcerr.InvalidState, wcerr.LocalModification, wcerr.Conflicted:
		return 3
	case wcerr.StoreCorruption:
		return 4
	case wcerr.ProtocolViolation:
		return 70
	default:
		return 1
	}
}

// printNotify writes one line per event, svn-style.
func printNotify(ev notify.Event) {
	switch ev.Action {
	case notify.ActionCheckoutStarted, notify.ActionCheckoutDone:
		return
	}
	letter := map[notify.Action]string{
		notify.ActionAdded:            "A",
		notify.ActionCopied:           "A+",
		notify.ActionMoved:            "A+",
		notify.ActionDeleted:          "D",
		notify.ActionRestored:         "R",
		notify.ActionReverted:         "Reverted",
		notify.ActionUpgraded:         "Upgraded",
		notify.ActionConflictDetected: "C",
		notify.ActionSkipped:          "Skipped",
	}[ev.Action]
	fmt.Printf("%-9s %s\n", letter, ev.Path)
}

func openWC(path string) (*ops.Context, error) {
	if path == "" {
		path = "."
	}
	return ops.Open(path, format.NewRegistry(), lock.NewManager(), printNotify)
}

func runCheckout(cmd *cobra.Command, args []string) error {
	repo := strings.TrimPrefix(args[0], "file://")
	dest := "."
	if len(args) > 1 {
		dest = args[1]
	}

	local, err := ra.OpenLocal(repo)
	if err != nil {
		return err
	}
	session := ra.NewGuard(local)
	defer session.Close()

	c, err := ops.Checkout(context.Background(), session, local.URL(), dest, lock.NewManager(), printNotify)
	if err != nil {
		return err
	}
	defer c.Close()

	_, revision, err := c.DB.Info()
	if err != nil {
		return err
	}
	fmt.Printf("Checked out revision %d.\n", revision)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	c, err := openWC(target)
	if err != nil {
		return err
	}
	defer c.Close()

	relPath, err := c.RelPath(target)
	if err != nil {
		return err
	}
	walker := status.NewWalker(c.DB, c.WorkDir, c.Ignore)
	results, err := walker.Walk(context.Background(), relPath)
	if err != nil {
		return err
	}
	for _, st := range results {
		if st.Code == status.StatusNormal && !st.Conflicted && !st.PropsModified {
			continue
		}
		line := statusLetter(st.Code)
		if st.Conflicted {
			line = "C"
		}
		fmt.Printf("%-2s %s\n", line, st.RelPath)
	}
	return nil
}

func statusLetter(code status.Code) string {
	switch code {
	case status.StatusAdded:
		return "A"
	case status.StatusReplaced:
		return "R"
	case status.StatusDeleted, status.StatusDeletedViaMove:
		return "D"
	case status.StatusModified:
		return "M"
	case status.StatusMissing:
		return "!"
	case status.StatusUnversioned:
		return "?"
	case status.StatusObstructed:
		return "~"
	case status.StatusExcluded, status.StatusServerExcluded, status.StatusNotPresent:
		return "X"
	case status.StatusIncomplete:
		return "I"
	default:
		return " "
	}
}

func runAdd(cmd *cobra.Command, args []string) error {
	c, err := openWC(args[0])
	if err != nil {
		return err
	}
	defer c.Close()
	return ops.Add(context.Background(), c, args, ops.AddOpts{NoIgnore: addNoIgnore})
}

func runRm(cmd *cobra.Command, args []string) error {
	c, err := openWC(args[0])
	if err != nil {
		return err
	}
	defer c.Close()
	return ops.Delete(context.Background(), c, args, ops.DeleteOpts{
		Force:     rmForce,
		KeepLocal: rmKeepLocal,
		DryRun:    rmDryRun,
	})
}

func runCp(cmd *cobra.Command, args []string) error {
	c, err := openWC(args[0])
	if err != nil {
		return err
	}
	defer c.Close()
	return ops.Copy(context.Background(), c, args[0], args[1])
}

func runMv(cmd *cobra.Command, args []string) error {
	c, err := openWC(args[0])
	if err != nil {
		return err
	}
	defer c.Close()
	return ops.Move(context.Background(), c, args[0], args[1])
}

func runRevert(cmd *cobra.Command, args []string) error {
	c, err := openWC(args[0])
	if err != nil {
		return err
	}
	defer c.Close()
	return ops.Revert(context.Background(), c, args, ops.RevertOpts{Recursive: revertRec})
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	// Opening runs any pending upgrade before the store is used.
	c, err := openWC(target)
	if err != nil {
		return err
	}
	defer c.Close()
	fmt.Printf("Working copy at format %d.\n", format.Current)
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	c, err := openWC(target)
	if err != nil {
		return err
	}
	defer c.Close()

	url, revision, err := c.DB.Info()
	if err != nil {
		return err
	}
	fmt.Printf("Working copy root: %s\n", c.WorkDir)
	fmt.Printf("Repository: %s\n", url)
	fmt.Printf("Base revision: %d\n", revision)

	relPath, err := c.RelPath(target)
	if err != nil {
		return err
	}
	layers, err := c.DB.ReadLayers(relPath)
	if err != nil {
		return err
	}
	for _, l := range layers {
		line := fmt.Sprintf("  depth %d: %s %s r%d", l.OpDepth, l.Kind, l.Presence, l.Revision)
		if l.MovedTo != "" {
			line += " moved-to=" + l.MovedTo
		}
		if l.MovedHere {
			line += " moved-here"
		}
		fmt.Println(line)
	}
	return nil
}

func runLog(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	c, err := openWC(target)
	if err != nil {
		return err
	}
	defer c.Close()

	url, revision, err := c.DB.Info()
	if err != nil {
		return err
	}
	local, err := ra.OpenLocal(strings.TrimPrefix(url, "file://"))
	if err != nil {
		return err
	}
	session := ra.NewGuard(local)
	defer session.Close()

	return session.Log(1, revision, func(e ra.LogEntry) error {
		fmt.Printf("r%d | %s | %s\n", e.Revision, e.Author, e.Message)
		return nil
	})
}
