package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dangerousdave/dave/internal/cli/output"
	"github.com/dangerousdave/dave/internal/diskusage"
	"github.com/spf13/cobra"
)

// DiskUsageOptions holds options for the du command.
type DiskUsageOptions struct {
	Limit   int
	Workers int
}

// NewDiskUsageCommand creates the du command.
func NewDiskUsageCommand() *cobra.Command {
	opts := &DiskUsageOptions{}
	cmd := &cobra.Command{
		Use:   "du [root]",
		Short: "Show the largest directories under a root",
		Long: `Walk a directory tree once and report the directories taking the most
space, sizes including everything below them. Symlinks are not followed and
unreadable entries are skipped. This command never changes anything.`,
		Example: `  dave du ~/Downloads
  dave du / --limit 50 -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runDiskUsage(cmd, root, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "Number of directories to show (default from du.limit)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Subtrees walked in parallel (default from du.workers)")
	return cmd
}

// DiskUsageOutput is the JSON output for the du command.
type DiskUsageOutput struct {
	*diskusage.Report
	Total int64             `json:"total"`
	Top   []diskusage.Entry `json:"top"`
}

func runDiskUsage(cmd *cobra.Command, root string, opts *DiskUsageOptions) error {
	cmdCtx := NewCommandContextReadOnly(cmd)
	r := cmdCtx.Renderer

	limit := opts.Limit
	if limit <= 0 {
		limit = cmdCtx.Cfg.Disk.Limit
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = cmdCtx.Cfg.Disk.Workers
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	var rep *diskusage.Report
	err := r.Spin(cmd.Context(), "Scanning "+root, func(ctx context.Context) error {
		var err error
		rep, err = diskusage.Scan(ctx, root, diskusage.Options{Workers: workers})
		return err
	})
	if err != nil {
		return err
	}
	top := rep.Top(limit)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(DiskUsageOutput{Report: rep, Total: rep.Total(), Top: top})
	}

	r.Header(2, fmt.Sprintf("Largest directories under %s", rep.Root))
	rows := make([][]string, 0, len(top))
	for i, e := range top {
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), diskusage.FormatSize(e.Size), e.Path})
	}
	r.Table([]string{"#", "Size", "Directory"}, rows)
	r.Println("")
	r.KeyValue("Total", diskusage.FormatSize(rep.Total()))
	r.KeyValue("Files", fmt.Sprintf("%d in %d directories", rep.Files, rep.Dirs))
	if rep.Skipped > 0 {
		r.Warning(fmt.Sprintf("%d unreadable entries skipped", rep.Skipped))
		for _, p := range rep.SkippedPaths {
			r.Muted("  " + p)
		}
	}
	return nil
}
