package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meigma/unitypackage"
)

type packFlags struct {
	project string
	baseDir string
	assets  string
	output  string
	level   int
}

func newPackCmd(g *globals) *cobra.Command {
	f := &packFlags{}
	cmd := &cobra.Command{
		Use:   "pack -p PROJECT -o OUTPUT [META...]",
		Short: "Pack project assets into a Unity package",
		Long: `Pack project assets into a Unity package.

Without META arguments every .meta file under PROJECT/ASSETS is packed and
recorded relative to ASSETS under BASEDIR, which defaults to ASSETS. With
META arguments only those project-relative meta files are packed, recorded
under BASEDIR.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bars, progress := g.progress(cmd.ErrOrStderr())
			defer bars.Finish()

			opts := []unitypackage.PackOption{
				unitypackage.PackWithLogger(g.logger),
				unitypackage.PackWithProgress(progress),
				unitypackage.PackWithCompressionLevel(f.level),
			}
			var (
				stats *unitypackage.PackStats
				err   error
			)
			if len(args) == 0 {
				baseDir := f.baseDir
				if baseDir == "" {
					baseDir = f.assets
				}
				stats, err = unitypackage.Pack(cmd.Context(), f.project, baseDir, f.assets, f.output, opts...)
			} else {
				stats, err = unitypackage.PackFromMetaList(cmd.Context(), f.project, f.baseDir, args, f.output, opts...)
			}
			bars.Finish()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "packed %d assets and %d folders (%d bytes) into %s\n%s\n",
				stats.Assets, stats.Folders, stats.TotalBytes, f.output, stats.Digest)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.project, "project", "p", "", "Unity project root")
	flags.StringVarP(&f.baseDir, "base-dir", "b", "", "Path the packed assets are recorded under")
	flags.StringVarP(&f.assets, "assets", "a", "Assets", "Directory under the project root to pack")
	flags.StringVarP(&f.output, "output", "o", "", "Output archive path")
	flags.IntVar(&f.level, "level", -1, "gzip compression level (-1 for default, 0-9)")
	_ = cmd.MarkFlagRequired("project") //nolint:errcheck // flag is defined above
	_ = cmd.MarkFlagRequired("output")  //nolint:errcheck // flag is defined above
	return cmd
}

func newExtractCmd(g *globals) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "extract ARCHIVE OUTPUT",
		Short: "Extract a Unity package into a project directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bars, progress := g.progress(cmd.ErrOrStderr())
			defer bars.Finish()

			stats, err := unitypackage.Extract(cmd.Context(), args[0], args[1],
				unitypackage.ExtractWithOverwrite(overwrite),
				unitypackage.ExtractWithLogger(g.logger),
				unitypackage.ExtractWithProgress(progress),
			)
			bars.Finish()
			if stats != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "placed %d assets and %d folders, skipped %d, malformed %d\n",
					stats.Placed, stats.Folders, stats.Skipped, len(stats.Malformed))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace assets that already exist")
	return cmd
}

func newListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list ARCHIVE",
		Short: "List the assets in a Unity package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assets, err := unitypackage.List(cmd.Context(), args[0], unitypackage.ListWithLogger(g.logger))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "GUID\tSIZE\tPATHNAME")
			for _, a := range assets {
				size := fmt.Sprint(a.Size)
				switch {
				case a.Err != nil:
					size = "malformed"
				case a.FolderAsset:
					size = "folder"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", a.GUID, size, a.Pathname)
			}
			return tw.Flush()
		},
	}
}
