package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/idebroy/hnsw"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show index parameters and per-layer statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := openGallery(cmd)
		if err != nil {
			return err
		}
		defer g.Close()

		s := g.Index().Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "file:        %s\n", g.IndexFile())
		fmt.Fprintf(out, "nodes:       %d\n", s.Nodes)
		fmt.Fprintf(out, "dimension:   %d\n", s.Dimension)
		fmt.Fprintf(out, "metric:      %s\n", s.Metric)
		fmt.Fprintf(out, "m:           %d (mMax %d, mMax0 %d)\n", s.M, s.MMax, s.MMax0)
		fmt.Fprintf(out, "ef:          %d\n", s.EfConst)
		fmt.Fprintf(out, "mL:          %.4f\n", s.ML)
		if s.Nodes == 0 {
			return nil
		}
		fmt.Fprintf(out, "max level:   %d\n", s.MaxLevel)
		fmt.Fprintf(out, "entry point: %d\n\n", s.EntryPoint)

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "LAYER\tNODES\tEDGES\tMAX DEGREE\tAVG DEGREE")
		for lvl := len(s.Layers) - 1; lvl >= 0; lvl-- {
			l := s.Layers[lvl]
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%.2f\n", lvl, l.Nodes, l.Edges, l.MaxDegree, l.AvgDegree)
		}
		return tw.Flush()
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the index graph as an Arrow IPC stream",
	Long: `Write one row per indexed vector (id, level, vector, layer-0 neighbors)
as an Arrow IPC stream, readable by pyarrow, DuckDB or any Arrow tool.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		g, err := openGallery(cmd)
		if err != nil {
			return err
		}
		defer g.Close()

		rec, err := g.Index().ArrowRecord(nil)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		defer rec.Release()

		f, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		defer func() {
			if cerr := f.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("export: %w", cerr)
			}
		}()

		if err := hnsw.WriteArrow(f, rec, nil); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows to %s\n", rec.NumRows(), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(exportCmd)
}
