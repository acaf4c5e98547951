package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/idebroy/hnsw/imagevec"
)

var addCmd = &cobra.Command{
	Use:   "add <image>",
	Short: "Store a labelled image and index it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")
		if label == "" {
			return fmt.Errorf("--label is required")
		}

		img, err := imagevec.Load(args[0])
		if err != nil {
			return err
		}

		g, err := openGallery(cmd)
		if err != nil {
			return err
		}
		defer g.Close()

		rec, err := g.Add(cmd.Context(), img, label)
		if err != nil {
			return fmt.Errorf("add image: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %q as id %d\n", rec.Label, rec.ID)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <image>",
	Short: "Find the stored images most similar to an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("k")

		img, err := imagevec.Load(args[0])
		if err != nil {
			return err
		}

		g, err := openGallery(cmd)
		if err != nil {
			return err
		}
		defer g.Close()

		results, err := g.FindSimilar(cmd.Context(), img, k)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Found %d result(s):\n\n", len(results))
		for i, rec := range results {
			printRecord(cmd, g, i+1, rec)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := openGallery(cmd)
		if err != nil {
			return err
		}
		defer g.Close()

		all, err := g.All(cmd.Context())
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		if len(all) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No records.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d record(s):\n\n", len(all))
		for _, rec := range all {
			printRecord(cmd, g, 0, rec)
		}
		return nil
	},
}

var labelCmd = &cobra.Command{
	Use:   "label <id> <label>",
	Short: "Change the label of a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		g, err := openGallery(cmd)
		if err != nil {
			return err
		}
		defer g.Close()

		if err := g.UpdateLabel(cmd.Context(), id, args[1]); err != nil {
			return fmt.Errorf("update label: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Relabelled %d as %q\n", id, args[1])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a record and its image",
	Long: `Delete a record and its stored image.

The vector stays in the index, which does not support deletion, but it is
no longer returned by search.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		g, err := openGallery(cmd)
		if err != nil {
			return err
		}
		defer g.Close()

		if err := g.Delete(cmd.Context(), id); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d\n", id)
		return nil
	},
}

func parseID(s string) (int32, error) {
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return int32(id), nil
}

func init() {
	addCmd.Flags().StringP("label", "l", "", "label for the image")
	searchCmd.Flags().IntP("k", "k", 3, "number of results")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(deleteCmd)
}
