package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newResolveCmd(rt *runtime) *cobra.Command {
	var maps []string

	cmd := &cobra.Command{
		Use:   "resolve --map SRC=DST [--map SRC=DST ...] NUMBER...",
		Short: "Resolve numbers against a one-off redirection table",
		Example: `  maptel resolve --map 100=200 --map 200=300 100 555
  300
  555`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer rt.finish(cmd.Context(), &err)

			reg, err := rt.registry(nil)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			h := reg.CreateTable(ctx)

			for _, m := range maps {
				src, dst, ok := strings.Cut(m, "=")
				if !ok {
					return fmt.Errorf("--map %q: expected SRC=DST", m)
				}
				if err := reg.Insert(ctx, h, strings.TrimSpace(src), strings.TrimSpace(dst)); err != nil {
					return fmt.Errorf("--map %q: %w", m, err)
				}
			}

			for _, number := range args {
				out, err := reg.Transform(ctx, h, number)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&maps, "map", "m", nil, "redirect SRC to DST (repeatable)")
	return cmd
}
