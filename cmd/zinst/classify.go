package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/zinst/internal/artifact"
)

func newClassifyCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <path>",
		Short: "Show which install strategy a local file would get",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			st, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if !st.Mode().IsRegular() {
				return fmt.Errorf("%s is not a regular file", path)
			}

			c := artifact.NewClassifier(artifact.NewFileSniffer(env.runner), nil).
				Explain(cmd.Context(), filepath.Base(path), path)

			mime := c.MIME
			if mime == "" {
				mime = "-"
			}
			fmt.Fprintf(env.stdout, "kind: %s\nrule: %s\nmime: %s\n", c.Kind, c.Rule, mime)
			return nil
		},
	}
}
