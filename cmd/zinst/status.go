package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZebulonRouseFrantzich/zinst/internal/lifecycle"
)

func newStatusCmd(env *cliEnv, v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the last run left a fail marker",
		Long: `Exit 0 when no fail marker exists, 1 when the last run failed.
Suitable for monitoring checks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context(), env, v)
			if err != nil {
				return err
			}

			info, err := lifecycle.ReadMarker(cfg.FailMarker)
			if err != nil {
				return err
			}
			if info == nil {
				fmt.Fprintf(env.stdout, "ok: no fail marker at %s\n", cfg.FailMarker)
				return nil
			}

			fmt.Fprintf(env.stdout, "failed: %s\n", cfg.FailMarker)
			fmt.Fprintf(env.stdout, "  code: %d\n", info.Code)
			if info.RunID != "" {
				fmt.Fprintf(env.stdout, "  run:  %s\n", info.RunID)
			}
			if !info.Timestamp.IsZero() {
				fmt.Fprintf(env.stdout, "  at:   %s\n", info.Timestamp.Format(time.RFC3339))
			}
			return &exitError{code: 1}
		},
	}
}
