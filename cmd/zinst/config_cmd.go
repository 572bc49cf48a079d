package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZebulonRouseFrantzich/zinst/internal/config"
)

func newConfigCmd(env *cliEnv, v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as Lua",
		Long: `Print the configuration after applying the config file, ZINST_*
environment variables and flags. The output is a valid config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context(), env, v)
			if err != nil {
				return err
			}
			fmt.Fprint(env.stdout, config.Generate(cfg))
			return nil
		},
	}
}
