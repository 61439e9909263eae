package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/imyousuf/codecaliper/internal/config"
)

func newInitCmd() *cobra.Command {
	var (
		interactive bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a .codecaliper.yaml config file",
		Long: `Write a CodeCaliper configuration file to the current directory
(or to the path given with --config).

With --interactive, a wizard asks for the root, dialects, exclusions,
parallelism and report settings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}

			cfg := config.Default()
			if interactive {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("get working directory: %w", err)
				}
				ok, err := runInteractiveInit(cmd, cwd, cfg)
				if err != nil || !ok {
					return err
				}
			}

			if err := config.WriteConfig(cfg, path); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s\n", path)
			printNextSteps(out)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "run the setup wizard")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}

// configPath is the file init writes: --config if given, else the default
// file name in the working directory.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigFile + "." + config.DefaultConfigType
}

func printNextSteps(out io.Writer) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Edit .codecaliper.yaml to adjust include/exclude patterns")
	fmt.Fprintln(out, "  2. Run 'codecaliper analyze' to measure the source tree")
	fmt.Fprintln(out, "  3. Run 'codecaliper watch' to re-measure on every change")
}
