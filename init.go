package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/config"
)

// configTemplate is the commented starter written by `quarry init`. Values
// shown are the defaults; uncommenting a line overrides it.
const configTemplate = `# quarry project configuration
#
# output_dir: .quarry
# workers: 0            # 0 means one per CPU
# max_file_size: 1048576
# debounce_ms: 400
# log_level: info
#
# ignore_dirs:
#   - generated
# ignore_files:
#   - schema.json
`

// newInitCmd implements `quarry init`, which seeds a .quarry.yml at the scan
// root. An existing file is never overwritten.
func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a starter .quarry.yml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			root, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolving root: %w", err)
			}

			path := filepath.Join(root, config.FileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
