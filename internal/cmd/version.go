package cmd

import (
	"runtime"

	"github.com/guiyumin/streamdl/internal/core/version"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolP("short", "s", false, "Print only the version")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		short, err := cmd.Flags().GetBool("short")
		if err != nil {
			return err
		}
		if short {
			cmd.Println(version.Version)
			return nil
		}
		cmd.Printf("streamdl %s %s/%s\n", version.Version, runtime.GOOS, runtime.GOARCH)
		return nil
	},
}
