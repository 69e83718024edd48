// Package cmd implements the streamdl command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/guiyumin/streamdl/internal/core/config"
	"github.com/guiyumin/streamdl/internal/core/logging"
	cc "github.com/ivanpirog/coloredcobra"
	"github.com/spf13/cobra"
)

// cfg is loaded once flags are parsed, before any subcommand runs.
var cfg *config.Config

func init() {
	rootCmd.SetOut(os.Stdout)

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	config.BindFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	rootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON")
	config.BindFlag("log.json", rootCmd.PersistentFlags().Lookup("log-json"))
}

var rootCmd = &cobra.Command{
	Use:   "streamdl",
	Short: "Download or convert online videos through a small web front-end",
	Long: "streamdl resolves a video page with yt-dlp and hands the media to the browser,\n" +
		"either by redirecting to it or by streaming it through the server, optionally\n" +
		"converted with ffmpeg.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Setup(cfg.Log)
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if os.Getenv("NO_COLOR") == "" {
		cc.Init(&cc.Config{
			RootCmd:       rootCmd,
			Headings:      cc.HiCyan + cc.Bold + cc.Underline,
			Commands:      cc.HiYellow + cc.Bold,
			Example:       cc.Italic,
			ExecName:      cc.Bold,
			Flags:         cc.Bold,
			FlagsDataType: cc.Italic + cc.HiBlue,
		})
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
