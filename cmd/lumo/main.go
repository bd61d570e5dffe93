package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vsariola/lumo/config"
	"github.com/vsariola/lumo/version"
)

type globals struct {
	configPath string
	logLevel   string
	cfg        config.Config
	log        *logrus.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "lumo",
		Short: "Real-time light show player",
		Long: `lumo plays light shows: timelines of audio clips, automation curves,
note patterns and node graphs whose colors are sent to LED strips and DMX
fixtures in sync with the music.`,
		Version:       version.VersionOrRevision(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup()
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", config.DefaultPath, "configuration file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level, overrides the configuration")
	root.AddCommand(
		newNewCmd(g),
		newPlayCmd(g),
		newShellCmd(g),
		newRenderCmd(g),
		newRecoverCmd(g),
		newVersionCmd(),
	)
	return root
}

func (g *globals) setup() error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	g.cfg, g.log = cfg, log
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
