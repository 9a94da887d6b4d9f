package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"linedash-backend/internal/app"
	"linedash-backend/internal/config"
)

type cli struct {
	configFile string
	out        io.Writer
	app        *app.App
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dashctl",
		Short:         "Production line dashboard operator tool",
		Long:          "Inspect the configured production table, print summaries, export records and manage local accounts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open()
		},
	}
	rootCmd.SetOut(c.out)
	rootCmd.PersistentFlags().StringVar(&c.configFile, "config", os.Getenv("LINEDASH_CONFIG"), "Path to config file")

	rootCmd.AddCommand(c.tablesCmd(), c.inferCmd(), c.summaryCmd(), c.exportCmd(), c.usersCmd())
	return rootCmd
}

func (c *cli) open() error {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(cfg, cfg.NewLogger(os.Stderr))
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

// execute runs one command line and releases whatever it opened.
func execute(ctx context.Context, out io.Writer, args []string) error {
	c := &cli{out: out}
	cmd := newRootCmd(c)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if c.app != nil {
		err = errors.Join(err, c.app.Close())
	}
	return err
}

func main() {
	if err := execute(context.Background(), os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
