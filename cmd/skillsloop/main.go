// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command skillsloop is an interactive front end for the skills loop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jllopis/skillsloop/pkg/errors"
)

var version = "dev"

type globalFlags struct {
	configPath string
	profile    string
	dotenv     string
	sets       []string
	watch      bool
}

// configArgs renders the flags in the form config.LoadWithCLI expects.
func (g globalFlags) configArgs() []string {
	var args []string
	if g.configPath != "" {
		args = append(args, "--config", g.configPath)
	}
	if g.profile != "" {
		args = append(args, "--profile", g.profile)
	}
	if g.dotenv != "" {
		args = append(args, "--dotenv", g.dotenv)
	}
	for _, s := range g.sets {
		args = append(args, "--set", s)
	}
	return args
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "skillsloop",
		Short:         "Agentic decide, execute and observe loop over local skills and MCP tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), flags, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.profile, "profile", "", "config profile loaded next to --config (config.<profile>.yaml)")
	root.PersistentFlags().StringVar(&flags.dotenv, "dotenv", "", "path to a .env file (default .env)")
	root.PersistentFlags().StringArrayVar(&flags.sets, "set", nil, "override a config key (key=value), repeatable")

	chat := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), flags, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	chat.Flags().BoolVar(&flags.watch, "watch", false, "reload log settings when the config file changes")

	ask := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Run a single session and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), flags, joinArgs(args), cmd.OutOrStdout())
		},
	}

	list := &cobra.Command{
		Use:   "skills",
		Short: "List the skills found in the workspace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSkills(cmd.Context(), flags, cmd.OutOrStdout())
		},
	}

	ver := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "skillsloop", version)
		},
	}

	root.AddCommand(chat, ask, list, ver)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, styles.errorLabel.Render("Error:"), err)
		os.Exit(errors.AsAgentError(err).ExitCode())
	}
}
