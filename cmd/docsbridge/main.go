// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command docsbridge is a stdio tool server exposing library documentation
// lookups as resolve-library-id and query-docs.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jllopis/skillsloop/pkg/docs"
	"github.com/jllopis/skillsloop/pkg/mcp"
)

var version = "dev"

type options struct {
	protocol    string
	catalogPath string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "docsbridge",
		Short:         "Serve library documentation tools over stdio",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.protocol, "protocol", "line", "wire protocol: line or mcp")
	cmd.Flags().StringVar(&opts.catalogPath, "catalog", "", "YAML catalog file (defaults to the built-in catalog)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")
	return cmd
}

func run(ctx context.Context, opts options, in io.Reader, out, errOut io.Writer) error {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	// stdout carries the protocol; logs go to stderr.
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	catalog := docs.DefaultCatalog()
	if opts.catalogPath != "" {
		c, err := docs.LoadCatalog(opts.catalogPath)
		if err != nil {
			return err
		}
		catalog = c
	}

	srv := newServer(catalog)
	srv.SetLogger(logger)
	logger.Debug("docsbridge.start", slog.String("protocol", opts.protocol))

	switch opts.protocol {
	case "line":
		return srv.ServeLines(ctx, in, out)
	case "mcp":
		return srv.ServeStdio()
	default:
		return fmt.Errorf("unsupported protocol %q", opts.protocol)
	}
}

func newServer(catalog *docs.Catalog) *mcp.Server {
	srv := mcp.NewServer("docsbridge", version)
	srv.RegisterTool("resolve-library-id",
		"Resolve a library name to a documentation library id.",
		[]mcp.Param{{Name: "libraryName", Description: "Library name to look up", Required: true}},
		func(_ context.Context, args map[string]any) (any, error) {
			name, _ := args["libraryName"].(string)
			return catalog.Resolve(name)
		},
	)
	srv.RegisterTool("query-docs",
		"Query documentation for a resolved library id.",
		[]mcp.Param{
			{Name: "libraryId", Description: "Id returned by resolve-library-id", Required: true},
			{Name: "query", Description: "What to look for"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			id, _ := args["libraryId"].(string)
			query, _ := args["query"].(string)
			return catalog.Query(id, query)
		},
	)
	return srv
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, "docsbridge:", err)
		os.Exit(1)
	}
}
