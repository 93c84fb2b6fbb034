package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jllopis/skillsloop/pkg/config"
	"github.com/jllopis/skillsloop/pkg/core"
	"github.com/jllopis/skillsloop/pkg/skills"
	"github.com/jllopis/skillsloop/pkg/telemetry"
)

func runChat(ctx context.Context, flags globalFlags, in io.Reader, out io.Writer) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.logger.Warn("skillsloop.shutdown.error", slog.String("error", cerr.Error()))
		}
	}()

	if flags.watch && flags.configPath != "" {
		reloader, rerr := config.NewReloader(flags.configArgs(), config.WithReloadLogger(a.logger))
		if rerr != nil {
			return rerr
		}
		reloader.OnChange(func(prev, next *config.Config) {
			if prev.Log != next.Log {
				telemetry.ConfigureSlog(os.Stderr, next.Log.Level, next.Log.Format)
				a.logger.Info("skillsloop.logging.reconfigured",
					slog.String("level", next.Log.Level),
					slog.String("format", next.Log.Format),
				)
			}
		})
		reloader.Start(ctx)
		defer reloader.Stop()
	}

	catalog, err := a.store.ListMetadata(ctx)
	if err != nil {
		return err
	}
	printBanner(out, cfg.Workspace.Dir, len(catalog), a.tools != nil)
	return repl(ctx, in, out, a.orch)
}

func runAsk(ctx context.Context, flags globalFlags, prompt string, out io.Writer) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	answer, runErr := a.orch.Chat(ctx, prompt, func(step int, action core.Action) {
		printStep(os.Stderr, step, action)
	})
	closeErr := a.Close()
	if runErr != nil {
		return runErr
	}
	fmt.Fprintln(out, answer)
	return closeErr
}

func runSkills(ctx context.Context, flags globalFlags, out io.Writer) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	store := skills.NewFSStore(cfg.SkillsRoot())
	catalog, err := store.ListMetadata(ctx)
	if err != nil {
		return err
	}
	if len(catalog) == 0 {
		fmt.Fprintf(out, "no skills found under %s\n", cfg.SkillsRoot())
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tDESCRIPTION")
	for _, d := range catalog {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, d.Version, d.Description)
	}
	return tw.Flush()
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
