// Package cli implements commentctl, the moderation console for the comment
// subsystem.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/server"
	"inkwell/internal/service"

	"github.com/spf13/cobra"
)

// Env is what a command runs against.
type Env struct {
	Comments *service.CommentService
	// Events is nil when Redis is not configured.
	Events *notifications.RedisNotifier
	Close  func() error
}

// Opener builds an Env for one command invocation.
type Opener func(ctx context.Context) (*Env, error)

// app holds the state shared by one command tree.
type app struct {
	open Opener
	json bool
}

// NewRootCmd constructs the root command with all subcommands attached.
func NewRootCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commentctl",
		Short: "commentctl - moderate and inspect blog comments",
		Long:  "commentctl works the moderation queue, removes comment threads and repairs post comment counters.",
	}
	cmd.SilenceUsage = true
	a := &app{open: open}
	cmd.PersistentFlags().BoolVar(&a.json, "json", false, "Print results as JSON")

	cmd.AddCommand(a.queueCmd())
	cmd.AddCommand(a.listCmd())
	cmd.AddCommand(a.moderateCmd("approve", "Approve pending comments", (*service.CommentService).Approve))
	cmd.AddCommand(a.moderateCmd("reject", "Reject pending comments as spam", (*service.CommentService).Reject))
	cmd.AddCommand(a.moderateCmd("spam", "Withdraw approved comments as spam", (*service.CommentService).MarkSpam))
	cmd.AddCommand(a.deleteCmd())
	cmd.AddCommand(a.threadCmd())
	cmd.AddCommand(a.statsCmd())
	cmd.AddCommand(a.resyncCmd())
	cmd.AddCommand(a.watchCmd())
	return cmd
}

// Execute runs the CLI entrypoint.
func Execute() {
	if err := NewRootCmd(DefaultOpener).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// DefaultOpener connects using the process configuration.
func DefaultOpener(ctx context.Context) (*Env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	observability.ConfigureLogger(cfg.Env, cfg.LogLevel)

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	comments, _, err := server.NewCommentService(cfg, db, rdb)
	if err != nil {
		return nil, err
	}

	env := &Env{Comments: comments}
	if rdb != nil {
		env.Events = notifications.NewRedisNotifier(rdb)
	}
	env.Close = func() error {
		var errs []error
		if sqlDB, err := db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
		if rdb != nil {
			errs = append(errs, rdb.Close())
		}
		return errors.Join(errs...)
	}
	return env, nil
}

// withEnv opens an Env around fn and closes it afterwards.
func (a *app) withEnv(cmd *cobra.Command, fn func(env *Env) error) error {
	env, err := a.open(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if env.Close != nil {
			if cerr := env.Close(); cerr != nil {
				observability.Logger.Warn("closing connections", "error", cerr)
			}
		}
	}()
	return fn(env)
}
