package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/render"
	"inkwell/internal/repository"
	"inkwell/internal/service"
	"inkwell/internal/thread"

	"github.com/spf13/cobra"
)

// operator is the actor behind destructive console commands.
var operator = models.Authenticated{Name: "commentctl", Admin: true}

const excerptLen = 60

func (a *app) queueCmd() *cobra.Command {
	var page repository.Page
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List comments awaiting moderation, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(env *Env) error {
				res, err := env.Comments.ModerationQueue(cmd.Context(), page)
				if err != nil {
					return err
				}
				return a.printPage(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().IntVar(&page.Limit, "limit", service.DefaultPageSize, "Page size")
	cmd.Flags().IntVar(&page.Offset, "offset", 0, "Rows to skip")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var (
		page           repository.Page
		status         string
		postID, userID uint
		since          time.Duration
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List comments by status, post, author or age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := repository.CommentFilter{
				Status: models.CommentStatus(status),
				PostID: postID,
				UserID: userID,
			}
			if since > 0 {
				from := time.Now().Add(-since)
				filter.From = &from
			}
			return a.withEnv(cmd, func(env *Env) error {
				res, err := env.Comments.List(cmd.Context(), filter, page)
				if err != nil {
					return err
				}
				return a.printPage(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending, approved or spam")
	cmd.Flags().UintVar(&postID, "post", 0, "Only comments on this post")
	cmd.Flags().UintVar(&userID, "user", 0, "Only comments by this user")
	cmd.Flags().DurationVar(&since, "since", 0, "Only comments newer than this, e.g. 24h")
	cmd.Flags().IntVar(&page.Limit, "limit", service.DefaultPageSize, "Page size")
	cmd.Flags().IntVar(&page.Offset, "offset", 0, "Rows to skip")
	return cmd
}

type moderateFunc func(*service.CommentService, context.Context, uint) (*models.Comment, error)

func (a *app) moderateCmd(use, short string, action moderateFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <comment-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return a.withEnv(cmd, func(env *Env) error {
				for _, id := range ids {
					c, err := action(env.Comments, cmd.Context(), id)
					if err != nil {
						return fmt.Errorf("comment %d: %w", id, err)
					}
					if a.json {
						if err := writeJSON(cmd.OutOrStdout(), c); err != nil {
							return err
						}
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "comment %d is now %s\n", c.ID, c.Status)
				}
				return nil
			})
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <comment-id>",
		Short: "Delete a comment and all of its replies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withEnv(cmd, func(env *Env) error {
				res, err := env.Comments.Delete(cmd.Context(), operator, id)
				if err != nil {
					return err
				}
				if a.json {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d comment(s); post %d now shows %d\n",
					res.RemovedCount, res.PostID, res.CommentCount)
				return nil
			})
		},
	}
}

func (a *app) threadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "thread <post-id>",
		Short: "Show the approved comments of a post as readers see them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withEnv(cmd, func(env *Env) error {
				forest, err := env.Comments.Thread(cmd.Context(), postID)
				if err != nil {
					return err
				}
				if a.json {
					return writeJSON(cmd.OutOrStdout(), forest)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d comment(s)\n", thread.Count(forest))
				printForest(cmd.OutOrStdout(), forest)
				return nil
			})
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize comments by status and recency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(env *Env) error {
				st, err := env.Comments.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if a.json {
					return writeJSON(cmd.OutOrStdout(), st)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, row := range []struct {
					label string
					n     int64
				}{
					{"total", st.Total},
					{"approved", st.Approved},
					{"pending", st.Pending},
					{"spam", st.Spam},
					{"today", st.Today},
					{"this week", st.Week},
					{"this month", st.Month},
				} {
					fmt.Fprintf(w, "%s\t%d\n", row.label, row.n)
				}
				return w.Flush()
			})
		},
	}
}

func (a *app) resyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resync <post-id>...",
		Short: "Recount approved comments and repair comment_count",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return a.withEnv(cmd, func(env *Env) error {
				for _, id := range ids {
					n, err := env.Comments.Resync(cmd.Context(), id)
					if err != nil {
						return fmt.Errorf("post %d: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "post %d: %d approved comment(s)\n", id, n)
				}
				return nil
			})
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	var postID uint
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream comment events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(env *Env) error {
				if env.Events == nil {
					return errors.New("watch needs REDIS_URL")
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				channel := notifications.EventsChannel
				if postID != 0 {
					channel = notifications.PostChannel(postID)
				}
				out := cmd.OutOrStdout()
				err := env.Events.Subscribe(ctx, func(m notifications.Message) {
					if a.json {
						_ = writeJSON(out, m)
						return
					}
					fmt.Fprintf(out, "%s %-8s comment=%d post=%d status=%s author=%q\n",
						m.At.Format(time.RFC3339), m.Event, m.CommentID, m.PostID, m.Status, m.Author)
				}, channel)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "watching %s\n", channel)
				<-ctx.Done()
				return nil
			})
		},
	}
	cmd.Flags().UintVar(&postID, "post", 0, "Only events for this post")
	return cmd
}

func (a *app) printPage(w io.Writer, res *service.PageResult) error {
	if a.json {
		return writeJSON(w, res)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPOST\tSTATUS\tAUTHOR\tCREATED\tCONTENT")
	for _, c := range res.Items {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
			c.ID, c.PostID, c.Status, c.AuthorName, c.CreatedAt.Format(time.DateTime), excerpt(c.Content))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "showing %d of %d\n", len(res.Items), res.Total)
	return nil
}

func printForest(w io.Writer, forest []*thread.Node) {
	type frame struct {
		node  *thread.Node
		depth int
	}
	stack := make([]frame, 0, len(forest))
	for i := len(forest) - 1; i >= 0; i-- {
		stack = append(stack, frame{forest[i], 0})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		c := f.node.Comment
		fmt.Fprintf(w, "%s#%d %s: %s\n", strings.Repeat("  ", f.depth), c.ID, c.AuthorName, excerpt(c.Content))
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.node.Children[i], f.depth + 1})
		}
	}
}

func excerpt(content string) string {
	text := strings.Join(strings.Fields(render.Plain(content)), " ")
	if r := []rune(text); len(r) > excerptLen {
		return string(r[:excerptLen-1]) + "…"
	}
	return text
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

func parseIDs(args []string) ([]uint, error) {
	ids := make([]uint, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
