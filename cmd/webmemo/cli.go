package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/webmemo/internal/app"
	"github.com/hpungsan/webmemo/internal/capture"
	"github.com/hpungsan/webmemo/internal/chat"
	"github.com/hpungsan/webmemo/internal/errors"
	"github.com/hpungsan/webmemo/internal/events"
	"github.com/hpungsan/webmemo/internal/memo"
	"github.com/hpungsan/webmemo/internal/ops"
	"github.com/hpungsan/webmemo/internal/web"
)

// Stdin limits.
const (
	maxHTMLBytes     = 8 << 20
	maxQuestionBytes = 64 << 10
	maxKeyBytes      = 4 << 10
)

// newCLIApp creates the CLI application with all commands.
// a may be nil when only --help or --version will run.
func newCLIApp(a *app.App) *cli.App {
	cliApp := &cli.App{
		Name:    "webmemo",
		Usage:   "Capture web pages as tagged memos and chat with them",
		Version: Version,
		Commands: []*cli.Command{
			captureCmd(a),
			listCmd(a),
			showCmd(a),
			deleteCmd(a),
			retagCmd(a),
			tagsCmd(a),
			chatCmd(a),
			chatsCmd(a),
			keyCmd(a),
			backupCmd(a),
			restoreCmd(a),
			usageCmd(a),
			serveCmd(a),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// captureCmd creates the capture command.
func captureCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Capture a page fragment as a memo (reads HTML from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Required: true, Usage: "Page URL"},
			&cli.StringFlag{Name: "favicon", Usage: "Favicon URL (defaults to <origin>/favicon.ico)"},
			&cli.StringFlag{Name: "timestamp", Usage: "Capture time, RFC 3339 (defaults to now)"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("page HTML must be piped via stdin"))
			}
			html, err := readStdin(maxHTMLBytes)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			if html == "" {
				return outputError(errors.NewInvalidRequest("page HTML is required"))
			}

			input := capture.Input{
				URL:     c.String("url"),
				Favicon: c.String("favicon"),
				RawHTML: html,
			}
			if ts := c.String("timestamp"); ts != "" {
				t, err := time.Parse(time.RFC3339, ts)
				if err != nil {
					return outputError(errors.NewInvalidRequest("timestamp must be RFC 3339"))
				}
				input.Timestamp = t
			}

			m, err := a.Capture.Capture(c.Context, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(m)
		},
	}
}

// listOutput is the list command result.
type listOutput struct {
	Memos []memo.Brief `json:"memos"`
	Total int          `json:"total"`
}

// listCmd creates the list command.
func listCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List memos, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Only memos with this tag"},
		},
		Action: func(c *cli.Context) error {
			var (
				memos []memo.Memo
				err   error
			)
			if tag := c.String("tag"); tag != "" {
				memos, err = a.Store.FilterByTag(c.Context, tag)
			} else {
				memos, err = a.Store.ListMemos(c.Context)
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(listOutput{Memos: memo.Briefs(memos), Total: len(memos)})
		},
	}
}

// showCmd creates the show command.
func showCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one memo",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "narrative", Usage: "Print only the narrative text"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "memo id")
			if err != nil {
				return outputError(err)
			}
			m, err := a.Store.GetMemo(c.Context, id)
			if err != nil {
				return outputError(err)
			}
			if c.Bool("narrative") {
				_, err := fmt.Fprintln(os.Stdout, m.Narrative)
				return err
			}
			return outputJSON(m)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a memo",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "memo id")
			if err != nil {
				return outputError(err)
			}
			out, err := a.Store.DeleteMemo(c.Context, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// retagCmd creates the retag command.
func retagCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "retag",
		Usage:     "Move a memo to another tag",
		ArgsUsage: "<id> <tag>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return outputError(errors.NewInvalidRequest("usage: webmemo retag <id> <tag>"))
			}
			out, err := a.Retag(c.Context, c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// tagsCmd creates the tags command and its subcommands. Without a
// subcommand it prints the memo count per tag.
func tagsCmd(a *app.App) *cli.Command {
	counts := func(c *cli.Context) error {
		out, err := a.Store.TagCounts(c.Context)
		if err != nil {
			return outputError(err)
		}
		return outputJSON(map[string]any{"tags": out})
	}
	return &cli.Command{
		Name:   "tags",
		Usage:  "Manage the tag catalog",
		Action: counts,
		Subcommands: []*cli.Command{
			{
				Name:   "counts",
				Usage:  "Show the memo count per tag",
				Action: counts,
			},
			{
				Name:  "list",
				Usage: "List catalog tags",
				Action: func(c *cli.Context) error {
					tags, err := a.Store.ListTags(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"tags": tags})
				},
			},
			{
				Name:  "add",
				Usage: "Add a tag",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Tag name"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "What belongs under the tag"},
					&cli.StringFlag{Name: "color", Usage: "Palette color (random when empty)"},
					&cli.StringFlag{Name: "icon", Usage: "Icon name"},
				},
				Action: func(c *cli.Context) error {
					tag, err := a.Store.AddTag(c.Context, ops.AddTagInput{
						Name:        c.String("name"),
						Description: c.String("description"),
						Color:       c.String("color"),
						Icon:        c.String("icon"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(tag)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a tag; its memos become Untagged",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					name, err := requireArg(c, "tag name")
					if err != nil {
						return outputError(err)
					}
					out, err := a.Store.DeleteTag(c.Context, name)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(out)
				},
			},
		},
	}
}

// chatOutput is the chat command result.
type chatOutput struct {
	Reply     string         `json:"reply"`
	Citations []string       `json:"citations"`
	Memos     int            `json:"memos"`
	Cost      chat.Cost      `json:"cost"`
	Saved     *memo.ChatMeta `json:"saved,omitempty"`
}

// chatCmd creates the chat command. The question comes from the arguments
// or, when there are none, from stdin.
func chatCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "chat",
		Usage:     "Ask a question about the memos of one tag",
		ArgsUsage: "[question]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tag", Aliases: []string{"t"}, Required: true, Usage: "Tag whose memos ground the answer"},
			&cli.BoolFlag{Name: "raw", Usage: "Ground on captured source content instead of narratives"},
			&cli.BoolFlag{Name: "save", Usage: "Save the exchange as a chat"},
		},
		Action: func(c *cli.Context) error {
			question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if question == "" && stdinHasData() {
				q, err := readStdin(maxQuestionBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				question = q
			}
			if question == "" {
				return outputError(errors.NewInvalidRequest("question is required"))
			}

			g, err := a.Chat.Prepare(c.Context, c.String("tag"), c.Bool("raw"))
			if err != nil {
				return outputError(err)
			}
			conv := chat.NewConversation(g.Tag, g.SystemPrompt)
			reply, err := a.Chat.Ask(c.Context, conv, question)
			if err != nil {
				return outputError(err)
			}

			out := chatOutput{
				Reply:     reply,
				Citations: chat.Citations(reply),
				Memos:     g.MemoCount,
				Cost:      g.Cost,
			}
			if c.Bool("save") {
				saved, err := a.Store.SaveChat(c.Context, ops.SaveChatInput{Tag: conv.Tag, Messages: conv.Messages()})
				if err != nil {
					return outputError(err)
				}
				meta := saved.Meta()
				out.Saved = &meta
			}
			return outputJSON(out)
		},
	}
}

// chatsCmd creates the chats command and its subcommands.
func chatsCmd(a *app.App) *cli.Command {
	list := func(c *cli.Context) error {
		saved, err := a.Store.ListChats(c.Context, c.String("tag"))
		if err != nil {
			return outputError(err)
		}
		metas := make([]memo.ChatMeta, len(saved))
		for i := range saved {
			metas[i] = saved[i].Meta()
		}
		return outputJSON(map[string]any{"chats": metas, "total": len(metas)})
	}
	tagFlag := &cli.StringFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Only chats saved under this tag"}

	return &cli.Command{
		Name:   "chats",
		Usage:  "Manage saved chats",
		Flags:  []cli.Flag{tagFlag},
		Action: list,
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List saved chats, newest first",
				Flags:  []cli.Flag{tagFlag},
				Action: list,
			},
			{
				Name:      "show",
				Usage:     "Show a saved chat with its messages",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "chat id")
					if err != nil {
						return outputError(err)
					}
					saved, err := a.Store.GetChat(c.Context, id)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(saved)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a saved chat",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "chat id")
					if err != nil {
						return outputError(err)
					}
					out, err := a.Store.DeleteChat(c.Context, id)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(out)
				},
			},
		},
	}
}

// keyCmd creates the key command for the model credential.
func keyCmd(a *app.App) *cli.Command {
	status := func(c *cli.Context) error {
		return outputJSON(map[string]bool{"configured": a.Session.HasCredential()})
	}
	return &cli.Command{
		Name:   "key",
		Usage:  "Manage the model API key",
		Action: status,
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Report whether a key is configured",
				Action: status,
			},
			{
				Name:  "set",
				Usage: "Store the API key (reads it from stdin)",
				Action: func(c *cli.Context) error {
					if !stdinHasData() {
						return outputError(errors.NewInvalidRequest("API key must be piped via stdin"))
					}
					key, err := readStdin(maxKeyBytes)
					if err != nil {
						return outputError(errors.NewInvalidRequest(err.Error()))
					}
					if key == "" {
						return outputError(errors.NewInvalidRequest("API key is empty"))
					}
					if err := a.SetAPIKey(c.Context, key); err != nil {
						return outputError(err)
					}
					return status(c)
				},
			},
			{
				Name:  "clear",
				Usage: "Remove the stored API key",
				Action: func(c *cli.Context) error {
					if err := a.SetAPIKey(c.Context, ""); err != nil {
						return outputError(err)
					}
					return status(c)
				},
			},
		},
	}
}

// backupCmd creates the backup command.
func backupCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Copy memo and chat metadata and the tag catalog to the sync tier",
		Action: func(c *cli.Context) error {
			out := a.Store.BackupMetadata(c.Context)
			if out.Mode == ops.BackupFailed {
				if err := outputJSON(out); err != nil {
					return err
				}
				return cli.Exit("backup failed: "+out.Error, 1)
			}
			return outputJSON(out)
		},
	}
}

// restoreCmd creates the restore command.
func restoreCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "restore",
		Usage: "Rebuild local data from the sync tier when local data is empty",
		Action: func(c *cli.Context) error {
			out, err := a.Store.RestoreFromBackup(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// usageCmd creates the usage command.
func usageCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "usage",
		Usage: "Show stored bytes per key in each storage tier",
		Action: func(c *cli.Context) error {
			usage, err := a.Usage(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"tiers": usage})
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind to"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := web.NewServer(a, Version, c.String("bind"), c.Int("port"))

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return web.Run(ctx, srv, a.Log)
			})
			g.Go(func() error {
				logEvents(ctx, a.Bus, a.Log)
				return nil
			})
			return g.Wait()
		},
	}
}

// logEvents logs bus events until ctx is done.
func logEvents(ctx context.Context, bus *events.Bus, log *zap.Logger) {
	sub := bus.Subscribe(events.DefaultBuffer)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			log.Debug("event",
				zap.String("kind", string(e.Kind)),
				zap.String("memo_id", e.MemoID),
				zap.String("tag", e.Tag),
				zap.String("reason", e.Reason),
			)
		}
	}
}

// requireArg returns the first positional argument, or an error naming what is missing.
func requireArg(c *cli.Context, what string) (string, error) {
	arg := strings.TrimSpace(c.Args().First())
	if arg == "" {
		return "", errors.NewInvalidRequest(what + " is required")
	}
	return arg, nil
}

// outputJSON writes v to stdout as indented JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if memoErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", memoErr.Code, memoErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}
