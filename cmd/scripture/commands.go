package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Sternrassler/scripture-client/pkg/chat"
	"github.com/Sternrassler/scripture-client/pkg/facts"
	"github.com/Sternrassler/scripture-client/pkg/queue"
	"github.com/Sternrassler/scripture-client/pkg/scripture"
	"github.com/spf13/cobra"
)

// passageID accepts a human reference ("John 3:16") or an API id ("JHN.3.16").
func passageID(query string) (string, error) {
	if ref, err := scripture.ParseReference(query); err == nil {
		return ref.PassageID(), nil
	}
	if !strings.ContainsAny(query, " :") && strings.Contains(query, ".") {
		return strings.ToUpper(query), nil
	}
	return "", fmt.Errorf("%w: %q", scripture.ErrInvalidReference, query)
}

func (c *cli) passageCmd() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "passage <reference>",
		Short: `Show a verse, range or chapter ("John 3:16", "Romans 8:28-30", "GEN.1")`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := passageID(joinArgs(args))
			if err != nil {
				return err
			}
			opts := scripture.ForegroundPassage(c.bibleID)
			opts.ExcludeVerseNumbers = plain

			p, err := c.app.Scripture.GetPassage(cmd.Context(), id, opts)
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), p, func(w io.Writer) { printPassage(w, p) })
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "omit verse numbers")
	return cmd
}

func printPassage(w io.Writer, p scripture.Passage) {
	fmt.Fprintf(w, "%s\n\n%s\n", p.Reference, p.Text())
	if p.Copyright != "" {
		fmt.Fprintf(w, "\n%s\n", p.Copyright)
	}
}

func (c *cli) searchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <keywords>",
		Short: "Search verses by keyword",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verses, err := c.app.Scripture.SearchVerses(cmd.Context(), joinArgs(args), scripture.SearchOptions{
				Limit:    limit,
				BibleID:  c.bibleID,
				Priority: queue.High,
			})
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), verses, func(w io.Writer) {
				if len(verses) == 0 {
					fmt.Fprintln(w, "No verses found.")
					return
				}
				for i, v := range verses {
					fmt.Fprintf(w, "%2d. %s\n    %s\n", i+1, v.Reference, v.Text)
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", scripture.DefaultSearchLimit, "maximum number of verses")
	return cmd
}

func (c *cli) lookupCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "lookup <reference or keywords>",
		Short: "Look up a reference, falling back to keyword search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := c.app.Lookup(cmd.Context(), joinArgs(args), scripture.LookupOptions{
				Mode:    scripture.LookupMode(mode),
				BibleID: c.bibleID,
			})
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), results, func(w io.Writer) {
				for _, r := range results {
					fmt.Fprintf(w, "%s [%s]\n    %s\n", r.Reference, r.Kind, r.Text)
				}
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(scripture.LookupAuto), "auto, verse or keyword")
	return cmd
}

func (c *cli) biblesCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "bibles",
		Short: "List available Bible versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				bibles []scripture.Bible
				err    error
			)
			if all {
				bibles, err = c.app.Scripture.GetBibles(cmd.Context())
			} else {
				bibles, err = c.app.Scripture.GetEnglishBibles(cmd.Context())
			}
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), bibles, func(w io.Writer) {
				for _, b := range bibles {
					fmt.Fprintf(w, "%-24s %-8s %s\n", b.ID, b.Abbreviation, b.Name)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include every language")
	return cmd
}

func (c *cli) booksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "books",
		Short: "List the books of a Bible version in canonical order",
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := c.app.Scripture.GetBooks(cmd.Context(), c.bibleID)
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), books, func(w io.Writer) {
				for _, b := range books {
					testament := "NT"
					if scripture.IsOldTestament(b.ID) {
						testament = "OT"
					}
					fmt.Fprintf(w, "%-4s %s  %s\n", b.ID, testament, b.Name)
				}
			})
		},
	}
}

func (c *cli) chaptersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chapters <book>",
		Short: "List the chapters of a book",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book := scripture.BookID(joinArgs(args))
			chapters, err := c.app.Scripture.GetChapters(cmd.Context(), book, c.bibleID)
			if err != nil {
				return err
			}
			numbers := scripture.ChapterNumbers(chapters)
			return c.emit(cmd.OutOrStdout(), chapters, func(w io.Writer) {
				parts := make([]string, len(numbers))
				for i, n := range numbers {
					parts[i] = strconv.Itoa(n)
				}
				fmt.Fprintf(w, "%s: %d chapters\n%s\n", book, len(numbers), strings.Join(parts, " "))
			})
		},
	}
}

func (c *cli) bookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "book <book>",
		Short: "Load every chapter of a book",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book := scripture.BookID(joinArgs(args))
			content, err := c.app.Scripture.LoadBook(cmd.Context(), book, scripture.ForegroundPassage(c.bibleID))
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), content, func(w io.Writer) {
				for _, ch := range content.Chapters {
					fmt.Fprintf(w, "== Chapter %d ==\n", ch.Number)
					if ch.Err != nil {
						fmt.Fprintf(w, "[chapter unavailable: %v]\n\n", ch.Err)
						continue
					}
					fmt.Fprintf(w, "%s\n\n", ch.Passage.Text())
				}
				if failed := content.Failed(); failed > 0 {
					fmt.Fprintf(w, "%d of %d chapters could not be loaded.\n", failed, len(content.Chapters))
				}
			})
		},
	}
}

func (c *cli) randomCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "random",
		Short: "Show a popular verse",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := c.app.Scripture.RandomVerse(cmd.Context())
			return c.emit(cmd.OutOrStdout(), p, func(w io.Writer) { printPassage(w, p) })
		},
	}
}

func (c *cli) factsCmd() *cobra.Command {
	var day int
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Show today's Bible facts",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := c.app.Facts(cmd.Context(), day)
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), list, func(w io.Writer) { printFacts(w, list) })
		},
	}
	cmd.Flags().IntVar(&day, "day", 0, "day of the year (default today)")
	return cmd
}

func printFacts(w io.Writer, list []facts.Fact) {
	for _, f := range list {
		fmt.Fprintf(w, "* %s\n  %s\n", f.Title, f.Description)
		switch {
		case f.General:
		case f.Reference != "":
			fmt.Fprintf(w, "  %s: %s\n", f.Reference, f.Content)
		default:
			fmt.Fprintf(w, "  %s\n", f.Content)
		}
		fmt.Fprintln(w)
	}
}

func (c *cli) chatCmd() *cobra.Command {
	var perspective bool
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask the Bible study assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := joinArgs(args)

			var resp chat.Response
			if perspective {
				resp = c.app.Chat.BiblicalPerspective(cmd.Context(), message).Response
			} else {
				var err error
				if resp, err = c.app.Chat.GetChatResponse(cmd.Context(), message, nil); err != nil {
					return err
				}
			}
			return c.emit(cmd.OutOrStdout(), resp, func(w io.Writer) {
				fmt.Fprintln(w, resp.Text)
				if resp.HasVerses() {
					fmt.Fprintln(w, "\nRelevant verses:")
					for _, v := range resp.RelevantVerses {
						fmt.Fprintf(w, "  %s: %s\n", v.Reference, v.Text)
					}
				}
			})
		},
	}
	cmd.Flags().BoolVar(&perspective, "perspective", false, "ask for a biblical perspective on a topic")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report configuration and runtime state",
		RunE: func(cmd *cobra.Command, args []string) error {
			status := c.app.Status(cmd.Context())
			return c.emit(cmd.OutOrStdout(), status, func(w io.Writer) {
				for _, svc := range []struct {
					name   string
					ok     bool
					detail []string
				}{
					{"Bible API", status.Scripture.Configured, status.Scripture.Missing},
					{"Chat provider", status.Chat.Configured, status.Chat.Missing},
				} {
					state := "configured"
					if !svc.ok {
						state = "missing " + strings.Join(svc.detail, ", ")
					}
					fmt.Fprintf(w, "%-14s %s\n", svc.name+":", state)
				}
				fmt.Fprintf(w, "%-14s %s\n", "Cooldown:", status.CooldownStore)
				fmt.Fprintf(w, "%-14s %d/%d entries\n", "Cache:", status.Cache.TotalItems, status.Cache.MaxSize)
				fmt.Fprintf(w, "%-14s %d high, %d normal pending\n", "Queue:", status.Queue.PendingHigh, status.Queue.PendingNormal)
			})
		},
	}
}
