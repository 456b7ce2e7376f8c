package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pageready/internal/announce"
	"pageready/internal/browser"
	"pageready/internal/store"
	"pageready/internal/web"
)

var (
	probeNoStore bool
	probeRecheck bool
	historyLimit int
	historyURL   string
	historyPrune int
)

var probeCmd = &cobra.Command{
	Use:   "probe [url]",
	Short: "Load a page in a headless browser and run the announcer against it",
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent probe results",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one probe record in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	probeCmd.Flags().BoolVar(&probeNoStore, "no-store", false, "Do not record the probe in history")
	probeCmd.Flags().BoolVar(&probeRecheck, "recheck", false, "Re-read the ready state after subscribing")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of records")
	historyCmd.Flags().StringVar(&historyURL, "url", "", "Only show probes of this URL")
	historyCmd.Flags().IntVar(&historyPrune, "prune", 0, "Keep only the newest N records before listing")
	historyCmd.AddCommand(historyShowCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	url := args[0]

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bcfg := cfg.ToBrowser()
	bcfg.SessionStore = workspacePath(bcfg.SessionStore)
	mgr := browser.NewSessionManager(bcfg)
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := mgr.Shutdown(context.Background()); err != nil {
			logger.Warn("Browser shutdown failed", zap.Error(err))
		}
	}()

	var opts []announce.Option
	if probeRecheck || cfg.Announce.Recheck {
		opts = append(opts, announce.WithRecheck())
	}

	logger.Info("Probing page", zap.String("url", url))
	res, err := mgr.Probe(ctx, url, opts...)
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}

	scripts, err := web.ScanScripts(strings.NewReader(res.HTML))
	if err != nil {
		logger.Debug("Script scan failed", zap.Error(err))
	}
	printProbe(res, scripts)

	if probeNoStore {
		return nil
	}
	return saveProbe(ctx, res)
}

func printProbe(res *browser.ProbeResult, scripts []web.Script) {
	fmt.Println(headerStyle.Render("Announcer"))
	for _, line := range res.Lines {
		fmt.Println("  " + strings.TrimRight(line, "\n"))
	}

	if len(scripts) > 0 {
		fmt.Println(headerStyle.Render("Scripts"))
		for _, s := range scripts {
			marker := " "
			if s.Blocking() {
				marker = "*"
			}
			fmt.Printf("  %s %s\n", marker, s)
		}
		fmt.Println(mutedStyle.Render("  * blocking: runs while readyState is loading"))
	}

	if len(res.Console) > 0 {
		fmt.Println(headerStyle.Render("Console"))
		for _, e := range res.Console {
			fmt.Printf("  [%s] %s\n", e.Type, e.Text)
		}
	}

	summary := fmt.Sprintf("state=%s subscribed=%s rechecked=%s requests=%d in %v",
		res.InitialState, yesNo(res.Subscribed), yesNo(res.Rechecked), len(res.Requests), res.Duration.Round(1e6))
	if res.TimedOut {
		fmt.Println(warnStyle.Render(summary + " (handler never ran)"))
		return
	}
	fmt.Println(mutedStyle.Render(summary))
}

func saveProbe(ctx context.Context, res *browser.ProbeResult) error {
	hs, err := store.Open(workspacePath(cfg.Store.DatabasePath))
	if err != nil {
		return err
	}
	defer hs.Close()

	rec := store.ProbeRecord{
		URL:          res.URL,
		InitialState: res.InitialState.String(),
		Subscribed:   res.Subscribed,
		Rechecked:    res.Rechecked,
		TimedOut:     res.TimedOut,
		Lines:        res.Lines,
		Console:      res.ConsoleLines(),
		RequestCount: len(res.Requests),
		DurationMs:   res.Duration.Milliseconds(),
		CreatedAt:    res.StartedAt,
	}
	id, err := hs.Save(ctx, rec)
	if err != nil {
		return err
	}
	logger.Debug("Probe recorded", zap.String("id", id))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	path := workspacePath(cfg.Store.DatabasePath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No probe history yet.")
		return nil
	}

	hs, err := store.Open(path)
	if err != nil {
		return err
	}
	defer hs.Close()

	if historyPrune < 0 {
		return fmt.Errorf("--prune must not be negative")
	}
	if historyPrune > 0 {
		n, err := hs.Prune(ctx, historyPrune)
		if err != nil {
			return err
		}
		fmt.Println(mutedStyle.Render(fmt.Sprintf("pruned %d record(s)", n)))
	}

	records, err := hs.Recent(ctx, historyURL, historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No probe history yet.")
		return nil
	}

	fmt.Println(renderHistory(records))

	st, err := hs.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Println(mutedStyle.Render(fmt.Sprintf("%d probe(s), %d timed out, %d rechecked, avg %.0fms",
		st.Total, st.TimedOut, st.Rechecked, st.AvgMs)))
	return nil
}

func renderHistory(records []store.ProbeRecord) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		handler := "yes"
		if r.TimedOut {
			handler = "no"
		}
		rows = append(rows, []string{
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.URL,
			r.InitialState,
			yesNo(r.Rechecked),
			handler,
			fmt.Sprintf("%dms", r.DurationMs),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("WHEN", "URL", "STATE", "RECHECK", "HANDLER", "TOOK").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHdStyle
			}
			return cellStyle
		}).
		String()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	path := workspacePath(cfg.Store.DatabasePath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", store.ErrNotFound, args[0])
	}

	hs, err := store.Open(path)
	if err != nil {
		return err
	}
	defer hs.Close()

	rec, err := hs.Get(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render(rec.URL))
	fmt.Printf("  id         %s\n", rec.ID)
	fmt.Printf("  when       %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  state      %s\n", rec.InitialState)
	fmt.Printf("  subscribed %s\n", yesNo(rec.Subscribed))
	fmt.Printf("  rechecked  %s\n", yesNo(rec.Rechecked))
	fmt.Printf("  timed out  %s\n", yesNo(rec.TimedOut))
	fmt.Printf("  requests   %d\n", rec.RequestCount)
	fmt.Printf("  took       %dms\n", rec.DurationMs)
	if rec.Error != "" {
		fmt.Println(warnStyle.Render("  error      " + rec.Error))
	}
	if len(rec.Lines) > 0 {
		fmt.Println(headerStyle.Render("Announcer"))
		for _, line := range rec.Lines {
			fmt.Println("  " + strings.TrimRight(line, "\n"))
		}
	}
	if len(rec.Console) > 0 {
		fmt.Println(headerStyle.Render("Console"))
		for _, line := range rec.Console {
			fmt.Println("  " + line)
		}
	}
	return nil
}
