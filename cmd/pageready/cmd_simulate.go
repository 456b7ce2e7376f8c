package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pageready/internal/announce"
	"pageready/internal/host/memhost"
)

var (
	simState     string
	simFireAfter time.Duration
	simRecheck   bool
	simRace      bool
	mainTimes    int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the announcer against an in-memory document",
	Long: `Loads the announcer into a simulated document and prints each line it
emits. With --state loading the document fires DOMContentLoaded after
--fire-after. --race makes the document finish loading while the listener is
being registered; combine it with --recheck to recover the handler.`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

var mainCmd = &cobra.Command{
	Use:   "main",
	Short: "Call the page's main() entry point",
	Args:  cobra.NoArgs,
	RunE:  runMain,
}

func init() {
	simulateCmd.Flags().StringVar(&simState, "state", "", "Initial document.readyState: loading, interactive or complete (default from config)")
	simulateCmd.Flags().DurationVar(&simFireAfter, "fire-after", 0, "Delay before DOMContentLoaded fires (default from config)")
	simulateCmd.Flags().BoolVar(&simRecheck, "recheck", false, "Re-read the ready state after subscribing")
	simulateCmd.Flags().BoolVar(&simRace, "race", false, "Finish loading while the listener is registered")

	mainCmd.Flags().IntVar(&mainTimes, "times", 1, "Number of calls")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	state := simState
	if state == "" {
		state = cfg.Announce.InitialState
	}
	fireAfter := simFireAfter
	if fireAfter <= 0 {
		fireAfter = cfg.GetFireAfter()
	}
	recheck := simRecheck || cfg.Announce.Recheck

	var hostOpts []memhost.Option
	if simRace {
		hostOpts = append(hostOpts, memhost.WithTransitionOnSubscribe())
	}
	host := memhost.New(announce.ParseReadyState(state), hostOpts...)

	rec := announce.NewRecorder()
	sink := announce.Tee{announce.NewWriterSink(os.Stdout), rec}

	var opts []announce.Option
	if recheck {
		opts = append(opts, announce.WithRecheck())
	}
	opts = append(opts, announce.WithTarget("memhost://"+state))

	logger.Debug("Simulating page load",
		zap.String("state", state),
		zap.Duration("fire_after", fireAfter),
		zap.Bool("recheck", recheck),
		zap.Bool("race", simRace))

	out := announce.New(sink, opts...).Load(host)

	if out.Subscribed && !host.Fired() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if n := <-host.FireAfter(ctx, fireAfter); n == 0 && ctx.Err() != nil {
			return fmt.Errorf("document never fired: %w", ctx.Err())
		}
	}

	ran := rec.Count(announce.MsgHandler) > 0
	summary := fmt.Sprintf("state=%s subscribed=%s rechecked=%s handler=%s",
		out.InitialState, yesNo(out.Subscribed), yesNo(out.Rechecked), yesNo(ran))
	if ran {
		fmt.Fprintln(os.Stderr, mutedStyle.Render(summary))
	} else {
		fmt.Fprintln(os.Stderr, warnStyle.Render(summary+" (listener registered after the event)"))
	}
	return nil
}

func runMain(cmd *cobra.Command, args []string) error {
	if mainTimes < 0 {
		return fmt.Errorf("--times must not be negative")
	}
	a := announce.New(announce.NewWriterSink(os.Stdout))
	for i := 0; i < mainTimes; i++ {
		a.Main()
	}
	return nil
}
