package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/typerace/internal/config"
	"github.com/verte-zerg/typerace/internal/identity"
	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/stats"
	"github.com/verte-zerg/typerace/internal/store"
)

var (
	historyDifficulty string
	historySince      string
	historyLast       int
	historySummary    bool
	historyWindow     int
)

const fallbackTerminalWidth = 80

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show practice history",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historyDifficulty, "difficulty", "", "difficulty filter")
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N sessions")
	cmd.Flags().BoolVar(&historySummary, "summary", false, "print totals only")
	cmd.Flags().IntVar(&historyWindow, "window", 5, "moving average window for the curves")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := historyConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		_ = st.Close()
	}()

	sessions, err := st.ListSessions(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}
	out := cmd.OutOrStdout()
	if err := stats.RenderSummary(out, sessions); err != nil {
		return err
	}
	if historySummary || len(sessions) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return err
	}
	if err := stats.RenderCurves(out, sessions, historyWindow, terminalWidth()); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return err
	}
	return stats.RenderHistory(out, sessions)
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallbackTerminalWidth
	}
	return width
}

func historyConfig() (model.HistoryConfig, error) {
	var cfg model.HistoryConfig
	if historyDifficulty != "" {
		d, ok := model.ParseDifficulty(historyDifficulty)
		if !ok {
			return cfg, fmt.Errorf("--difficulty must be one of easy, medium, hard")
		}
		cfg.Difficulty = d
	}
	if historySince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", historySince, time.Local)
		if err != nil {
			return cfg, fmt.Errorf("invalid --since value: %w", err)
		}
		cfg.Since = &parsed
	}
	if historyLast < 0 {
		return cfg, fmt.Errorf("--last must be >= 0")
	}
	if historyWindow < 0 {
		return cfg, fmt.Errorf("--window must be >= 0")
	}
	cfg.Last = historyLast
	return cfg, nil
}

func newNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "name [new name]",
		Short: "Show or change your display name",
		RunE:  runNameCmd,
	}
}

func runNameCmd(cmd *cobra.Command, args []string) error {
	path := config.DefaultIdentityPath()
	me, err := identity.LoadOrCreate(path)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		me, err = identity.Rename(path, me, strings.Join(args, " "))
		if err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), me.Name)
	return err
}
