// Package main provides the CLI entrypoint for typerace.
package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/typerace/internal/config"
	"github.com/verte-zerg/typerace/internal/generator"
	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/room"
	"github.com/verte-zerg/typerace/internal/store"
	"github.com/verte-zerg/typerace/internal/tui"
	"github.com/verte-zerg/typerace/internal/wordlist"
)

const (
	defaultWords      = 25
	defaultDifficulty = string(model.DifficultyMedium)
	defaultLogLevel   = "info"
)

var (
	practiceWords      int
	practiceDuration   int
	practiceDifficulty string
	practiceSeed       string
	practiceWordList   string

	logLevel string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "typerace",
		Short:         "Terminal typing practice and multiplayer races",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPracticeCmd,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.Flags().IntVar(&practiceWords, "words", defaultWords, "words per passage")
	rootCmd.Flags().IntVar(&practiceDuration, "duration", 0, "time limit in seconds (0 counts up)")
	rootCmd.Flags().StringVar(&practiceDifficulty, "difficulty", defaultDifficulty, "passage difficulty (easy, medium, hard)")
	rootCmd.Flags().StringVar(&practiceSeed, "seed", "", "replay the passage generated from this seed")
	rootCmd.Flags().StringVar(&practiceWordList, "wordlist", "", "custom word list, one word per line")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRaceCmd())
	rootCmd.AddCommand(newRoomsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newNameCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyIntConfig(cmd, "words", &practiceWords, fileCfg.Practice.Words)
	applyIntConfig(cmd, "duration", &practiceDuration, fileCfg.Practice.Duration)
	applyStringConfig(cmd, "difficulty", &practiceDifficulty, fileCfg.Practice.Difficulty)
	applyStringConfig(cmd, "wordlist", &practiceWordList, fileCfg.Practice.WordList)

	difficulty, ok := model.ParseDifficulty(practiceDifficulty)
	if !ok {
		return fmt.Errorf("--difficulty must be one of easy, medium, hard")
	}
	cfg := model.Config{
		Words:        practiceWords,
		Duration:     practiceDuration,
		Difficulty:   difficulty,
		Seed:         strings.TrimSpace(practiceSeed),
		WordListPath: practiceWordList,
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}
	if err := requireTerminal(); err != nil {
		return err
	}

	gen := generator.New()
	if cfg.WordListPath != "" {
		words, err := wordlist.LoadWords(cfg.WordListPath)
		if err != nil {
			return fmt.Errorf("failed to load word list %s: %w", cfg.WordListPath, err)
		}
		gen = generator.NewWithWords(words)
	}

	log, closeLog, err := fileLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("failed to close db")
		}
	}()

	screen := tui.NewPractice(cfg, st, gen, nil, log)
	program := tea.NewProgram(screen, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func validateConfig(cfg model.Config) error {
	if cfg.Words <= 0 {
		return fmt.Errorf("--words must be > 0")
	}
	if cfg.Duration < 0 || cfg.Duration > room.MaxDuration {
		return fmt.Errorf("--duration must be between 0 and %d", room.MaxDuration)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# typerace configuration
# Uncomment a value to enable it. CLI flags override config values.

[practice]
# words = %d              # Words per passage
# duration = 0            # Time limit in seconds, 0 counts up
# difficulty = %q   # easy, medium or hard
# wordlist = ""           # Custom word list, one word per line

[client]
# server = %q
# capacity = %d            # Players per created room
# duration = %d           # Race time limit in seconds, 0 counts up
# difficulty = %q

[server]
# addr = %q
# db = ""                 # Defaults to the XDG data dir
# nats-url = ""           # Also publish room snapshots to NATS
# allowed-origins = ["*"]
# log-level = %q
`,
		defaultWords,
		defaultDifficulty,
		defaultServerURL,
		defaultCapacity,
		defaultRaceDuration,
		defaultDifficulty,
		defaultAddr,
		defaultLogLevel,
	)
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func requireTerminal() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("this command needs an interactive terminal")
	}
	return nil
}

func parseLevel(s string) (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return level, nil
}

// fileLogger logs to the data dir so output does not tear the alternate screen.
func fileLogger() (zerolog.Logger, func(), error) {
	level, err := parseLevel(logLevel)
	if err != nil {
		return zerolog.Nop(), func() {}, err
	}
	path := config.DefaultLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), func() {}, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), func() {}, fmt.Errorf("failed to open log file: %w", err)
	}
	log := zerolog.New(f).Level(level).With().Timestamp().Logger()
	return log, func() { _ = f.Close() }, nil
}

func consoleLogger(w io.Writer) (zerolog.Logger, error) {
	level, err := parseLevel(logLevel)
	if err != nil {
		return zerolog.Nop(), err
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(level).With().Timestamp().Logger(), nil
}
