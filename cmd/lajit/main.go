// Package main provides the CLI entrypoint for lajit.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/lajit/internal/catalog"
	"github.com/verte-zerg/lajit/internal/client"
	"github.com/verte-zerg/lajit/internal/config"
	"github.com/verte-zerg/lajit/internal/model"
	"github.com/verte-zerg/lajit/internal/quiz"
	"github.com/verte-zerg/lajit/internal/stats"
	"github.com/verte-zerg/lajit/internal/statsui"
	"github.com/verte-zerg/lajit/internal/store"
	"github.com/verte-zerg/lajit/internal/tui"
)

const defaultLogLevel = "info"

var (
	storePath     string
	storeScope    string
	logLevel      string
	readyTimeout  time.Duration
	quizCategory  string
	quizChoices   int
	scoresPlain   bool
	itemsCategory string
	scopesPrune   bool
)

// settings is the resolved configuration: explicit flags win over the config file.
type settings struct {
	dbPath       string
	scope        string
	logLevel     string
	readyTimeout time.Duration
	category     string
	choices      int
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "lajit",
		Short:         "Finnish nature species quiz",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          runQuizCmd,
	}

	rootCmd.PersistentFlags().StringVar(&storePath, "db", config.DefaultDBPath(), "path to the score database")
	rootCmd.PersistentFlags().StringVar(&storeScope, "scope", store.DefaultScope, "durable scope name")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().DurationVar(&readyTimeout, "ready-timeout", client.DefaultReadyTimeout, "how long to wait for the coordinator")

	rootCmd.Flags().StringVar(&quizCategory, "category", "", "start directly in this category")
	rootCmd.Flags().IntVar(&quizChoices, "choices", quiz.DefaultChoices, "answer options per question")

	rootCmd.AddCommand(newScoresCmd())
	rootCmd.AddCommand(newItemsCmd())
	rootCmd.AddCommand(newClearCmd())
	rootCmd.AddCommand(newCategoriesCmd())
	rootCmd.AddCommand(newScopesCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func loadSettings(cmd *cobra.Command) (settings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	s := settings{
		dbPath:       storePath,
		scope:        storeScope,
		logLevel:     logLevel,
		readyTimeout: readyTimeout,
		category:     quizCategory,
		choices:      quizChoices,
	}
	applyStringConfig(cmd, "db", &s.dbPath, fileCfg.Store.Path)
	applyStringConfig(cmd, "scope", &s.scope, fileCfg.Store.Scope)
	applyStringConfig(cmd, "log-level", &s.logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "category", &s.category, fileCfg.Quiz.Category)
	applyIntConfig(cmd, "choices", &s.choices, fileCfg.Quiz.Choices)
	if d, ok, err := fileCfg.ReadyTimeoutDuration(); err != nil {
		return settings{}, err
	} else if ok {
		applyDurationConfig(cmd, "ready-timeout", &s.readyTimeout, &d)
	}
	if err := validateSettings(s); err != nil {
		return settings{}, err
	}
	return s, nil
}

func validateSettings(s settings) error {
	if strings.TrimSpace(s.dbPath) == "" {
		return fmt.Errorf("--db must not be empty")
	}
	if strings.TrimSpace(s.scope) == "" {
		return fmt.Errorf("--scope must not be empty")
	}
	if s.choices < 2 || s.choices > 8 {
		return fmt.Errorf("--choices must be between 2 and 8")
	}
	if s.readyTimeout <= 0 {
		return fmt.Errorf("--ready-timeout must be > 0")
	}
	return nil
}

// start resolves settings, configures logging and opens the runtime.
func start(cmd *cobra.Command, interactive bool) (*runtime, settings, func(), error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, settings{}, nil, err
	}
	logger, closeLog, err := setupLogging(config.DefaultLogPath(), parseLogLevel(s.logLevel), interactive)
	if err != nil {
		return nil, settings{}, nil, err
	}
	rt, err := openRuntime(cmd.Context(), s, logger)
	if err != nil {
		closeLog()
		return nil, settings{}, nil, err
	}
	cleanup := func() {
		rt.Close()
		closeLog()
	}
	return rt, s, cleanup, nil
}

func runQuizCmd(cmd *cobra.Command, _ []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("the quiz needs an interactive terminal")
	}
	rt, s, cleanup, err := start(cmd, true)
	if err != nil {
		return err
	}
	defer cleanup()

	if s.category != "" {
		if _, ok := rt.catalog.Category(s.category); !ok {
			return fmt.Errorf("unknown category %q (see: lajit categories)", s.category)
		}
	}

	m := tui.NewModel(rt.catalog, rt.tab, quiz.New(), tui.Config{
		Category: s.category,
		Choices:  s.choices,
		Logger:   rt.logger.With("component", "tui"),
	})
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newScoresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Show scores (live scoreboard)",
		Args:  cobra.NoArgs,
		RunE:  runScoresCmd,
	}
	cmd.Flags().BoolVar(&scoresPlain, "plain", false, "print a table instead of the scoreboard")
	return cmd
}

func runScoresCmd(cmd *cobra.Command, _ []string) error {
	plain := scoresPlain || !term.IsTerminal(int(os.Stdout.Fd()))
	rt, s, cleanup, err := start(cmd, !plain)
	if err != nil {
		return err
	}
	defer cleanup()

	if plain {
		if err := rt.loadState(cmd.Context(), s.readyTimeout); err != nil {
			return err
		}
		return stats.RenderScores(cmd.OutOrStdout(), rt.catalog.Categories(), rt.tab.Scores())
	}

	program := tea.NewProgram(statsui.NewModel(rt.catalog, rt.tab), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func newItemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Print per-species stats, weakest first",
		Args:  cobra.NoArgs,
		RunE:  runItemsCmd,
	}
	cmd.Flags().StringVar(&itemsCategory, "category", "", "only show one category")
	return cmd
}

func runItemsCmd(cmd *cobra.Command, _ []string) error {
	rt, s, cleanup, err := start(cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if itemsCategory != "" {
		if _, ok := rt.catalog.Category(itemsCategory); !ok {
			return fmt.Errorf("unknown category %q", itemsCategory)
		}
	}
	if err := rt.loadState(cmd.Context(), s.readyTimeout); err != nil {
		return err
	}
	return stats.RenderItems(cmd.OutOrStdout(), rt.tab.ItemStats(), itemsCategory)
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all category scores",
		Args:  cobra.NoArgs,
		RunE:  runClearCmd,
	}
}

func runClearCmd(cmd *cobra.Command, _ []string) error {
	rt, s, cleanup, err := start(cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := rt.loadState(cmd.Context(), s.readyTimeout); err != nil {
		return err
	}
	if !rt.tab.ClearScores(cmd.Context()) {
		return fmt.Errorf("failed to clear scores: coordinator unavailable")
	}
	if err := awaitCleared(cmd.Context(), rt.tab, s.readyTimeout); err != nil {
		return err
	}
	return writeLine(cmd.OutOrStdout(), "Scores cleared.")
}

func awaitCleared(ctx context.Context, tab *client.Tab, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for len(tab.Scores()) > 0 {
		if err := tab.Await(ctx, model.TypeScoresUpdated); err != nil {
			return fmt.Errorf("failed to confirm clear: %w", err)
		}
	}
	return nil
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List quiz categories",
		Args:  cobra.NoArgs,
		RunE:  runCategoriesCmd,
	}
}

func runCategoriesCmd(cmd *cobra.Command, _ []string) error {
	cat, err := catalog.Load()
	if err != nil {
		return err
	}
	cats := cat.Categories()
	rows := make([][]string, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, []string{c.Key, c.Title(), fmt.Sprintf("%d", len(c.Species))})
	}
	return stats.WriteTable(cmd.OutOrStdout(), []string{"Key", "Name", "Species"}, rows, map[int]bool{2: true})
}

func newScopesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scopes",
		Short: "List durable scopes in the database",
		Args:  cobra.NoArgs,
		RunE:  runScopesCmd,
	}
	cmd.Flags().BoolVar(&scopesPrune, "prune", false, "delete every scope except the active one")
	return cmd
}

func runScopesCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogging(config.DefaultLogPath(), parseLogLevel(s.logLevel), false)
	if err != nil {
		return err
	}
	defer closeLog()

	st, err := store.Open(s.dbPath, s.scope)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer closeStore(st, logger)

	return listScopes(cmd.Context(), cmd.OutOrStdout(), st, scopesPrune, logger)
}

func listScopes(ctx context.Context, w io.Writer, st *store.Store, prune bool, logger *slog.Logger) error {
	scopes, err := st.Scopes(ctx)
	if err != nil {
		return err
	}
	if len(scopes) == 0 {
		return writeLine(w, "No scopes found.")
	}
	rows := make([][]string, 0, len(scopes))
	for _, info := range scopes {
		state := ""
		if info.Name == st.Scope() {
			state = "active"
		} else if prune {
			n, err := st.DropScope(ctx, info.Name)
			if err != nil {
				return err
			}
			logger.Info("dropped scope", "scope", info.Name, "entries", n)
			state = "pruned"
		}
		rows = append(rows, []string{info.Name, fmt.Sprintf("%d", info.Keys), info.UpdatedAt.Local().Format("2006-01-02 15:04"), state})
	}
	return stats.WriteTable(w, []string{"Scope", "Keys", "Updated", ""}, rows, map[int]bool{1: true})
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

func applyDurationConfig(cmd *cobra.Command, name string, target, value *time.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# lajit configuration
# Uncomment a value to enable it. CLI flags override config values.

[store]
# path = %q
# scope = %q             # Changing the scope starts from empty scores

[quiz]
# category = "marjat"    # Start directly in this category
# choices = %d            # Answer options per question (2-8)

[client]
# ready-timeout = %q     # How long to wait for the coordinator

[log]
# level = %q             # debug, info, warn, error
`,
		config.DefaultDBPath(),
		store.DefaultScope,
		quiz.DefaultChoices,
		client.DefaultReadyTimeout.String(),
		defaultLogLevel,
	)
}

func writeLine(w io.Writer, line string) error {
	_, err := fmt.Fprintln(w, line)
	return err
}
