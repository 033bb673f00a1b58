package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tasklabs/taskmate/internal/config"
	"github.com/tasklabs/taskmate/internal/core"
	"github.com/tasklabs/taskmate/internal/cron"
	"github.com/tasklabs/taskmate/internal/server"
	"github.com/tasklabs/taskmate/internal/server/sqlite"
	"github.com/tasklabs/taskmate/internal/store"
	"github.com/tasklabs/taskmate/internal/store/rest"
	"github.com/tasklabs/taskmate/internal/task"
	"github.com/tasklabs/taskmate/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "taskmate",
	Short: "taskmate - task dashboard over a remote task store",
}

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Open the interactive dashboard",
	RunE:  runDash,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bundled task store server",
	RunE:  runServe,
}

var addCmd = &cobra.Command{
	Use:   "add <title...>",
	Short: "Create a task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List tasks",
	RunE:  runList,
}

var doneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task done",
	Args:  cobra.ExactArgs(1),
	RunE:  runDone,
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and data directory",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show taskmate status",
	RunE:  runStatus,
}

var (
	addDescFlag   string
	addDueFlag    string
	addStatusFlag string

	lsStatusFlag string
	lsSearchFlag string
	lsOrderFlag  string
	lsAscFlag    bool
)

func init() {
	addCmd.Flags().StringVar(&addDescFlag, "desc", "", "Task description")
	addCmd.Flags().StringVar(&addDueFlag, "due", "", "Due date (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&addStatusFlag, "status", "", "Initial status (todo|inprogress|done)")

	lsCmd.Flags().StringVar(&lsStatusFlag, "status", "", "Filter by status")
	lsCmd.Flags().StringVar(&lsSearchFlag, "search", "", "Filter by title substring")
	lsCmd.Flags().StringVar(&lsOrderFlag, "order", "", "Sort column (created_at|updated_at|due_date|title|status)")
	lsCmd.Flags().BoolVar(&lsAscFlag, "asc", false, "Sort ascending")

	rootCmd.AddCommand(dashCmd, serveCmd, addCmd, lsCmd, doneCmd, rmCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newClient(cfg *config.Config) *rest.Client {
	return rest.New(rest.Options{
		BaseURL:  cfg.Store.BaseURL,
		APIKey:   cfg.Store.APIKey,
		Realtime: cfg.Store.Realtime,
		Timeout:  cfg.StoreTimeout(),
	})
}

func runDash(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client := newClient(cfg)
	var feed store.Feed
	if client.RealtimeAvailable() {
		feed = client
	}

	c := core.New(client, feed)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start core: %w", err)
	}
	defer c.Close()

	sched := cron.NewService(func() {
		refreshCtx, refreshCancel := context.WithTimeout(ctx, cfg.StoreTimeout())
		defer refreshCancel()
		_ = c.Refresh(refreshCtx)
	})
	if err := sched.EnableMidnightRefresh(); err != nil {
		return err
	}
	if feed == nil {
		if err := sched.EnablePolling(cfg.PollInterval()); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	return ui.Run(c)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := sqlite.New(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("open task store: %w", err)
	}
	defer st.Close()

	srv := server.New(st, server.Options{
		Host:   cfg.Server.Host,
		Port:   cfg.Server.Port,
		APIKey: cfg.Server.APIKey,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	return srv.Stop()
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	in := task.CreateInput{Title: strings.Join(args, " ")}
	if addDescFlag != "" {
		in.Description = task.StrPtr(addDescFlag)
	}
	if addStatusFlag != "" {
		in.Status = task.NormalizeStatus(addStatusFlag)
	}
	if addDueFlag != "" {
		d, err := task.ParseDate(addDueFlag)
		if err != nil {
			return err
		}
		in.DueDate = &d
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout())
	defer cancel()

	t, err := newClient(cfg).Create(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("created %s\n", t.ID)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	crit := task.DefaultCriteria()
	crit.Search = lsSearchFlag
	if lsStatusFlag != "" {
		crit.Status = task.NormalizeStatus(lsStatusFlag)
	}
	if lsOrderFlag != "" {
		crit.Order.Column = task.Column(lsOrderFlag)
		if !crit.Order.Column.Valid() {
			return fmt.Errorf("unknown order column %q", lsOrderFlag)
		}
	}
	crit.Order.Ascending = lsAscFlag

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout())
	defer cancel()

	tasks, err := newClient(cfg).List(ctx, crit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTITLE\tDUE")
	for _, t := range tasks {
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", shortID(t.ID), t.Status, t.Title, due)
	}
	return w.Flush()
}

func runDone(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout())
	defer cancel()

	t, err := newClient(cfg).Update(ctx, args[0], task.Patch{Status: task.StatusPtr(task.StatusDone)})
	if err != nil {
		return err
	}
	fmt.Printf("done: %s\n", t.Title)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout())
	defer cancel()

	if err := newClient(cfg).Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println("removed")
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return err
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Println("  1. Run 'taskmate serve' to start the bundled store (or point")
	fmt.Printf("     store.baseUrl in %s at an existing one)\n", cfgPath)
	fmt.Println("  2. Run 'taskmate dash' to open the dashboard")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Store URL: %s\n", cfg.Store.BaseURL)
	fmt.Printf("Realtime: %v\n", cfg.Store.Realtime)
	if cfg.Store.APIKey != "" && len(cfg.Store.APIKey) > 8 {
		masked := cfg.Store.APIKey[:4] + "..." + cfg.Store.APIKey[len(cfg.Store.APIKey)-4:]
		fmt.Printf("API Key: %s\n", masked)
	} else if cfg.Store.APIKey != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}
	fmt.Printf("Server: %s:%d (db: %s)\n", cfg.Server.Host, cfg.Server.Port, cfg.Server.DBPath)
	fmt.Printf("Poll interval: %s\n", cfg.PollInterval())
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
