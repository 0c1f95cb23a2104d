package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ldi/optiflow/internal/config"
	"github.com/ldi/optiflow/internal/db"
	"github.com/ldi/optiflow/internal/mcp"
	"github.com/ldi/optiflow/internal/plan"
	"github.com/ldi/optiflow/internal/server"
	"github.com/ldi/optiflow/internal/ui"
	"github.com/ldi/optiflow/pkg/models"
)

var (
	configPath   string
	dbPath       string
	snapshotPath string
	cfg          *config.Config
)

func main() {
	flag.StringVar(&configPath, "config", "optiflow.yaml", "Path to config file")
	flag.StringVar(&dbPath, "db-path", "", "Path to database file (overrides config)")
	flag.StringVar(&snapshotPath, "snapshot-path", "", "Path to snapshot file (overrides config)")
	flag.Parse()

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	if snapshotPath == "" {
		snapshotPath = cfg.SnapshotPath
	}

	var command string
	var args []string

	if flag.NArg() == 0 {
		selected, err := ui.RunMenu()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running menu: %v\n", err)
			os.Exit(1)
		}
		if selected == "" {
			os.Exit(0)
		}
		command = selected
		args = []string{}
	} else {
		command = flag.Arg(0)
		args = flag.Args()[1:]
	}

	switch command {
	case "init":
		err = runInit(args)
	case "web":
		err = runWeb(args)
	case "mcp":
		err = runMCP(args)
	case "gantt":
		err = runGantt(args)
	case "list-projects":
		err = runListProjects(args)
	case "list-tasks":
		err = runListTasks(args)
	case "status":
		err = runStatus(args)
	case "db":
		err = runDB(args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openDatabase(ctx context.Context) (*db.DB, error) {
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := database.Init(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// loadProjectPlan resolves a project code to its plan using the configured
// statuses and task types.
func loadProjectPlan(ctx context.Context, database *db.DB, code string) (*models.Project, *plan.Plan, error) {
	p, err := database.GetProjectByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, fmt.Errorf("project with code '%s' not found", code)
	}
	settings, err := database.GetSettings(ctx)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := database.ListTasks(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	pl, err := plan.Load(p.Code, settings.StatusNames(), settings.TaskTypeNames(), tasks)
	if err != nil {
		return nil, nil, err
	}
	return p, pl, nil
}

func runInit(args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	optiflowDir := filepath.Join(targetDir, ".optiflow")
	if err := os.MkdirAll(optiflowDir, 0755); err != nil {
		return fmt.Errorf("failed to create .optiflow directory: %w", err)
	}
	fmt.Println("✓ Created .optiflow/ directory")

	gitignorePath := filepath.Join(optiflowDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("optiflow.db*\n"), 0644); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	fmt.Println("✓ Created .optiflow/.gitignore")

	// Default paths if not overridden by flags or config
	finalDbPath := dbPath
	if dbPath == config.Default().DBPath {
		finalDbPath = filepath.Join(optiflowDir, "optiflow.db")
	}
	finalSnapshotPath := snapshotPath
	if snapshotPath == config.Default().SnapshotPath {
		finalSnapshotPath = filepath.Join(optiflowDir, "snapshot.jsonl")
	}

	database, err := db.Open(finalDbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	fmt.Printf("✓ Initialized database at %s\n", finalDbPath)

	if err := database.Seed(ctx, cfg); err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	fmt.Printf("✓ Seeded %d statuses and %d task types\n", len(cfg.Statuses), len(cfg.TaskTypes))

	// Import an existing snapshot if one is present
	if _, err := os.Stat(finalSnapshotPath); err == nil {
		if err := database.ImportSnapshot(ctx, finalSnapshotPath); err != nil {
			return fmt.Errorf("failed to import snapshot: %w", err)
		}
		fmt.Printf("✓ Imported snapshot from %s\n", finalSnapshotPath)
	}

	fmt.Println("✓ OptiFlow initialized successfully")
	return nil
}

func runWeb(args []string) error {
	webFlags := flag.NewFlagSet("web", flag.ContinueOnError)
	port := webFlags.String("port", cfg.Web.Port, "Port to listen on")
	if err := webFlags.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	database.EnableAutoSnapshot(snapshotPath)

	srv := server.NewServer(database)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("OptiFlow listening on http://localhost:%s\n", *port)
	return srv.Start(fmt.Sprintf(":%s", *port))
}

func runMCP(args []string) error {
	ctx := context.Background()
	database, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	database.SetOnChange(func(ctx context.Context) {
		if err := database.ExportSnapshot(ctx, snapshotPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting snapshot: %v\n", err)
		}
	})

	s := mcp.NewServer(database)
	return mcp.Serve(s)
}

func runGantt(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: optiflow gantt <project-code>")
	}

	ctx := context.Background()
	database, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	p, pl, err := loadProjectPlan(ctx, database, args[0])
	if err != nil {
		return err
	}
	return ui.RunGantt(p.Name, pl)
}

func runListProjects(args []string) error {
	ctx := context.Background()
	database, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	projects, err := database.ListProjects(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%-8s %-30s %-6s %-9s %-23s\n", "CODE", "NAME", "TASKS", "PROGRESS", "DATES")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, p := range projects {
		dates := ""
		if p.StartDate != nil && p.EndDate != nil {
			dates = fmt.Sprintf("%s..%s", p.StartDate, p.EndDate)
		}
		fmt.Printf("%-8s %-30s %-6d %7d%%  %-23s\n", p.Code, p.Name, p.TaskCount, p.Progress, dates)
	}
	return nil
}

func runListTasks(args []string) error {
	taskFlags := flag.NewFlagSet("list-tasks", flag.ContinueOnError)
	projectCode := taskFlags.String("project", "", "Project code")
	visibleOnly := taskFlags.Bool("visible", false, "Hide tasks inside collapsed summaries")
	if err := taskFlags.Parse(args); err != nil {
		return err
	}
	if *projectCode == "" {
		return fmt.Errorf("usage: optiflow list-tasks -project <code>")
	}

	ctx := context.Background()
	database, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	_, pl, err := loadProjectPlan(ctx, database, *projectCode)
	if err != nil {
		return err
	}

	tasks := pl.Tasks()
	if *visibleOnly {
		tasks = pl.VisibleTasks()
	}

	fmt.Printf("%-10s %-9s %-34s %-10s  %-10s %5s  %-12s\n",
		"WBS", "CODE", "DESCRIPTION", "START", "END", "EST", "STATUS")
	fmt.Println("--------------------------------------------------------------------------------------------------")
	for _, t := range tasks {
		indent := ""
		for i := 0; i < t.Level; i++ {
			indent += "  "
		}
		desc := indent + t.Description
		if len(desc) > 34 {
			desc = desc[:33] + "…"
		}
		fmt.Printf("%-10s %-9s %-34s %-10s  %-10s %5.1f  %-12s\n",
			t.WBSCode, t.TaskID, desc, t.StartDate, t.EndDate, t.Estimate, t.Status)
	}
	return nil
}

func runStatus(args []string) error {
	ctx := context.Background()
	database, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	projects, err := database.ListProjects(ctx)
	if err != nil {
		return err
	}

	totalTasks := 0
	statusCounts := make(map[string]int)
	for _, p := range projects {
		tasks, err := database.ListTasks(ctx, p.ID)
		if err != nil {
			return err
		}
		totalTasks += len(tasks)
		for _, t := range tasks {
			statusCounts[t.Status]++
		}
	}

	fmt.Println("OptiFlow Status")
	fmt.Println("===============")
	fmt.Printf("Projects:    %d\n", len(projects))
	fmt.Printf("Total Tasks: %d\n", totalTasks)

	settings, err := database.GetSettings(ctx)
	if err != nil {
		return err
	}
	if len(settings.Statuses) > 0 {
		fmt.Println("\nTask Breakdown:")
		for _, st := range settings.Statuses {
			fmt.Printf("  %-12s %d\n", st.Name+":", statusCounts[st.Name])
		}
	}
	return nil
}

func runDB(args []string) error {
	if len(args) == 0 {
		fmt.Println("Usage: optiflow db <command> [arguments]")
		fmt.Println("\nCommands:")
		fmt.Println("  status    Show database status")
		fmt.Println("  export    Export a snapshot to the configured path")
		fmt.Println("  import    Import a snapshot from the configured path")
		return nil
	}

	command := args[0]
	subArgs := args[1:]

	switch command {
	case "status":
		return runStatus(subArgs)
	case "export":
		ctx := context.Background()
		database, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.ExportSnapshot(ctx, snapshotPath); err != nil {
			return err
		}
		fmt.Printf("✓ Exported snapshot to %s\n", snapshotPath)
		return nil
	case "import":
		ctx := context.Background()
		database, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.ImportSnapshot(ctx, snapshotPath); err != nil {
			return err
		}
		fmt.Printf("✓ Imported snapshot from %s\n", snapshotPath)
		return nil
	default:
		return fmt.Errorf("unknown db command: %s", command)
	}
}
