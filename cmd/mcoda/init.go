package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mcoda/mcoda/internal/config"
	"github.com/mcoda/mcoda/internal/store"
)

var (
	initForce      bool
	initWithConfig bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize an mcoda workspace",
	Long: `Initialize a directory for use with mcoda.

This command sets up everything needed to run mcoda:
  - Creates the .mcoda directory
  - Creates the backlog database and schema
  - Optionally creates a workspace config template

The directory argument is optional and defaults to the current directory.

Examples:
  mcoda init                # Initialize current directory
  mcoda init ./myproject    # Initialize specific directory
  mcoda init --force        # Reinitialize even if already set up
  mcoda init --with-config  # Create a .mcoda/config.yaml template`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initWithConfig, "with-config", false, "Create a workspace config template")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing mcoda in %s...\n\n", absPath)

	mcodaDir := filepath.Join(absPath, ".mcoda")
	dbPath := store.WorkspaceDBPath(absPath)
	if _, err := os.Stat(dbPath); err == nil && !initForce {
		fmt.Println("Workspace already initialized. Use --force to reinitialize.")
		return nil
	}

	if err := os.MkdirAll(mcodaDir, 0755); err != nil {
		return fmt.Errorf("creating .mcoda directory: %w", err)
	}
	printStatus("✓", "Created .mcoda directory", color.FgGreen)

	db, err := store.Open(dbPath)
	if err != nil {
		printStatus("✗", "Could not open backlog database", color.FgRed)
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		printStatus("✗", "Could not create backlog schema", color.FgRed)
		return fmt.Errorf("creating backlog schema: %w", err)
	}
	printStatus("✓", "Created backlog database and schema", color.FgGreen)

	if initWithConfig {
		if err := writeConfigTemplate(mcodaDir); err != nil {
			return fmt.Errorf("creating workspace config: %w", err)
		}
		printStatus("✓", "Created .mcoda/config.yaml template", color.FgGreen)
	}

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (needed for agent-assisted ordering)", color.FgYellow)
	} else {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	fmt.Printf("\n%s mcoda initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Populate the backlog database at .mcoda/mcoda.db")
	fmt.Println("  2. Order tasks:")
	fmt.Println("     mcoda tasks order --project YOUR-PROJECT")
	fmt.Println("  3. Learn more:")
	fmt.Println("     mcoda --help")

	return nil
}

// writeConfigTemplate writes a starter workspace config. Existing files are
// left alone.
func writeConfigTemplate(mcodaDir string) error {
	path := filepath.Join(mcodaDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	template := fmt.Sprintf(`# mcoda workspace configuration
# Overrides the user config at %s

anthropic:
  model: claude-sonnet-4-20250514

agents:
  defaults:
    tasks-order: planner
  registry:
    planner:
      id: planner

ordering:
  stage_order: [foundation, backend, frontend, other]

telemetry:
  enabled: true
`, config.GetUserConfigPath())

	return os.WriteFile(path, []byte(template), 0644)
}

// printStatus prints a colored status symbol followed by a message.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
