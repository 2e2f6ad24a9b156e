package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/webmemo/internal/app"
	"github.com/hpungsan/webmemo/internal/config"
	"github.com/hpungsan/webmemo/internal/logging"
	"github.com/hpungsan/webmemo/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"capture": true, "list": true, "show": true, "delete": true, "retag": true,
	"tags": true, "chat": true, "chats": true, "key": true,
	"backup": true, "restore": true, "usage": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func printBanner() {
	fmt.Println(`
  __      __   _    __  __
  \ \    / /__| |__|  \/  |___ _ __  ___
   \ \/\/ / -_) '_ \ |\/| / -_) '  \/ _ \
    \_/\_/\___|_.__/_|  |_\___|_|_|_\___/

  Capture web pages as tagged memos and chat with them

  Usage: webmemo <command> [options]
         webmemo --help

  MCP server mode requires piped input.`)
}

// baseDirectory returns $WEBMEMO_HOME, or ~/.webmemo.
func baseDirectory() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("WEBMEMO_HOME")); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".webmemo"), nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before opening storage
	if isHelpOrVersion() {
		cliApp := newCLIApp(nil)
		if err := cliApp.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode() && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'webmemo --help' for usage.\n")
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	baseDir, err := baseDirectory()
	if err != nil {
		return err
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// One-shot CLI commands stay quiet unless debugging; serve and MCP log to stderr
	quiet := isCLIMode() && os.Args[1] != "serve"
	var log *zap.Logger
	if quiet {
		log, err = logging.NewQuiet(cfg.Debug)
	} else {
		log, err = logging.New(cfg.Debug)
	}
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	a, err := app.Open(context.Background(), baseDir, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if isCLIMode() {
		return newCLIApp(a).Run(os.Args)
	}

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("unknown tools in disabled_tools", zap.Strings("names", unknown))
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		log.Warn("unknown types in disabled_types", zap.Strings("names", unknown))
	}
	return mcp.Run(a, Version)
}
