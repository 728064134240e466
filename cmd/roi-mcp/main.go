package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ironsheep/roi-analyzer-mcp/internal/config"
	"github.com/ironsheep/roi-analyzer-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Println("roi-analyzer-mcp - MCP server for microscopy ROI measurement")
	fmt.Println()
	fmt.Println("Usage: roi-analyzer-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>  Load settings from a YAML file")
	fmt.Println("  --folder <path>  Open a folder of micrographs at startup")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  ROI_MCP_CONFIG=<path>      Settings file when --config is not given")
	fmt.Println("  ROI_MCP_LOG_LEVEL=debug    Enable debug logging")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Register it with your MCP client.")
}

func main() {
	configPath := os.Getenv("ROI_MCP_CONFIG")
	folder := ""

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version", "-v", "version":
			fmt.Printf("roi-analyzer-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			usage()
			return
		case "--config", "--folder":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "%s requires a path\n", args[i])
				os.Exit(2)
			}
			if args[i] == "--config" {
				configPath = args[i+1]
			} else {
				folder = args[i+1]
			}
			i++
		default:
			fmt.Fprintf(os.Stderr, "unknown option: %s\n", args[i])
			usage()
			os.Exit(2)
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if os.Getenv("ROI_MCP_LOG_LEVEL") == "debug" {
		cfg.Logging.Debug = true
	}
	if cfg.Logging.Debug {
		log.Printf("ROI Analyzer MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
		if configPath != "" {
			log.Printf("Config: %s", configPath)
		}
	}

	srv := server.New(cfg)
	if folder != "" {
		if _, err := srv.SelectFolder(folder); err != nil {
			log.Fatalf("Cannot open folder: %v", err)
		}
	}
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
