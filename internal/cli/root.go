// Package cli implements the devplan CLI commands.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/devplan/internal/builder"
	"github.com/rcliao/devplan/internal/config"
	"github.com/rcliao/devplan/internal/library"
	"github.com/rcliao/devplan/internal/logging"
	"github.com/rcliao/devplan/internal/pipeline"
	"github.com/rcliao/devplan/internal/renderer"
	"github.com/rcliao/devplan/internal/store"
)

var (
	cfgFile    string
	dbPath     string
	formatFlag string

	cfg *config.Config
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "devplan",
	Short: "Render development plans to diagrams",
	Long:  "Parse development plans, render them with PlantUML and keep every artifact in a fingerprint-keyed SQLite store.",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: $XDG_CONFIG_HOME/devplan/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $DEVPLAN_STORE_PATH or ~/.devplan/artifacts.db)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

// loadConfig reads defaults, the config file, the environment and the
// persistent flags, in increasing precedence.
func loadConfig() *config.Config {
	if cfg != nil {
		return cfg
	}
	v, err := config.New(cfgFile)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		v.Set("store.path", dbPath)
	}
	c, err := config.Load(v)
	if err != nil {
		exitErr("load config", err)
	}
	cfg = c
	return cfg
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(loadConfig().Store.Path)
}

func openLibrary() *library.Library {
	return library.NewOS(loadConfig().Library.Dir)
}

func newLogger() *logging.Logger {
	c := loadConfig()
	log, err := logging.NewLogger(c.Logging.Dir, c.Logging.Level)
	if err != nil {
		exitErr("open log", err)
	}
	return log
}

func newService(st store.Store, log *logging.Logger) *pipeline.Service {
	c := loadConfig()
	gw := renderer.NewGateway(c.Renderer.Settings(), log)
	return pipeline.NewService(st, gw,
		pipeline.WithTimeout(c.Renderer.Timeout),
		pipeline.WithDefaults(map[string]string{
			builder.OptFormat:  c.Render.Format,
			builder.OptDiagram: c.Render.Diagram,
		}),
		pipeline.WithLogger(log),
	)
}

func textOutput() bool {
	return formatFlag == "text"
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

// readSource returns plan text from a file argument, or stdin when the
// argument is missing or "-".
func readSource(args []string) (string, error) {
	var r io.Reader = os.Stdin
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// parseOptions turns repeated key=value flags into render options.
func parseOptions(pairs []string) (map[string]string, error) {
	opts := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("option %q is not key=value", p)
		}
		opts[strings.TrimSpace(k)] = v
	}
	return opts, nil
}

// writeOutput writes data to path, or to stdout for "-".
func writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

// Exit codes for pipeline failures.
const (
	exitInput        = 2
	exitBackpressure = 3
	exitRender       = 4
	exitStore        = 5
)

// exitPipelineErr reports a pipeline error with its class and detail, and
// exits with a class-specific code.
func exitPipelineErr(msg string, err error) {
	class := pipeline.Classify(err)
	fmt.Fprintf(os.Stderr, "error: %s [%s]: %v\n", msg, class, err)

	var re *renderer.Error
	if errors.As(err, &re) && re.Stderr != "" {
		fmt.Fprintf(os.Stderr, "engine stderr:\n%s\n", re.Stderr)
	}

	switch class {
	case pipeline.ClassLex, pipeline.ClassParse, pipeline.ClassConfig:
		os.Exit(exitInput)
	case pipeline.ClassBackpressure:
		os.Exit(exitBackpressure)
	case pipeline.ClassRender:
		os.Exit(exitRender)
	case pipeline.ClassStore:
		os.Exit(exitStore)
	}
	os.Exit(1)
}
