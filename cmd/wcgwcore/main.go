// Command wcgwcore is a thin demo CLI exercising the six Engine tool
// operations directly over stdout, standing in for the tool-protocol /
// websocket fronts spec.md places out of scope.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lowkaihon/wcgwcore/internal/engine"
	"github.com/lowkaihon/wcgwcore/internal/fsutil"
	"github.com/lowkaihon/wcgwcore/internal/mode"
	"github.com/lowkaihon/wcgwcore/internal/syntaxcheck"
)

// resolveArgs resolves CLI file arguments (which, unlike the tool-protocol
// front spec.md assumes, may be typed relative to the shell's cwd) against
// workspace into the absolute paths every Engine operation expects.
func resolveArgs(workspace string, paths []string) []string {
	resolved := make([]string, len(paths))
	for i, p := range paths {
		resolved[i] = fsutil.ResolvePath(workspace, p)
	}
	return resolved
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wcgwcore",
		Short: "wcgwcore — agent-facing workspace/shell/file tool core",
	}
	root.AddCommand(
		initCmd(),
		bashCmd(),
		readCmd(),
		writeCmd(),
		editCmd(),
		saveCmd(),
	)
	return root
}

func loadEngine(workspace, modeName string) (*engine.Engine, error) {
	e := engine.New(newLogger())
	_, err := e.Initialize(engine.InitializeArgs{
		Type:             engine.FirstCall,
		AnyWorkspacePath: workspace,
		ModeName:         mode.Name(modeName),
	})
	return e, err
}

func initCmd() *cobra.Command {
	var modeName, taskID string
	cmd := &cobra.Command{
		Use:   "init [workspace]",
		Short: "Initialize a workspace: build RepoMap, reset ledger, optionally resume a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := engine.New(newLogger())
			result, err := e.Initialize(engine.InitializeArgs{
				Type:             engine.FirstCall,
				AnyWorkspacePath: args[0],
				TaskIDToResume:   taskID,
				ModeName:         mode.Name(modeName),
			})
			if err != nil {
				return err
			}
			fmt.Println("workspace:", result.Workspace)
			fmt.Println("mode:", result.ModeSummary)
			if result.ResumedDescription != "" {
				fmt.Println("resumed:", result.ResumedDescription)
			}
			fmt.Println(result.RepoMap)
			return nil
		},
	}
	cmd.Flags().StringVar(&modeName, "mode", string(mode.Unrestricted), "wcgw | architect | code_writer")
	cmd.Flags().StringVar(&taskID, "resume", "", "task id to resume")
	return cmd
}

func bashCmd() *cobra.Command {
	var modeName string
	var waitSeconds float64
	cmd := &cobra.Command{
		Use:   "bash [workspace] [command]",
		Short: "Run a shell command through Shell/Terminal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEngine(args[0], modeName)
			if err != nil {
				return err
			}
			res, err := e.BashCommand(engine.BashAction{Command: args[1]}, waitSeconds)
			if err != nil {
				return err
			}
			fmt.Print(res.Output)
			fmt.Printf("[%s exit=%d cwd=%s]\n", res.StatusWord, res.ExitCode, res.Cwd)
			return nil
		},
	}
	cmd.Flags().StringVar(&modeName, "mode", string(mode.Unrestricted), "wcgw | architect | code_writer")
	cmd.Flags().Float64Var(&waitSeconds, "wait", 5, "seconds to wait for idle before returning")
	return cmd
}

func readCmd() *cobra.Command {
	var modeName, reason string
	cmd := &cobra.Command{
		Use:   "read [workspace] [file...]",
		Short: "Read files through FileIO, recording them in the ReadLedger",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEngine(args[0], modeName)
			if err != nil {
				return err
			}
			results, err := e.ReadFiles(resolveArgs(args[0], args[1:]), nil, reason)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Println("===", r.Path, "===")
				fmt.Print(r.Content)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&modeName, "mode", string(mode.Unrestricted), "wcgw | architect | code_writer")
	cmd.Flags().StringVar(&reason, "line-numbers-reason", "", "if set, prefix each line with its number")
	return cmd
}

func writeCmd() *cobra.Command {
	var modeName string
	cmd := &cobra.Command{
		Use:   "write [workspace] [file] [content]",
		Short: "Write content to a new or empty file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEngine(args[0], modeName)
			if err != nil {
				return err
			}
			diags, err := e.WriteIfEmpty(fsutil.ResolvePath(args[0], args[1]), args[2])
			if err != nil {
				return err
			}
			printDiagnostics(diags)
			return nil
		},
	}
	cmd.Flags().StringVar(&modeName, "mode", string(mode.Unrestricted), "wcgw | architect | code_writer")
	return cmd
}

func editCmd() *cobra.Command {
	var modeName, blocksFile string
	cmd := &cobra.Command{
		Use:   "edit [workspace] [file]",
		Short: "Apply SEARCH/REPLACE blocks (read from --blocks-file) to an already-read file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if blocksFile == "" {
				return fmt.Errorf("--blocks-file is required")
			}
			body, err := os.ReadFile(blocksFile)
			if err != nil {
				return fmt.Errorf("read blocks file: %w", err)
			}
			e, err := loadEngine(args[0], modeName)
			if err != nil {
				return err
			}
			path := fsutil.ResolvePath(args[0], args[1])
			// An edit requires the file to already be in the ledger; this demo
			// CLI reads it first so a single invocation can exercise the happy
			// path end to end.
			if _, err := e.ReadFiles([]string{path}, nil, ""); err != nil {
				return err
			}
			result, diags, err := e.FileEdit(path, string(body))
			if err != nil {
				return err
			}
			fmt.Printf("applied blocks: %v\n", result.Applied)
			for _, w := range result.Warnings {
				fmt.Println("warning:", w)
			}
			printDiagnostics(diags)
			return nil
		},
	}
	cmd.Flags().StringVar(&modeName, "mode", string(mode.Unrestricted), "wcgw | architect | code_writer")
	cmd.Flags().StringVar(&blocksFile, "blocks-file", "", "path to a file containing SEARCH/REPLACE blocks")
	return cmd
}

func saveCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "save [id] [workspace] [glob...]",
		Short: "Bundle files matching globs into a task snapshot",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEngine(args[1], string(mode.Unrestricted))
			if err != nil {
				return err
			}
			bundle, err := e.ContextSave(args[0], args[1], description, args[2:])
			if err != nil {
				return err
			}
			fmt.Printf("saved %d files to task %q\n", len(bundle.Files), bundle.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "task description")
	return cmd
}

func printDiagnostics(diags []syntaxcheck.Diagnostic) {
	for _, d := range diags {
		out, _ := json.Marshal(d)
		fmt.Println(string(out))
	}
}
