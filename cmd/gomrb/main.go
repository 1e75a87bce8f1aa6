// Command gomrb loads and executes compiled RITE bytecode. The compiler
// itself is an external collaborator: source files are compiled by
// invoking mrbc on PATH.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/rite"
	"github.com/gomrb/gomrb/vm"
)

const insnLimitEnv = "MRUBYEDGE_INSN_LIMIT"

func main() {
	app := &cli.Command{
		Name:  "gomrb",
		Usage: "An mruby-family bytecode VM written in Go",
		Commands: []*cli.Command{
			runCommand,
			compileCommand,
			replCommand,
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func printError(err error) {
	red := color.New(color.FgRed, color.Bold)
	var raised *registry.RaisedError
	if errors.As(err, &raised) && raised.Kind != nil {
		red.Fprintf(os.Stderr, "%s", raised.Kind.Kind.RubyClassName())
		fmt.Fprintf(os.Stderr, ": %s\n", raised.Kind.Message)
		return
	}
	red.Fprint(os.Stderr, "Error")
	fmt.Fprintf(os.Stderr, ": %v\n", err)
}

func vmConfig() vm.Config {
	cfg := vm.Config{}
	if s := os.Getenv(insnLimitEnv); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			cfg.InsnLimit = n
		}
	}
	return cfg
}

// compileSource shells out to mrbc, returning the compiled RITE bytes.
func compileSource(path string) ([]byte, error) {
	out := filepath.Join(os.TempDir(), fmt.Sprintf("gomrb-%d.mrb", os.Getpid()))
	defer os.Remove(out)
	cmd := exec.Command("mrbc", "-o", out, path)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("mrbc failed (is it on PATH?): %w", err)
	}
	return os.ReadFile(out)
}

func compileCode(code string) ([]byte, error) {
	src := filepath.Join(os.TempDir(), fmt.Sprintf("gomrb-%d.rb", os.Getpid()))
	if err := os.WriteFile(src, []byte(code), 0o600); err != nil {
		return nil, err
	}
	defer os.Remove(src)
	return compileSource(src)
}

func loadInput(path, code string) (*rite.File, error) {
	var bin []byte
	var err error
	switch {
	case code != "":
		bin, err = compileCode(code)
	case strings.HasSuffix(path, ".mrb"):
		bin, err = os.ReadFile(path)
	case path != "":
		bin, err = compileSource(path)
	default:
		return nil, errors.New("no input: pass a FILE or -e CODE")
	}
	if err != nil {
		return nil, err
	}
	return rite.Load(bin)
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Execute a .rb source (via mrbc) or a compiled .mrb file",
	ArgsUsage: "[FILE]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "dump-insns",
			Usage: "List decoded instructions before executing",
		},
		&cli.StringFlag{
			Name:    "e",
			Aliases: []string{"eval"},
			Usage:   "Compile and run CODE instead of a file",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		file, err := loadInput(cmd.Args().First(), cmd.String("e"))
		if err != nil {
			return err
		}
		machine, err := vm.New(file, vmConfig())
		if err != nil {
			return err
		}
		if cmd.Bool("dump-insns") {
			dumpInstructions(machine)
		}
		result, err := machine.Run()
		if err != nil {
			return err
		}
		if cmd.Bool("dump-insns") {
			fmt.Printf("=> %s\n", machine.Inspect(result))
		}
		return nil
	},
}

func dumpInstructions(machine *vm.VM) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"irep", "idx", "pos", "instruction", "sym"})
	table.SetBorder(false)
	table.SetColumnSeparator(" ")
	table.AppendBulk(vm.DumpIrep(machine.RootIrep))
	table.Render()
}

var compileCommand = &cli.Command{
	Name:      "compile-mrb",
	Usage:     "Compile a source file to RITE bytecode via mrbc",
	ArgsUsage: "FILE",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "o",
			Aliases: []string{"output"},
			Usage:   "Output path (defaults to FILE with .mrb extension)",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		src := cmd.Args().First()
		if src == "" {
			return errors.New("no source file given")
		}
		out := cmd.String("o")
		if out == "" {
			out = strings.TrimSuffix(src, filepath.Ext(src)) + ".mrb"
		}
		mrbc := exec.Command("mrbc", "-o", out, src)
		mrbc.Stderr = os.Stderr
		if err := mrbc.Run(); err != nil {
			return fmt.Errorf("mrbc failed (is it on PATH?): %w", err)
		}
		fmt.Printf("wrote %s\n", out)
		return nil
	},
}

var replCommand = &cli.Command{
	Name:  "repl",
	Usage: "Interactive session: each line is compiled with mrbc and evaluated in a persistent VM",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		rl, err := readline.New("gomrb> ")
		if err != nil {
			return err
		}
		defer rl.Close()

		machine := vm.NewEmpty(vmConfig())
		if _, err := machine.Run(); err != nil {
			return err
		}

		for {
			line, err := rl.Readline()
			if err != nil {
				// Ctrl-D or Ctrl-C ends the session.
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "exit" || line == "quit" {
				return nil
			}

			bin, err := compileCode(line)
			if err != nil {
				printError(err)
				continue
			}
			file, err := rite.Load(bin)
			if err != nil {
				printError(err)
				continue
			}
			result, err := machine.EvalLoaded(file)
			if err != nil {
				printError(err)
				continue
			}
			fmt.Printf("=> %s\n", machine.Inspect(result))
		}
	},
}
