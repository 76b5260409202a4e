// Vireo CLI - loads a compiled program file and runs it on the task loop.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/vireo-lang/vireo/history"
	"github.com/vireo-lang/vireo/manifest"
	"github.com/vireo-lang/vireo/vm"
	"github.com/vireo-lang/vireo/vm/wire"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output (debug logging)")
	entry := flag.String("m", "", "Entry function (default: the program's entry)")
	disasm := flag.Bool("disasm", false, "Disassemble the program instead of running it")
	historyPath := flag.String("history", "", "Record runs into this SQLite database")
	projectDir := flag.String("C", "", "Load vireo.toml from this directory")
	maxSteps := flag.Int("max-steps", 0, "Cancel runs exceeding this many dispatch steps (0 = unlimited)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vireo [options] [program.vxc]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a compiled Vireo program file.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  vireo prog.vxc             # Run prog.vxc's entry function\n")
		fmt.Fprintf(os.Stderr, "  vireo -m fib prog.vxc      # Run the 'fib' function\n")
		fmt.Fprintf(os.Stderr, "  vireo -C .                 # Run per ./vireo.toml\n")
		fmt.Fprintf(os.Stderr, "  vireo -disasm prog.vxc     # Print the instruction listing\n")
	}
	flag.Parse()

	programPath := ""
	entryName := *entry
	histPath := *historyPath
	steps := *maxSteps

	if *projectDir != "" {
		man, err := manifest.Load(*projectDir)
		if err != nil {
			fatal(err)
		}
		programPath = man.ProgramPath()
		if entryName == "" {
			entryName = man.Program.Entry
		}
		if histPath == "" {
			histPath = man.HistoryPath()
		}
		if steps == 0 {
			steps = man.Runtime.MaxSteps
		}
		if man.Runtime.Verbose {
			*verbose = true
		}
	}
	if flag.NArg() > 0 {
		programPath = flag.Arg(0)
	}
	if programPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	prog, err := wire.ReadFile(programPath)
	if err != nil {
		fatal(err)
	}
	linked, err := prog.Build()
	if err != nil {
		fatal(err)
	}
	vm.InstallBuiltins(linked.Globals)

	if *disasm {
		for _, name := range linked.FunctionNames() {
			fmt.Println(vm.DisassembleFunction(linked.Functions[name]))
			fmt.Println()
		}
		return
	}

	if entryName == "" {
		entryName = linked.Entry
	}
	entryFn, ok := linked.Functions[entryName]
	if !ok {
		fatal(fmt.Errorf("entry function %q not defined", entryName))
	}

	engine := vm.NewEngine(vm.DefaultHandlers())
	engine.Profiler = vm.NewProfiler()
	loop := vm.NewTaskLoop(engine)
	loop.MaxSteps = steps

	if histPath != "" {
		store, err := history.Open(histPath)
		if err != nil {
			fatal(err)
		}
		defer store.Close()
		loop.OnTaskDone = func(task *vm.Task) {
			rec := history.Record{
				ID:           task.ID,
				Entry:        task.Entry,
				Outcome:      string(task.Outcome),
				Steps:        task.Steps,
				StartedAt:    task.StartedAt,
				Duration:     task.Duration,
				HotFunctions: strings.Join(task.HotFunctions, ","),
			}
			if fault := task.Root.Fault(); fault != nil {
				rec.Fault = fault.Error()
			}
			if err := store.Save(rec); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
		}
	}

	result, err := loop.RunUntilComplete(vm.NewContext(entryFn))
	if err != nil {
		reportFault(err)
		os.Exit(1)
	}
	if result != nil {
		fmt.Println(vm.FormatValue(result))
	}
}

// reportFault prints a fault and the chain it propagated through.
func reportFault(fault error) {
	fmt.Fprintf(os.Stderr, "Fault: %v\n", fault)
	for err := errors.Unwrap(fault); err != nil; err = errors.Unwrap(err) {
		fmt.Fprintf(os.Stderr, "  caused by: %v\n", err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
