// Command flanvm runs a compiled Flan bytecode image.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/flan-lang/flanvm/crashlog"
	"github.com/flan-lang/flanvm/snapshot"
	"github.com/flan-lang/flanvm/vm"
	"github.com/flan-lang/flanvm/vmconfig"
	"github.com/flan-lang/flanvm/vmlog"
)

func main() {
	configPath := flag.String("config", "", "Path to a flanvm.toml configuration file")
	gcStats := flag.Bool("gc-stats", false, "Force a final GC collection and print heap stats before exiting")
	crashLogPath := flag.String("crash-log", "", "SQLite database to append a row to on a fatal error")
	logLevel := flag.String("log-level", "", "Override the configured log level (debug, info, warning, error)")
	snapshotPath := flag.String("snapshot", "", "Write a CBOR heap snapshot to this path before exiting")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: flanvm [options] <image>\n\n")
		fmt.Fprintf(os.Stderr, "Runs a compiled Flan bytecode image.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	imagePath := flag.Arg(0)

	cfg := vmconfig.Default()
	if *configPath != "" {
		loaded, err := vmconfig.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "flanvm: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger := vmlog.Configure(cfg.Log.Level)

	data, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flanvm: cannot read %s: %v\n", imagePath, err)
		os.Exit(1)
	}

	img, ferr := vm.ReadImage(data)
	if ferr != nil {
		fmt.Fprintf(os.Stderr, "flanvm: %s: %v\n", imagePath, ferr)
		os.Exit(1)
	}

	interp := vm.NewInterpreter(img, cfg.GC.NurseryCapBytes, cfg.GC.RetirementCapBytes, cfg.VM.MaxCallFrames)
	vmlog.HookHeap(logger, interp.Heap())

	var store *crashlog.Store
	if *crashLogPath != "" {
		store, err = crashlog.Open(*crashLogPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "flanvm: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		reporter := interp.Reporter()
		reporter.BeforeExit = func(fatalErr *vm.FatalError, rendered string) {
			var frames []string
			if reporter.StackTrace != nil {
				frames = reporter.StackTrace()
			}
			if recordErr := store.Record(fatalErr, img.ErrorInfo, frames); recordErr != nil {
				fmt.Fprintf(os.Stderr, "flanvm: could not persist crash report: %v\n", recordErr)
			} else {
				fmt.Fprintf(os.Stderr, "crash report recorded: run %s\n", store.RunID())
			}
		}
	}

	exitCode := interp.Run()

	if *gcStats {
		interp.Heap().Collect()
		stats := interp.Heap().Stats()
		fmt.Fprintf(os.Stderr,
			"gc: %d collections, %d promotions, nursery %d objects, retirement %d objects\n",
			stats.Collections, stats.Promotions, stats.NurseryObjects, stats.RetirementObjects,
		)
	}

	if *snapshotPath != "" {
		if err := snapshot.WriteFile(*snapshotPath, snapshot.Of(interp.Heap())); err != nil {
			fmt.Fprintf(os.Stderr, "flanvm: could not write snapshot: %v\n", err)
		}
	}

	os.Exit(exitCode)
}
