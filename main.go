package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"recap/pkg/capture"
	"recap/pkg/cdb"
	"recap/pkg/config"
	"recap/pkg/sched"
)

const version = "2.0.0"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version information"`
	Verbose bool             `short:"V" help:"Verbose output mode"`
	DryRun  bool             `help:"Print the commands that would be executed instead of running them"`

	Build   bool     `short:"b" help:"Build the project and capture the compilation database"`
	Command []string `arg:"" optional:"" passthrough:"" help:"Build command to run with -b, prefix with --"`

	GenerateAst bool `short:"A" name:"generate-ast" help:"Generate Clang PCH files"`
	GenerateI   bool `short:"E" name:"generate-i" help:"Generate C/C++ preprocessed files"`
	GenerateLl  bool `short:"S" name:"generate-ll" help:"Generate LLVM IR files"`
	GenerateBc  bool `short:"B" name:"generate-bc" help:"Generate LLVM bitcode files"`
	GenerateFm  bool `short:"M" name:"generate-fm" help:"Generate the external function mapping file"`
	ListFiles   bool `short:"L" help:"Generate a list for each kind of generated files"`
	CopyFile    bool `short:"P" help:"Copy source code files to the output directory"`
	Target      bool `short:"T" help:"Generate target related compile_commands.json and file lists"`
	Ctu         bool `help:"Prepare for cross-TU analysis (alias for -A and -M)"`

	Output    string `short:"o" default:"." help:"Customize the output directory"`
	Compiling string `default:"compile_commands.json" placeholder:"<compile_commands.json>" help:"Customize the compiling database file"`
	Linking   string `default:"link_commands.json" placeholder:"<link_commands.json>" help:"Customize the linking database file"`

	Cc        string `default:"clang" help:"Customize the C compiler"`
	Cxx       string `default:"clang++" help:"Customize the C++ compiler"`
	Cfm       string `default:"clang-extdef-mapping" help:"Customize the function mapping scanner"`
	FmName    string `default:"externalFnMap.txt" help:"Customize the output filename of the function mapping file"`
	ClangPath string `short:"p" placeholder:"CLANG_PATH" help:"Customize the compiler executable directory for searching"`
	Shim      string `help:"Customize the path of the interception shim library"`

	Jobs int `short:"j" default:"1" help:"Customize the number of jobs allowed in parallel"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("recap"),
		kong.Description("Reconstruct compilation and linking databases from a captured build and regenerate per-translation-unit artifacts."),
		kong.Vars{"version": version},
	)

	if cli.Verbose {
		log.SetLevel(log.DebugLevel)
	}
	if err := run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cli *CLI) error {
	cfg := newConfig(cli)
	if err := cfg.Resolve(); err != nil {
		return err
	}
	if err := cfg.CheckTools(); err != nil {
		return err
	}
	if cfg.NeedsOutput() || cli.Build {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	ctx := context.Background()

	var compilation []cdb.CompileEntry
	var linking []cdb.LinkEntry
	var err error
	if cli.Build {
		command := cli.Command
		if len(command) == 0 {
			command = []string{"make"}
			if cfg.Jobs > 1 {
				command = append(command, "-j", strconv.Itoa(cfg.Jobs))
			}
		}
		compilation, linking, err = capture.Run(ctx, cfg, command)
		if err != nil {
			return err
		}
	} else {
		compilation, err = cdb.LoadCompilation(cfg.CompilingDB)
		if err != nil {
			return err
		}
		if _, statErr := os.Stat(cfg.LinkingDB); statErr == nil {
			linking, err = cdb.LoadLinking(cfg.LinkingDB)
			if err != nil {
				return err
			}
		} else {
			log.Warnf("processing compilation database without linking information")
		}
	}

	units, err := cdb.ParseUnits(compilation, cfg.CC, cfg.CXX)
	if err != nil {
		return err
	}
	targets := cdb.ParseTargets(linking)

	s := sched.New(cfg)
	jobs, err := s.Plan(ctx, units, targets)
	if err != nil {
		return err
	}
	return s.Run(ctx, jobs)
}

func newConfig(cli *CLI) *config.Config {
	return &config.Config{
		CC:           cli.Cc,
		CXX:          cli.Cxx,
		FuncMapper:   cli.Cfm,
		ClangPath:    cli.ClangPath,
		FuncMapName:  cli.FmName,
		OutputDir:    cli.Output,
		CompilingDB:  cli.Compiling,
		LinkingDB:    cli.Linking,
		ShimPath:     cli.Shim,
		Jobs:         cli.Jobs,
		Verbose:      cli.Verbose,
		DryRun:       cli.DryRun,
		AST:          cli.GenerateAst || cli.Ctu,
		Preprocessed: cli.GenerateI,
		IR:           cli.GenerateLl,
		Bitcode:      cli.GenerateBc,
		FuncMap:      cli.GenerateFm || cli.Ctu,
		Lists:        cli.ListFiles,
		CopySources:  cli.CopyFile,
		PerTarget:    cli.Target,
	}
}
