package cmds

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gamesniff/gamesniff/cmd/gamesniff/cmds/helphelpers"
	"github.com/gamesniff/gamesniff/pkg/config"
	"github.com/gamesniff/gamesniff/pkg/engine"
	"github.com/gamesniff/gamesniff/pkg/logflags"
	"github.com/gamesniff/gamesniff/pkg/steam"
	"github.com/gamesniff/gamesniff/pkg/steam/appinfo"
	"github.com/gamesniff/gamesniff/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// configPath overrides the config file location.
	configPath string
	// output selects how results are printed.
	output outputFormat
	// steamDir overrides the Steam install dir.
	steamDir string

	appsOwned  bool
	appsPrefix string
	appsFuzzy  string

	configList bool
	configSave bool

	versionVerbose bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const gamesniffCommandLongDesc = `gamesniff identifies the game engine behind an executable.

It reads the Steam application catalog to find owned and installed games,
probes the header of each launch executable for its target platform and
fingerprints the engine (Unity, Unreal) and its version.`

// New returns an initialized command tree.
func New(docCall bool) *cobra.Command {
	output = formatText

	// Main gamesniff root command.
	rootCommand = &cobra.Command{
		Use:           "gamesniff",
		Short:         "gamesniff fingerprints game executables and Steam libraries.",
		Long:          gamesniffCommandLongDesc,
		SilenceUsage:  true,
		SilenceErrors: docCall,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logflags.Setup(log, logOutput, logDest); err != nil {
				return err
			}
			conf = config.LoadConfig(configPath)
			if !cmd.Flags().Changed("output") && conf.Output != "" {
				if err := output.Set(conf.Output); err != nil {
					return fmt.Errorf("config: %v", err)
				}
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logflags.Close()
		},
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'gamesniff help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'gamesniff help log').")
	rootCommand.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default $HOME/.gamesniff/config.yml).")
	rootCommand.PersistentFlags().VarP(&output, "output", "o", "Output format: text, yaml or json.")
	rootCommand.PersistentFlags().StringVar(&steamDir, "steam-dir", "", "Steam install dir (default: discovered).")

	// 'exe' subcommand.
	exeCommand := &cobra.Command{
		Use:   "exe <path>...",
		Short: "Describes game executables.",
		Long: `Describes game executables.

For every path the executable header is probed for its operating system and
architecture, and the directory around it is inspected for the engine that
built it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: exeCmd,
	}
	rootCommand.AddCommand(exeCommand)

	// 'apps' subcommand.
	appsCommand := &cobra.Command{
		Use:   "apps",
		Short: "Lists the applications of the Steam catalog.",
		Long: `Lists the applications of the Steam catalog (appcache/appinfo.vdf).

Entries without a name or without launch options are not listed, nor are
tools unless include-tools is set in the configuration.`,
		Args: cobra.NoArgs,
		RunE: appsCmd,
	}
	appsCommand.Flags().BoolVar(&appsOwned, "owned", false, "Only list applications granted by a license package or free.")
	appsCommand.Flags().StringVar(&appsPrefix, "prefix", "", "Only list applications whose name starts with this prefix, ignoring case.")
	appsCommand.Flags().StringVar(&appsFuzzy, "match", "", "Only list applications whose name contains these characters in order.")
	rootCommand.AddCommand(appsCommand)

	// 'scan' subcommand.
	scanCommand := &cobra.Command{
		Use:   "scan",
		Short: "Fingerprints every installed game.",
		Long: `Fingerprints every installed game.

Owned applications are looked up in the steamapps directory of the Steam
install dir and in the configured library-dirs. The executable of every
launch option found on disk is described as by 'gamesniff exe'.`,
		Args: cobra.NoArgs,
		RunE: scanCmd,
	}
	rootCommand.AddCommand(scanCommand)

	// 'clear-cache' subcommand.
	clearCacheCommand := &cobra.Command{
		Use:   "clear-cache",
		Short: "Removes the Steam catalog files.",
		Long: `Removes appcache/appinfo.vdf and appcache/packageinfo.vdf.

Steam rebuilds both files the next time it starts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveSteamDir()
			if err != nil {
				return err
			}
			if err := steam.ClearCache(dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed catalogs in %s\n", filepath.Join(dir, "appcache"))
			return nil
		},
	}
	rootCommand.AddCommand(clearCacheCommand)

	// 'config' subcommand.
	configCommand := &cobra.Command{
		Use:   "config [--list | --save | <name> [<value>...]]",
		Short: "Shows or changes the configuration.",
		Long: `Shows or changes the configuration.

	gamesniff config --list
	gamesniff config <name> <value>...
	gamesniff config "<name> <value>..."

Setting an option saves the configuration file. List options such as
library-dirs take every value; passing none clears them. A single
argument is split into words the way a shell would, so quoted values
may contain spaces.`,
		RunE: configCmd,
	}
	configCommand.Flags().BoolVar(&configList, "list", false, "Print every option and its value.")
	configCommand.Flags().BoolVar(&configSave, "save", false, "Write the current configuration back to the config file.")
	rootCommand.AddCommand(configCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gamesniff\n%s\n", version.GamesniffVersion)
			if versionVerbose {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	vdf		Log binary KV decoding, including unknown key indices
	catalog		Log catalog records that are skipped
	exe		Log executable header probes
	engine		Log engine detection
	scan		Log Steam dir discovery and library scans

The special name 'all' selects every component. Without --log-output the
engine component is selected.

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.

`,
	})

	defaultHelp := rootCommand.HelpFunc()
	rootCommand.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helphelpers.Prepare(cmd)
		defaultHelp(cmd, args)
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

func resolveSteamDir() (string, error) {
	dir := steamDir
	if dir == "" {
		dir = conf.SteamDir
	}
	return steam.Locate(dir)
}

func newScanner() (*steam.Scanner, error) {
	dir, err := resolveSteamDir()
	if err != nil {
		return nil, err
	}
	opts := steam.Options{
		SteamDir:     dir,
		LibraryDirs:  conf.LibraryDirs,
		IncludeTools: conf.IncludeTools,
	}
	if conf.DetectCacheSize != nil {
		opts.CacheSize = *conf.DetectCacheSize
	}
	return steam.NewScanner(opts)
}

func exeCmd(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd.OutOrStdout())
	var (
		descs  []engine.Descriptor
		failed int
	)
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err == nil {
			var d engine.Descriptor
			if d, err = engine.Describe(filepath.Clean(path)); err == nil {
				descs = append(descs, d)
				continue
			}
		}
		failed++
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", arg, err)
	}

	err := p.render(output, descs, func() {
		w := tabwriter.NewWriter(p.w, 0, 8, 2, ' ', 0)
		for _, d := range descs {
			fmt.Fprintf(w, "%s\t%s\n", d.Path, p.describe(d))
		}
		w.Flush()
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d executables could not be read", failed, len(args))
	}
	return nil
}

// describe formats a descriptor as "os/arch engine version (backend)".
func (p *printer) describe(d engine.Descriptor) string {
	s := fmt.Sprintf("%s/%s", d.OS, d.Arch)
	if d.Engine == nil {
		return s + "\t" + p.paint(colorRed, "no engine")
	}
	e := d.Engine.Brand.String()
	if d.Engine.Version != nil {
		e += " " + d.Engine.Version.Display
	}
	if d.Engine.Backend != engine.BackendUnknown {
		e += " (" + d.Engine.Backend.String() + ")"
	}
	return s + "\t" + p.paint(colorGreen, e)
}

func appsCmd(cmd *cobra.Command, args []string) error {
	if appsPrefix != "" && appsFuzzy != "" {
		return errors.New("--prefix and --match are mutually exclusive")
	}
	s, err := newScanner()
	if err != nil {
		return err
	}
	var apps []appinfo.App
	if appsOwned {
		apps, err = s.OwnedApps()
	} else {
		apps, err = s.Apps()
	}
	if err != nil {
		return err
	}
	switch {
	case appsPrefix != "":
		apps = steam.NewNameIndex(apps).Prefix(appsPrefix)
	case appsFuzzy != "":
		apps = steam.NewNameIndex(apps).Fuzzy(appsFuzzy)
	}

	p := newPrinter(cmd.OutOrStdout())
	return p.render(output, apps, func() {
		w := tabwriter.NewWriter(p.w, 0, 8, 2, ' ', 0)
		for _, app := range apps {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", app.ID, p.paint(colorBold, app.Name), app.Type, launchSummary(app.Launch))
		}
		w.Flush()
	})
}

func launchSummary(opts []appinfo.LaunchOption) string {
	exes := make([]string, 0, len(opts))
	for _, o := range opts {
		if o.Executable == "" {
			continue
		}
		exes = append(exes, o.Executable)
	}
	return strings.Join(exes, ", ")
}

func scanCmd(cmd *cobra.Command, args []string) error {
	s, err := newScanner()
	if err != nil {
		return err
	}
	games, err := s.Scan()
	if err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout())
	return p.render(output, games, func() {
		for _, g := range games {
			fmt.Fprintf(p.w, "%s (%d)\t%s\n", p.paint(colorBold, g.App.Name), g.App.ID, p.paint(colorCyan, g.Dir))
			w := tabwriter.NewWriter(p.w, 0, 8, 2, ' ', 0)
			for _, e := range g.Executables {
				if e.Descriptor == nil {
					fmt.Fprintf(w, "  [%s]\t%s\n", e.LaunchID, p.paint(colorRed, e.Error))
					continue
				}
				rel, err := filepath.Rel(g.Dir, e.Descriptor.Path)
				if err != nil {
					rel = e.Descriptor.Path
				}
				fmt.Fprintf(w, "  [%s] %s\t%s\n", e.LaunchID, commandLine(rel, e.Args), p.describe(*e.Descriptor))
			}
			w.Flush()
		}
	})
}

// commandLine joins path and args, quoting the words a shell would split.
func commandLine(path string, args []string) string {
	words := make([]string, 0, len(args)+1)
	for _, w := range append([]string{filepath.ToSlash(path)}, args...) {
		if w == "" || strings.ContainsAny(w, " \t\"'`") {
			w = strconv.Quote(w)
		}
		words = append(words, w)
	}
	return strings.Join(words, " ")
}

func configCmd(cmd *cobra.Command, args []string) error {
	switch {
	case configList:
		return conf.List(cmd.OutOrStdout())
	case configSave:
		return config.SaveConfig(conf, configPath)
	case len(args) == 0:
		return fmt.Errorf("wrong number of arguments to \"config\"")
	}
	var err error
	if len(args) == 1 {
		err = conf.Set(args[0])
	} else {
		err = conf.SetValues(args[0], args[1:])
	}
	if err != nil {
		return err
	}
	return config.SaveConfig(conf, configPath)
}
