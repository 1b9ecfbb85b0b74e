package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/etnz/debuild/deb"
	"github.com/etnz/debuild/manifest"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type kvFlags map[string]string

// String implements the pflag.Value interface.
func (i *kvFlags) String() string {
	s := []string{}
	for k, v := range *i {
		s = append(s, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(s, ", ")
}

// Set implements the pflag.Value interface.
func (i *kvFlags) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid format, expected KEY=VALUE")
	}
	(*i)[parts[0]] = parts[1]
	return nil
}

// Type implements the pflag.Value interface.
func (i *kvFlags) Type() string { return "KEY=VALUE" }

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := newRootCmd().Execute(); err != nil {
		if kind, ok := deb.KindOf(err); ok {
			logrus.WithField("kind", kind).Error(err)
		} else {
			logrus.Error(err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "debuild",
		Short: "Assemble Debian binary packages from a declarative definition",
		Long: `debuild reads a package definition (YAML, JSON or TOML) and writes a
Debian binary package (.deb): metadata, payload files, maintainer scripts,
conffiles and debconf templates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newPrintCmd("templates", "Print the debconf templates file", (*deb.Package).Templates))
	rootCmd.AddCommand(newPrintCmd("control", "Print the control file", (*deb.Package).ControlFile))
	return rootCmd
}

// definitionFlags are the flags shared by every command reading a package definition.
type definitionFlags struct {
	file    string
	defines kvFlags
}

func (d *definitionFlags) register(cmd *cobra.Command) {
	d.defines = make(kvFlags)
	cmd.Flags().StringVarP(&d.file, "file", "f", "debuild.yaml", "Path to the package definition")
	cmd.Flags().VarP(&d.defines, "define", "D", "Define variables for templates (KEY=VALUE)")
}

func (d *definitionFlags) load() (*manifest.Package, error) {
	return manifest.Load(d.file, d.defines, logEvent)
}

// logEvent forwards manifest events to the debug log.
func logEvent(e fmt.Stringer) {
	logrus.Debug(e.String())
}

func newBuildCmd() *cobra.Command {
	var def definitionFlags
	var opts manifest.Options

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the .deb package",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, err := def.load()
			if err != nil {
				return err
			}
			mtime, err := sourceDateEpoch()
			if err != nil {
				return err
			}
			opts.ModTime = mtime
			opts.ClampModTime = !mtime.IsZero()
			opts.Logger = logrus.StandardLogger()

			out, err := pkg.Compile(opts, logEvent)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	def.register(cmd)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output file or directory (default: standard file name in the current directory)")
	cmd.Flags().StringVar(&opts.Buffers.Dir, "tmp-dir", "", "Directory for spilled archive buffers (default: system temp dir)")
	cmd.Flags().IntVar(&opts.Buffers.Threshold, "spill-threshold", deb.DefaultSpillThreshold, "Bytes kept in memory per archive before spilling to disk, negative to never spill")
	return cmd
}

func newPrintCmd(use, short string, render func(*deb.Package) ([]byte, error)) *cobra.Command {
	var def definitionFlags

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := def.load()
			if err != nil {
				return err
			}
			pkg, err := m.Build(logEvent)
			if err != nil {
				return err
			}
			pkg.Logger = logrus.StandardLogger()
			out, err := render(pkg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	def.register(cmd)
	return cmd
}

// sourceDateEpoch honours SOURCE_DATE_EPOCH for reproducible builds.
func sourceDateEpoch() (time.Time, error) {
	v := os.Getenv("SOURCE_DATE_EPOCH")
	if v == "" {
		return time.Time{}, nil
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid SOURCE_DATE_EPOCH %q: %w", v, err)
	}
	return time.Unix(sec, 0).UTC(), nil
}
