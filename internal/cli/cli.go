// Package cli is the kiln command line. Each pipeline stage is a
// subcommand; with none, kiln builds the stylesheet and starts the dev
// server.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	ik "github.com/sjc5/kiln/internal/kiln"
	"github.com/spf13/cobra"
)

type options struct {
	root   string
	source string
	build  string
	host   string
	port   int
	lessc  string
}

func (o *options) config() *ik.Config {
	return &ik.Config{
		RootDir:   o.root,
		SourceDir: o.source,
		BuildDir:  o.build,
		Host:      o.host,
		Port:      o.port,
		Lessc:     o.lessc,
	}
}

// NewRootCmd returns the kiln command with every stage attached.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "kiln",
		Short: "Kiln builds a static site and serves it with live reload",
		Long: `Kiln compiles LESS to a prefixed, minified stylesheet, minifies pages and
scripts, copies images and fonts and assembles an SVG sprite.
Run without a subcommand to compile styles and start the dev server.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return opts.config().Dev(ctx)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.root, "root", ".", "Project directory")
	flags.StringVar(&opts.source, "source", "source", "Source directory, relative to --root")
	flags.StringVar(&opts.build, "build", "build", "Build directory, relative to --root")
	flags.StringVar(&opts.host, "host", "localhost", "Dev server host")
	flags.IntVarP(&opts.port, "port", "p", ik.DefaultPort, "Dev server port")
	flags.StringVar(&opts.lessc, "lessc", "", "External lessc binary to compile styles with")

	stages := []struct {
		name  string
		short string
		run   func(*ik.Config) error
	}{
		{ik.StageClean, "Remove the build directory", (*ik.Config).Clean},
		{ik.StageStyles, "Compile LESS into css/style.min.css", (*ik.Config).CompileStyles},
		{ik.StageMinifyHTML, "Minify every page", (*ik.Config).MinifyMarkup},
		{ik.StageMinifyJS, "Minify js/script.js", (*ik.Config).MinifyScript},
		{ik.StageCopy, "Copy images and fonts", (*ik.Config).CopyAssets},
		{ik.StageSprite, "Combine icons into img/sprite.svg", (*ik.Config).BuildSprite},
	}
	for _, st := range stages {
		rootCmd.AddCommand(&cobra.Command{
			Use:   st.name,
			Short: st.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return st.run(opts.config())
			},
		})
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   ik.StageBuild,
		Short: "Clean, then run every stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return opts.config().BuildContext(ctx)
		},
	})

	return rootCmd
}

// Execute runs the command line and returns the first error.
func Execute(ctx context.Context, args []string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}
