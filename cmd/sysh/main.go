// Command sysh is the syskit shell: it reads command lines from stdin and
// executes them through the pipeline engine.
package main

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/syskit/syskit/lib/atexit"
	"github.com/syskit/syskit/lib/logging"
	"github.com/syskit/syskit/lib/metrics"
	"github.com/syskit/syskit/shell"
)

// levelFlag is a pflag.Value that validates the level as it is set.
type levelFlag string

func (l *levelFlag) String() string { return string(*l) }

func (l *levelFlag) Type() string { return "level" }

func (l *levelFlag) Set(s string) error {
	if err := logging.SetLevel(s); err != nil {
		return err
	}
	*l = levelFlag(s)
	return nil
}

var _ pflag.Value = (*levelFlag)(nil)

var (
	logLevel    = levelFlag("info")
	metricsAddr string
)

var root = &cobra.Command{
	Use:   "sysh",
	Short: "A small shell with pipes, && / || branching and redirection",
	Long: `sysh reads command lines from standard input and executes them.

Commands may be joined with | into pipelines and with && / || into
conditional chains. The final command of a line may redirect stdout with
> or >> and may be backgrounded with &. cd and exit are builtins.

The process exit code is the last executed command's, or the argument of
an explicit exit.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if metricsAddr != "" {
			srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
			go func() {
				if err := srv.ListenAndServe(); err != http.ErrServerClosed {
					logging.Errorf(nil, "metrics server: %v", err)
				}
			}()
			atexit.Register(func() { _ = srv.Close() })
			logging.Infof(nil, "serving metrics on %s", metricsAddr)
		}

		interp := shell.NewInterp(os.Stdin, os.Stderr)
		code := interp.Run()
		atexit.Run()
		os.Exit(code)
		return nil
	},
}

func init() {
	flags := root.Flags()
	flags.Var(&logLevel, "log-level", "logging level (debug, info, warning, error)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
}

func main() {
	if err := root.Execute(); err != nil {
		logging.Errorf(nil, "%v", err)
		atexit.Run()
		os.Exit(2)
	}
}
