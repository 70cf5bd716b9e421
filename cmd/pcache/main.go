// pcache inspects and manages the on-disk stores written by the persist
// package. It consumes only the backend contract (List, Delete,
// DeletePrefix), plus a cached shell-command runner built on the same
// wrapper the library exports.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cachekit/persist"
	"github.com/cachekit/persist/backend"
)

var (
	flagBackend string
	flagPath    string
)

// logHandler writes "2006-01-02 15:04:05 L message" lines to stderr.
type logHandler struct{}

func (logHandler) HandleLog(e *log.Entry) error {
	fmt.Fprintf(os.Stderr, "%s %.1s %s\n",
		time.Now().Format("2006-01-02 15:04:05"),
		strings.ToUpper(e.Level.String()), e.Message)
	return nil
}

func initLog() {
	level := os.Getenv("PCACHE_LOG")
	if level == "" {
		level = "error"
	}
	log.SetHandler(logHandler{})
	log.SetLevelFromString(level)
}

func openStore(ctx context.Context) (backend.Backend, error) {
	kind := backend.Kind(flagBackend)
	path := flagPath
	if path == "" {
		var err error
		path, err = backend.DefaultPath(kind)
		if err != nil {
			return nil, err
		}
	}
	log.Debugf("opening %s store at %s", kind, path)
	return backend.Open(ctx, kind, path)
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [prefix]",
		Short: "List cache entries, their sizes and expiry state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}
			items, err := store.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}

			now := time.Now()
			var total uint64
			var expired int
			for _, it := range items {
				state := "expires " + humanize.Time(it.Entry.ExpiresAt)
				if it.Entry.Expired(now) {
					state = "expired " + humanize.Time(it.Entry.ExpiresAt)
					expired++
				}
				size := uint64(len(it.Entry.Value))
				total += size
				fmt.Fprintf(cmd.OutOrStdout(), "%-72s %8s  %s\n", it.Key, humanize.Bytes(size), state)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entries (%d expired), %s\n",
				len(items), expired, humanize.Bytes(total))
			return nil
		},
	}
}

func newClearCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clear [prefix]",
		Short: "Delete cache entries matching a function-identity prefix",
		Long: `Delete cache entries whose keys start with the given prefix,
typically a function identity such as "github.com/acme/geo.Lookup".
Clearing a prefix that matches nothing is an error; clearing an already
empty store with --all is not.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf("a prefix argument or --all is required")
			}
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}
			n, err := store.DeletePrefix(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			if n == 0 && !all {
				return fmt.Errorf("no entries match %q", prefix)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d entries\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "clear the entire store")
	return cmd
}

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete entries whose TTL has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.List(cmd.Context(), "")
			if err != nil {
				return err
			}
			now := time.Now()
			var pruned int
			for _, it := range items {
				if !it.Entry.Expired(now) {
					continue
				}
				ok, err := store.Delete(cmd.Context(), it.Key)
				if err != nil {
					return err
				}
				if ok {
					pruned++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d expired entries\n", pruned)
			return nil
		},
	}
}

// cmdInput is the argument tuple of the cached runner: the command line
// and, optionally, the directory it runs in.
type cmdInput struct {
	Args []string
	Dir  string
}

func newRunCmd() *cobra.Command {
	var ttlFlag string
	var includeDir bool
	cmd := &cobra.Command{
		Use:   "run [flags] -- command [args…]",
		Short: "Run a command with its stdout memoized in the cache",
		Long: `Run a command and cache its stdout under the command line (and,
with --include-dir, the working directory), so repeated invocations
within the TTL print the cached output without re-running the command.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := persist.ParseTTL(ttlFlag)
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			runner := persist.Wrap(store, ttl, func(ctx context.Context, in cmdInput) (string, error) {
				log.Debugf("executing %s", strings.Join(in.Args, " "))
				c := exec.CommandContext(ctx, in.Args[0], in.Args[1:]...)
				c.Dir = in.Dir
				out, err := c.Output()
				if err != nil {
					var exitErr *exec.ExitError
					if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
						os.Stderr.Write(exitErr.Stderr)
					}
					return "", err
				}
				return string(out), nil
			}, persist.WithName("pcache/run"))

			in := cmdInput{Args: args}
			if includeDir {
				if in.Dir, err = os.Getwd(); err != nil {
					return err
				}
			}
			out, err := runner.Call(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&ttlFlag, "ttl", "1h", "how long to serve the cached output (e.g. 90s, 45m, 1w2d)")
	cmd.Flags().BoolVar(&includeDir, "include-dir", false, "key the cache on the working directory as well")
	return cmd
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pcache",
		Short:         "Inspect and manage persist caches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagBackend, "backend", string(backend.KindSQLite),
		"store variant: yaml, msgpack, or sqlite")
	root.PersistentFlags().StringVar(&flagPath, "path", "",
		"store path (defaults to the variant's file under the user cache dir)")
	root.AddCommand(newListCmd(), newClearCmd(), newPruneCmd(), newRunCmd())
	return root
}

func main() {
	initLog()
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "pcache: %v\n", err)
		os.Exit(1)
	}
}
