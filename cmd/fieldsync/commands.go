package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/changebus"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/syncqueue"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app is the state shared by one command invocation.
type app struct {
	v      *viper.Viper
	store  *syncqueue.Store
	client *syncqueue.HTTPCommitter
	queue  *syncqueue.Queue
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fieldsync"
	}
	return filepath.Join(home, ".fieldsync")
}

// newRootCmd builds the command tree. Call app.close after Execute; the
// post-run hook is skipped when a command fails.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:          "fieldsync",
		Short:        "Offline job-order queue for field inspectors",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.open()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.String("server", "http://localhost:8000", "API base URL")
	flags.String("token", "", "access token of the inspector")
	flags.String("holder-id", "", "holder whose stock is cached (usually the inspector's user id)")
	flags.String("data", defaultDataDir(), "directory of the local queue")
	flags.Duration("timeout", 10*time.Second, "per-request timeout")
	flags.Bool("verbose", false, "log debug output")
	_ = a.v.BindPFlags(flags)
	a.v.SetEnvPrefix("FIELDSYNC")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		a.queueCmd(),
		a.syncCmd(),
		a.statusCmd(),
		a.refreshCmd(),
		a.retryCmd(),
		a.discardCmd(),
	)
	return root, a
}

func (a *app) open() error {
	if a.v.GetBool("verbose") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	dir := a.v.GetString("data")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	store, err := syncqueue.Open(dir)
	if err != nil {
		return err
	}
	a.store = store
	a.client = syncqueue.NewHTTPCommitter(syncqueue.HTTPConfig{
		BaseURL:  a.v.GetString("server"),
		Token:    a.v.GetString("token"),
		HolderID: a.v.GetString("holder-id"),
		Timeout:  a.v.GetDuration("timeout"),
		// a single CLI run has no use for a long open timeout
		FailureThreshold: 1,
	})
	a.queue = syncqueue.New(store, a.client, a.client, changebus.Nop{})
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readRequest(path string, stdin io.Reader) (dto.CreateJobOrderRequest, error) {
	var req dto.CreateJobOrderRequest
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return req, err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return req, fmt.Errorf("decode job order: %w", err)
	}
	return req, nil
}

func (a *app) queueCmd() *cobra.Command {
	var (
		file    string
		offline bool
	)
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Capture a job order; commits immediately when online",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := readRequest(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if offline {
				a.client.GoOffline()
			}
			res, err := a.queue.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			if res.Deferred != nil {
				log.Info().Str("offline_id", res.Deferred.OfflineID).Msg("queued for later sync")
				return printJSON(cmd.OutOrStdout(), res.Deferred)
			}
			return printJSON(cmd.OutOrStdout(), res.JobOrder)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON job order, - for stdin")
	cmd.Flags().BoolVar(&offline, "offline", false, "queue without contacting the server")
	return cmd
}

func (a *app) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay queued job orders oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.queue.Sync(cmd.Context())
			if err != nil {
				if errors.Is(err, syncqueue.ErrOffline) {
					return errors.New("server unreachable, queue kept")
				}
				return err
			}
			if len(report.Conflicts) > 0 {
				log.Warn().Int("conflicts", len(report.Conflicts)).Msg("some job orders were refused; they stay queued for the next sync, discard drops them")
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queued items and cached remaining stickers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.queue.Status()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func (a *app) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload cached holdings from the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			hs, err := a.queue.RefreshCache(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), hs)
		},
	}
}

func (a *app) retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <offline-id>",
		Short: "Mark a conflicting job order as pending again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			it, err := a.queue.Retry(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), it)
		},
	}
}

func (a *app) discardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard <offline-id>",
		Short: "Drop a conflicting job order and release its cached sticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			it, err := a.queue.Discard(args[0])
			if err != nil {
				return err
			}
			if _, err := a.queue.Reconcile(); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), it)
		},
	}
}
