package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/haukened/rr-urlcheck/internal/urlcheck/common/log"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/config"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/domain"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/repos/dbsource"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/repos/dbsource/bolt"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/repos/regexlist"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/repos/verdictcache/lru"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/services/phishcheck"
)

const (
	version = "0.1.0-dev"
	appName = "rr-urlcheck"
)

var (
	// errPhishing makes the process exit 2 when a checked link is phishing.
	errPhishing = errors.New("phishing link")
	// errDisabled makes the process exit 3 when a list failed to load and no
	// verdict could be given.
	errDisabled = errors.New("phishing check disabled")
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errPhishing):
		os.Exit(2)
	case errors.Is(err, errDisabled):
		os.Exit(3)
	default:
		os.Exit(1)
	}
}

// Application holds the loaded lists and the checker built on them.
type Application struct {
	config  *config.AppConfig
	white   *regexlist.Matcher
	black   *regexlist.Matcher
	store   *bolt.Store
	checker *phishcheck.Checker
}

func newRootCmd() *cobra.Command {
	var cfg *config.AppConfig
	root := &cobra.Command{
		Use:           appName,
		Short:         "Classify links against phishing rule databases",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
				return fmt.Errorf("logging configuration error: %w", err)
			}
			return nil
		},
	}
	cfgFn := func() *config.AppConfig { return cfg }
	root.AddCommand(newCheckCmd(cfgFn), newImportCmd(cfgFn), newStatsCmd(cfgFn))
	return root
}

func newCheckCmd(cfg func() *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "check <real-url> [display-url]",
		Short: "Check one link; the display URL defaults to the real URL",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApplication(cmd.Context(), cfg())
			if err != nil {
				return err
			}
			defer app.Close()

			link := domain.Link{RealURL: args[0], DisplayURL: args[0]}
			if len(args) == 2 {
				link.DisplayURL = args[1]
			}
			d, err := app.checker.Check(link)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s", d.Verdict, d.Reason)
			if d.Pattern != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\t%s", d.Pattern)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			switch d.Verdict {
			case domain.Phishing:
				return errPhishing
			case domain.Disabled:
				return errDisabled
			}
			return nil
		},
	}
}

func newImportCmd(cfg func() *config.AppConfig) *cobra.Command {
	var list, feed string
	var plain bool
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import database files into the feed store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			if c.Store == "" {
				return errors.New("import requires URLCHECK_STORE")
			}
			store, err := bolt.New(c.Store, nil)
			if err != nil {
				return err
			}
			defer store.Close()

			var errs error
			for _, path := range args {
				p := dbsource.PolarityOf(path)
				if list != "" {
					if p, err = domain.ParsePolarity(list); err != nil {
						return err
					}
				}
				name := feed
				if name == "" {
					name = feedName(path)
				}
				if plain {
					p = domain.Blacklist
				}
				n, err := importFile(store, name, p, path, plain)
				if err != nil {
					errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, err))
					continue
				}
				log.Info(map[string]any{"feed": name, "polarity": p.String(), "lines": n}, "feed_imported")
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\n", p, name, n)
			}
			return errs
		},
	}
	cmd.Flags().StringVar(&list, "list", "", "white or black (default: guessed from the file extension)")
	cmd.Flags().StringVar(&feed, "feed", "", "feed name (default: file name)")
	cmd.Flags().BoolVar(&plain, "plain", false, "file is a plain list of protected domains")
	return cmd
}

func newStatsCmd(cfg func() *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Load every configured list and report its size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApplication(cmd.Context(), cfg())
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			for _, l := range []struct {
				name string
				m    *regexlist.Matcher
			}{{"whitelist", app.white}, {"blacklist", app.black}} {
				if l.m == nil {
					fmt.Fprintf(out, "%s\tempty\n", l.name)
					continue
				}
				st := l.m.Stats()
				fmt.Fprintf(out, "%s\t%s\trules=%d suffixes=%d regexes=%d hashes=%d longest=%d\n",
					l.name, st.State, st.Rules, st.Suffixes, st.Regexes, st.Hashes, st.LongestSuffix)
			}
			if app.store != nil {
				feeds, err := app.store.Feeds()
				if err != nil {
					return err
				}
				for _, f := range feeds {
					fmt.Fprintf(out, "feed\t%s\t%s\t%d\t%s\n", f.Polarity, f.Name, f.Lines, f.ImportedAt.Format("2006-01-02T15:04:05Z"))
				}
			}
			return nil
		},
	}
}

// buildApplication loads and builds both lists, then wires the checker.
func buildApplication(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	logger := log.GetLogger()
	app := &Application{config: cfg}

	if cfg.Store != "" {
		store, err := bolt.New(cfg.Store, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open feed store: %w", err)
		}
		app.store = store
	}

	var err error
	if app.white, err = buildList(ctx, cfg, domain.Whitelist, cfg.Whitelist, app.store, logger); err != nil {
		return nil, multierr.Append(err, app.Close())
	}
	if app.black, err = buildList(ctx, cfg, domain.Blacklist, cfg.Blacklist, app.store, logger); err != nil {
		return nil, multierr.Append(err, app.Close())
	}

	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to create decision cache: %w", err), app.Close())
	}
	opts := phishcheck.Options{Cache: cache, Logger: logger}
	// nil pointers must not become non-nil interfaces
	if app.white != nil {
		opts.Whitelist = app.white
	}
	if app.black != nil {
		opts.Blacklist = app.black
	}
	app.checker = phishcheck.New(opts)

	log.Info(map[string]any{
		"version":    version,
		"whitelist":  cfg.Whitelist,
		"blacklist":  cfg.Blacklist,
		"store":      cfg.Store,
		"cache_size": cfg.CacheSize,
	}, "lists_ready")
	return app, nil
}

// buildList loads files then stored feeds of one polarity. It returns a nil
// matcher when there is nothing to load. A list whose content fails to load is
// returned in the failed state so the checker reports itself disabled; files
// that cannot be opened are an error.
func buildList(ctx context.Context, cfg *config.AppConfig, p domain.Polarity, files []string, store *bolt.Store, logger log.Logger) (*regexlist.Matcher, error) {
	var stored io.Reader
	if store != nil {
		r, err := store.Reader(p)
		if err != nil {
			return nil, err
		}
		if st := store.Stats(); (p == domain.Whitelist && st.WhitelistLines > 0) || (p == domain.Blacklist && st.BlacklistLines > 0) {
			stored = r
		}
	}
	if len(files) == 0 && stored == nil {
		return nil, nil
	}

	m := regexlist.New(regexlist.Options{
		Name:               p.String(),
		Logger:             logger,
		FunctionalityLevel: cfg.FunctionalityLevel,
		MaxQueryLen:        cfg.MaxQueryLen,
		HashFPRate:         cfg.HashFPRate,
	})
	failed := func(source string, err error) (*regexlist.Matcher, error) {
		err = fmt.Errorf("%s %s: %w", p, source, err)
		if m.State() != domain.StateFailed || ctx.Err() != nil {
			return nil, err
		}
		logger.Error(map[string]any{"list": p.String(), "source": source, "error": err.Error()}, "list_failed")
		return m, nil
	}
	for _, path := range files {
		if err := loadFile(ctx, m, p, path); err != nil {
			return failed(path, err)
		}
	}
	if stored != nil {
		if err := m.Load(ctx, stored, p); err != nil {
			return failed("feed store", err)
		}
	}
	if err := m.Build(); err != nil {
		return failed("build", err)
	}
	return m, nil
}

func loadFile(ctx context.Context, m *regexlist.Matcher, p domain.Polarity, path string) (err error) {
	rc, err := dbsource.Open(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, rc.Close()) }()
	return m.Load(ctx, rc, p)
}

func importFile(store *bolt.Store, feed string, p domain.Polarity, path string, plain bool) (n uint64, err error) {
	rc, err := dbsource.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { err = multierr.Append(err, rc.Close()) }()
	if !plain {
		return store.Import(feed, p, rc)
	}
	rules, err := dbsource.ParsePlainList(rc, log.GetLogger())
	if err != nil {
		return 0, err
	}
	return store.Import(feed, p, strings.NewReader(strings.Join(rules, "\n")))
}

// feedName strips directories and compression and list extensions.
func feedName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".gz", ".zst", ".wdb", ".pdb", ".db", ".txt"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

// Close releases lists and the feed store.
func (a *Application) Close() error {
	var err error
	if a.white != nil {
		err = multierr.Append(err, a.white.Close())
	}
	if a.black != nil {
		err = multierr.Append(err, a.black.Close())
	}
	if a.store != nil {
		err = multierr.Append(err, a.store.Close())
		a.store = nil
	}
	return err
}
