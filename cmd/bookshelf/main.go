package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bookshelf/internal/backend/httpclient"
	"bookshelf/internal/catalog"
	"bookshelf/internal/session"
	"bookshelf/internal/shelf"
	"bookshelf/pkg/utils"
)

type options struct {
	api        string
	tokenPath  string
	catalogURL string
	configPath string
	verbose    bool
	timeout    time.Duration
}

var opts options

// app is the client core shared by every command.
type app struct {
	log      *zap.Logger
	client   *httpclient.Client
	session  *session.Manager
	shelf    *shelf.Synchronizer
	searcher catalog.Searcher
	ingester *catalog.Ingester
	unsub    func()
}

var rootCmd = &cobra.Command{
	Use:           "bookshelf",
	Short:         "Track the books you want to read, are reading and have read",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.api, "api", "", "api-server base URL (default "+defaultBaseURL+")")
	pf.StringVar(&opts.tokenPath, "token", "", "session file path (default ~/.bookshelf/session.json)")
	pf.StringVar(&opts.catalogURL, "catalog", "", "search Open Library directly at this URL instead of through the api-server")
	pf.StringVar(&opts.configPath, "config", defaultConfigPath(), "config file")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	pf.DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-command timeout")

	rootCmd.AddCommand(authCmd, profileCmd, searchCmd, shelfCmd, watchCmd)
}

// newApp wires the core and waits until the stored session, if any, has been
// resolved into an identity and profile.
func newApp(ctx context.Context) (*app, error) {
	fc, err := loadFileConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	fc.resolve(&opts)

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger, err := utils.NewLogger(level, true)
	if err != nil {
		return nil, err
	}

	client := httpclient.New(opts.api, opts.tokenPath, logger.Named("backend"))

	catalogURL := strings.TrimRight(opts.api, "/") + "/catalog"
	if opts.catalogURL != "" {
		catalogURL = opts.catalogURL
	}

	a := &app{
		log:      logger,
		client:   client,
		session:  session.NewManager(client, logger.Named("session")),
		shelf:    shelf.NewSynchronizer(client, logger.Named("shelf")),
		searcher: catalog.NewClient(catalogURL),
		ingester: catalog.NewIngester(client, logger.Named("ingest")),
	}
	a.unsub = a.session.Subscribe(func(st session.State) {
		if err := a.shelf.HandleSession(ctx, st); err != nil {
			logger.Debug("shelf follow session", zap.Error(err))
		}
	})
	a.session.Start()

	select {
	case <-a.session.Ready():
	case <-ctx.Done():
		a.Close()
		return nil, ctx.Err()
	}
	return a, nil
}

func (a *app) Close() {
	a.unsub()
	a.session.Close()
	_ = a.log.Sync()
}

// requireUser returns the signed-in user id or a hint to sign in.
func (a *app) requireUser() (string, error) {
	st := a.session.State()
	if !st.Authenticated() {
		return "", fmt.Errorf("not signed in; run `bookshelf auth signin`")
	}
	return st.UserID(), nil
}

// withApp runs fn with a wired core and a timeout-bound context.
func withApp(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
		defer cancel()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a, cmd, args)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
