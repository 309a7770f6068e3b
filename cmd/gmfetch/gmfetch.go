// The gmfetch command downloads GMail threads matching a query into a
// local cache, skipping threads already fetched by a previous run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/matta/gmfetch/internal/cache"
	"github.com/matta/gmfetch/internal/fetch"
	"github.com/matta/gmfetch/internal/gmail"
	"github.com/matta/gmfetch/internal/gmailhttp"
	"github.com/matta/gmfetch/internal/homedir"
	"github.com/matta/gmfetch/internal/persist"
	"github.com/matta/gmfetch/internal/rawstore"
	"github.com/matta/gmfetch/internal/tracehttp"

	"github.com/pkg/errors"

	_ "github.com/mattn/go-sqlite3"
)

var (
	flagTrace   = flag.Bool("T", false, "request debug tracing")
	flagQuery   = flag.String("q", "", "narrow the listing with a GMail search query")
	flagLimit   = flag.Int("n", 0, "stop after processing this many threads (0 means no limit)")
	flagDB      = flag.String("db", "", "path of the thread index database (default ~/.gmfetch.db)")
	flagCache   = flag.String("cache", "", "directory of the raw thread archive (default ~/.gmfetch)")
	flagNoCache = flag.Bool("no-cache", false, "refetch every thread and remember nothing")
	flagOneMsg  = flag.Bool("one-message-per-thread", false,
		"assume threads never grow, letting the cache skip every known thread")
	flagNoCheck = flag.Bool("no-sanity-check", false, "skip the thread subject consistency check")
	flagSSO     = flag.String("sso", "", "path of the external SSO token command")
	flagAccount = flag.String("account", "", "mail account to authenticate")
	flagAPIKey  = flag.String("api-key", "", "optional developer API key")
)

func newFetchContext(ctx context.Context) (fetch.FetchContext, func(), error) {
	if *flagNoCache {
		return cache.NoCache{}, func() {}, nil
	}

	dbPath := *flagDB
	if dbPath == "" {
		dbPath = filepath.Join(homedir.Get(), ".gmfetch.db")
	}
	db, err := persist.Open(ctx, dbPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to initialize thread index")
	}

	cacheDir := *flagCache
	if cacheDir == "" {
		cacheDir = filepath.Join(homedir.Get(), ".gmfetch")
	}
	raw, err := rawstore.New(cacheDir)
	if err != nil {
		db.Close()
		return nil, nil, errors.Wrap(err, "unable to initialize raw thread archive")
	}

	return cache.NewFilesystem(db, raw), func() { db.Close() }, nil
}

func run() error {
	ctx := context.Background()

	fctx, cleanup, err := newFetchContext(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	http, err := gmailhttp.New(gmailhttp.Config{
		SSOCommand: *flagSSO,
		Account:    *flagAccount,
		APIKey:     *flagAPIKey,
	})
	if err != nil {
		return errors.Wrap(err, "unable to initialize GMail HTTP client")
	}

	s, err := gmail.New(http)
	if err != nil {
		return errors.Wrap(err, "unable to initialize GMail")
	}

	result, err := fetch.New(s, fctx).QueryThreads(ctx, fetch.Options{
		Query:               *flagQuery,
		Limit:               *flagLimit,
		OneMessagePerThread: *flagOneMsg,
		SanityCheck:         !*flagNoCheck,
	})
	if err != nil {
		return errors.Wrap(err, "unable to fetch threads")
	}

	fmt.Printf("Fetched %d threads (%d messages) in %d requests; %d listed, %d processed\n",
		result.Threads.Len(), result.Threads.MessageCount(), result.Progress.Requests,
		result.Progress.Total, result.Progress.Processed)
	if n := len(result.DecodeErrors); n > 0 {
		fmt.Printf("Warning: %d message part bodies could not be decoded\n", n)
	}
	return nil
}

func main() {
	flag.Parse()
	if *flagTrace {
		tracehttp.WrapDefaultTransport()
	}

	if err := run(); err != nil {
		log.Fatalf("Failed: %v\n", err)
	}
	os.Exit(0)
}
