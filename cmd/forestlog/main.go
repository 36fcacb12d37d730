// Command forestlog records and lists forest-change observations on a
// key-value ledger, and can serve a local ledger over HTTP.
//
// Usage:
//
//	forestlog [-config file] serve
//	forestlog [-config file] list [-search term]
//	forestlog [-config file] add -location L [-year Y] [-forest T] [-change C] [-satellite S] [-yes]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/karasz/forestlog"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "forestlog:", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: forestlog [-config file] <serve|list|add> [flags]")
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("forestlog", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "forestlog.toml", "TOML config file")
	storage := fs.String("storage", "", "Storage type: memory, sqlite, file, pebble, leveldb, http, proto")
	storagePath := fs.String("storage-path", "", "Database file or directory")
	storageURL := fs.String("storage-url", "", "Ledger service URL")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := forestlog.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *storage != "" {
		cfg.Storage.Type = *storage
	}
	if *storagePath != "" {
		cfg.Storage.Path = *storagePath
	}
	if *storageURL != "" {
		cfg.Storage.URL = *storageURL
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	rest := fs.Args()
	if len(rest) == 0 {
		usage(stderr)
		return errors.New("missing command")
	}
	if rest[0] == "serve" && cfg.Storage.Signed {
		// The server has no signer to connect, so every PUT would fail.
		return errors.New("serve: signed storage is client-side only; unset storage.signed")
	}

	log := forestlog.NewLogger(cfg.Logging.Level, stderr)
	metrics := forestlog.NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return err
	}

	kv, closer, err := forestlog.OpenKVStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			log.Error("close storage", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd := rest[0]; cmd {
	case "serve":
		srv := forestlog.NewServer(kv, log)
		srv.Gatherer = reg
		log.Info("serving ledger", "addr", cfg.Server.Addr, "storage", cfg.Storage.Type)
		if cfg.Server.Cert != "" {
			return srv.ListenAndServeTLS(cfg.Server.Addr, cfg.Server.Cert, cfg.Server.Key)
		}
		return srv.ListenAndServe(cfg.Server.Addr)
	case "list":
		return listCmd(ctx, rest[1:], cfg, kv, log, metrics, stdout, stderr)
	case "add":
		return addCmd(ctx, rest[1:], cfg, kv, log, metrics, stdin, stdout, stderr)
	default:
		usage(stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func openStore(cfg *forestlog.Config, kv forestlog.KVStore, log forestlog.Logger, m *forestlog.Metrics) (*forestlog.RecordStore, error) {
	sc, err := cfg.StoreConfig(log, m)
	if err != nil {
		return nil, err
	}
	return forestlog.NewRecordStore(kv, sc)
}

func listCmd(ctx context.Context, args []string, cfg *forestlog.Config, kv forestlog.KVStore,
	log forestlog.Logger, m *forestlog.Metrics, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	search := fs.String("search", "", "Filter by location or forest type")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(cfg, kv, log, m)
	if err != nil {
		return err
	}
	vm := forestlog.NewViewModel(store, cfg.SubmitterConfig(log))
	defer vm.Submitter().Close()

	if err := vm.Refresh(ctx); err != nil {
		return err
	}
	vm.SetSearch(*search)
	printRecords(stdout, vm.Visible(), vm.Stats())
	return nil
}

func printRecords(w io.Writer, records []forestlog.Record, st forestlog.Stats) {
	_, _ = fmt.Fprintf(w, "Total: %d  Deforestation: %d  Reforestation: %d\n\n",
		st.Total, st.Deforestation, st.Reforestation)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tCREATED\tLOCATION\tYEAR\tFOREST\tCHANGE")
	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Created().UTC().Format(time.DateTime), r.Location, r.Year, r.ForestType, r.ChangeType)
	}
	_ = tw.Flush()
}

func addCmd(ctx context.Context, args []string, cfg *forestlog.Config, kv forestlog.KVStore,
	log forestlog.Logger, m *forestlog.Metrics, stdin io.Reader, stdout, stderr io.Writer) error {
	draft := forestlog.NewDraft(time.Now())

	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(stderr)
	location := fs.String("location", "", "Location of the observation")
	year := fs.Int("year", draft.Year, "Year of the observation")
	forest := fs.String("forest", string(draft.ForestType), "Forest type: Tropical, Temperate, Boreal, Subtropical")
	change := fs.String("change", string(draft.ChangeType), "Change type: deforestation, reforestation")
	satellite := fs.String("satellite", "", "Satellite data (JSON)")
	yes := fs.Bool("yes", false, "Approve the ledger write without prompting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	draft.Location = *location
	draft.Year = *year
	draft.ForestType = forestlog.ForestType(*forest)
	draft.ChangeType = forestlog.ChangeType(*change)
	draft.SatelliteData = *satellite

	if signed, ok := kv.(*forestlog.SignedKVStore); ok {
		signed.Connect(promptSigner(stdin, stdout, *yes))
	}

	store, err := openStore(cfg, kv, log, m)
	if err != nil {
		return err
	}
	sc := cfg.SubmitterConfig(log)
	sc.OnChange = func(st forestlog.Status) {
		if st.Message != "" {
			_, _ = fmt.Fprintln(stdout, st.Message)
		}
	}
	vm := forestlog.NewViewModel(store, sc)
	defer vm.Submitter().Close()

	vm.Submitter().SetDraft(draft)
	rec, err := vm.Submit(ctx)
	var partial *forestlog.PartialWriteError
	if errors.As(err, &partial) {
		log.Error("record stored but not indexed", "id", partial.ID)
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Stored %s\n", rec.ID)
	return nil
}

// promptSigner asks on stdin before each ledger write unless autoApprove.
func promptSigner(stdin io.Reader, stdout io.Writer, autoApprove bool) forestlog.Signer {
	in := bufio.NewReader(stdin)
	return forestlog.SignerFunc(func(ctx context.Context, key string, value []byte) error {
		if autoApprove {
			return nil
		}
		_, _ = fmt.Fprintf(stdout, "Approve write of %d bytes to %s? [y/N] ", len(value), key)
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if answer := strings.ToLower(strings.TrimSpace(line)); answer == "y" || answer == "yes" {
			return nil
		}
		return forestlog.ErrUserDeclined
	})
}
