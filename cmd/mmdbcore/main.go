// Command mmdbcore opens a MaxMind DB file and either looks up an address
// in it or runs the JSON structural indexer over a file, printing the
// result.
package main

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"

	"github.com/spf13/cobra"
	"github.com/student/mmdbcore"
	"github.com/student/mmdbcore/cache"
	"github.com/student/mmdbcore/jsonidx"
	"go.uber.org/zap"
)

var verbose bool

func newLogger() *zap.SugaredLogger {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		// Logging setup failed; fall back to a no-op logger rather than
		// aborting a lookup over it.
		logger = zap.NewNop()
	}
	return logger.Sugar()
}

func runLookup(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync() //nolint:errcheck // best-effort flush

	dbPath := args[0]
	addr := args[1]

	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return fmt.Errorf("invalid IP address %q: %w", addr, err)
	}

	useCache, err := cmd.Flags().GetBool("cache")
	if err != nil {
		return err
	}

	var openOpts []mmdbcore.ReaderOption
	if useCache {
		openOpts = append(openOpts, mmdbcore.WithCache(cache.NewSharedProvider(cache.DefaultOptions()).Acquire()))
	}

	log.Infow("opening database", "path", dbPath, "cache", useCache)
	reader, err := mmdbcore.Open(dbPath, openOpts...)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer reader.Close() //nolint:errcheck // best-effort close

	result := reader.Lookup(ip)

	var record any
	if err := result.Decode(&record); err != nil {
		return fmt.Errorf("decoding record for %s: %w", addr, err)
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	log.Infow("lookup complete", "ip", addr)
	fmt.Println(string(out))
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync() //nolint:errcheck // best-effort flush

	jsonPath := args[0]
	maxEntries, err := cmd.Flags().GetInt("max-entries")
	if err != nil {
		return err
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", jsonPath, err)
	}

	out := make([]uint32, maxEntries)
	n, status := jsonidx.Index(data, out)

	log.Infow("indexed file", "path", jsonPath, "entries", n, "status", status)

	result := struct {
		Entries []uint32 `json:"entries"`
		Status  int      `json:"status"`
	}{
		Entries: out[:n],
		Status:  status,
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	fmt.Println(string(encoded))
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "mmdbcore",
		Short: "Inspect MaxMind DB files and index JSON documents",
		Long:  "mmdbcore opens MaxMind DB files for address lookups and runs the allocation-free JSON structural indexer over arbitrary JSON files.",
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable development logging")

	lookupCmd := &cobra.Command{
		Use:   "lookup <database> <ip>",
		Short: "Look up an IP address in a MaxMind DB file",
		Args:  cobra.ExactArgs(2),
		RunE:  runLookup,
	}
	lookupCmd.Flags().Bool("cache", false, "intern decoded strings and map keys through a shared cache")

	indexCmd := &cobra.Command{
		Use:   "index <file.json>",
		Short: "Run the JSON structural indexer over a file",
		Args:  cobra.ExactArgs(1),
		RunE:  runIndex,
	}
	indexCmd.Flags().Int("max-entries", 1024, "size of the output buffer in uint32 slots (each indexed key or value uses two)")

	rootCmd.AddCommand(lookupCmd, indexCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
