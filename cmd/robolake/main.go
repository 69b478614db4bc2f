// Package main implements the robolake binary: convert robot-sensor event
// logs into rectangular tables, register them in a local catalog, and query
// the catalog with SQL.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli"

	"github.com/robolake/robolake/internal/catalog"
	"github.com/robolake/robolake/internal/config"
	"github.com/robolake/robolake/internal/convert"
	"github.com/robolake/robolake/internal/source"
	"github.com/robolake/robolake/internal/storage"
	"github.com/robolake/robolake/internal/table"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	log.SetFlags(0)

	app := cli.NewApp()
	app.Name = "robolake"
	app.Usage = "Flatten robot-sensor event logs into SQL-queryable tables"
	app.Version = fmt.Sprintf("%s (commit: %s)", version, commit)
	app.Commands = []cli.Command{
		convertCommand(),
		infoCommand(),
		initCommand(),
		queryCommand(),
		tablesCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("robolake: %v", err)
	}
}

func convertCommand() cli.Command {
	return cli.Command{
		Name:      "convert",
		Usage:     "Convert a recording into one table per channel",
		ArgsUsage: "<recording>",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "config, c",
				Usage: "Load configuration from `FILE` (YAML or JSON)",
			},
			cli.StringFlag{
				Name:  "format, f",
				Usage: "Output format: sqlite, csv, json",
			},
			cli.StringSliceFlag{
				Name:  "topics, t",
				Usage: "Convert only the named channels (repeatable or comma-separated)",
			},
			cli.StringFlag{
				Name:  "output, o",
				Usage: "Standalone artifact `PATH` (file for one channel, directory otherwise)",
			},
			cli.StringFlag{
				Name:  "catalog",
				Usage: "Register converted tables in the catalog at `ROOT`",
			},
			cli.BoolFlag{
				Name:  "overwrite",
				Usage: "Replace existing catalog entries under the same name",
			},
			cli.IntFlag{
				Name:  "concurrency",
				Usage: "Number of channels converted in parallel",
			},
			cli.IntFlag{
				Name:  "max-array-slots",
				Usage: "Array slot bound before collapsing to json_text",
			},
			cli.BoolFlag{
				Name:  "publish",
				Usage: "Upload artifacts to the configured object storage",
			},
		},
		Action: runConvert,
	}
}

func runConvert(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("convert: exactly one recording path required", 1)
	}
	sourceFile := c.Args().First()

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if v := c.String("format"); v != "" {
		cfg.Convert.Format = v
	}
	if v := c.Int("concurrency"); v > 0 {
		cfg.Convert.Concurrency = v
	}
	if v := c.Int("max-array-slots"); v > 0 {
		cfg.Flatten.MaxArraySlots = v
	}
	if err := cfg.Validate(); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	if !table.ValidFormat(cfg.Convert.Format) {
		return cli.NewExitError(fmt.Sprintf("convert: unknown format %q", cfg.Convert.Format), 1)
	}
	if c.String("output") == "" && c.String("catalog") == "" {
		return cli.NewExitError("convert: at least one of --output and --catalog is required", 1)
	}

	ctx := context.Background()

	opts := convert.Options{
		Format:        cfg.Convert.Format,
		Topics:        splitTopics(c.StringSlice("topics")),
		OutputPath:    c.String("output"),
		Overwrite:     c.Bool("overwrite"),
		Concurrency:   cfg.Convert.Concurrency,
		MaxArraySlots: cfg.Flatten.MaxArraySlots,
	}

	if root := c.String("catalog"); root != "" {
		cat, err := catalog.Open(root)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		defer cat.Close()
		opts.Catalog = cat
	}

	if c.Bool("publish") {
		store, bucket, err := openStore(ctx, cfg)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		opts.Store = store
		opts.PublishBucket = bucket
		opts.PublishPrefix = cfg.Storage.Prefix
	}

	src, err := source.OpenLog(sourceFile)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer src.Close()

	report, err := convert.Run(ctx, src, sourceFile, opts)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	failed := 0
	for _, ch := range report.Channels {
		if ch.Err != nil {
			failed++
		}
	}
	fmt.Printf("converted %d rows across %d channels (%d skipped)\n",
		report.Converted(), len(report.Channels), report.Skipped())
	if failed > 0 {
		return cli.NewExitError(fmt.Sprintf("convert: %d channels failed", failed), 1)
	}
	return nil
}

func infoCommand() cli.Command {
	return cli.Command{
		Name:      "info",
		Usage:     "Summarize a recording without converting it",
		ArgsUsage: "<recording>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.NewExitError("info: exactly one recording path required", 1)
			}
			src, err := source.OpenLog(c.Args().First())
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			defer src.Close()

			summary, err := convert.Summarize(src)
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}

			fmt.Printf("messages: %d\n", summary.MessageCount)
			fmt.Printf("duration: %.3fs\n", summary.Duration())
			if summary.DecodeErrors > 0 {
				fmt.Printf("decode errors: %d\n", summary.DecodeErrors)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TOPIC\tTYPE\tMESSAGES")
			for _, t := range summary.Topics {
				fmt.Fprintf(w, "%s\t%s\t%d\n", t.Topic, t.Type, t.MessageCount)
			}
			return w.Flush()
		},
	}
}

func initCommand() cli.Command {
	return cli.Command{
		Name:      "init",
		Usage:     "Create an empty catalog",
		ArgsUsage: "<root>",
		Flags: []cli.Flag{
			cli.BoolFlag{
				Name:  "force",
				Usage: "Destroy and recreate an existing catalog",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.NewExitError("init: exactly one catalog root required", 1)
			}
			root := c.Args().First()
			if err := catalog.Init(root, c.Bool("force")); err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			fmt.Printf("initialized catalog at %s\n", root)
			return nil
		},
	}
}

func queryCommand() cli.Command {
	return cli.Command{
		Name:      "query",
		Usage:     "Run SQL against every table registered in a catalog",
		ArgsUsage: "<sql>",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "config, c",
				Usage: "Load configuration from `FILE` (YAML or JSON)",
			},
			cli.StringFlag{
				Name:  "catalog",
				Value: ".",
				Usage: "Catalog `ROOT` to query",
			},
		},
		Action: runQuery,
	}
}

func runQuery(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("query: exactly one SQL string required", 1)
	}
	sqlText := c.Args().First()

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	cat, err := catalog.Open(c.String("catalog"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer cat.Close()

	ctx := context.Background()
	var qopts catalog.QueryOptions
	if cfg.Storage.Type == "s3" {
		store, _, err := openStore(ctx, cfg)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		qopts.Store = store
	}

	rows, err := cat.QueryWithOptions(ctx, sqlText, qopts)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(rows.Columns(), "\t"))
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		fields := make([]string, len(values))
		for i, v := range values {
			fields[i] = formatValue(v)
		}
		fmt.Fprintln(w, strings.Join(fields, "\t"))
	}
	if err := rows.Err(); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return w.Flush()
}

func tablesCommand() cli.Command {
	return cli.Command{
		Name:  "tables",
		Usage: "List, inspect, or remove registered tables",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "catalog",
				Value: ".",
				Usage: "Catalog `ROOT`",
			},
			cli.StringFlag{
				Name:  "info",
				Usage: "Print the full entry for `TABLE` as JSON",
			},
			cli.StringFlag{
				Name:  "rm",
				Usage: "Remove `TABLE` from the catalog",
			},
		},
		Action: runTables,
	}
}

func runTables(c *cli.Context) error {
	cat, err := catalog.Open(c.String("catalog"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer cat.Close()

	ctx := context.Background()

	if name := c.String("rm"); name != "" {
		if err := cat.Remove(ctx, name); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		fmt.Printf("removed table %s\n", name)
		return nil
	}

	if name := c.String("info"); name != "" {
		entry, err := cat.Get(ctx, name)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		out, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		fmt.Println(string(out))
		return nil
	}

	entries, err := cat.List(ctx)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tROWS\tCOLUMNS\tSOURCE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", e.TableName, e.RowCount, len(e.Schema.Columns), e.SourceFile)
	}
	return w.Flush()
}

// splitTopics expands repeated and comma-separated topic flags into one list.
func splitTopics(raw []string) []string {
	var topics []string
	for _, entry := range raw {
		for _, topic := range strings.Split(entry, ",") {
			if topic = strings.TrimSpace(topic); topic != "" {
				topics = append(topics, topic)
			}
		}
	}
	return topics
}

// loadConfig resolves configuration with file < environment precedence;
// flags are applied by the callers on top.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

// openStore builds the configured object storage backend.
func openStore(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, string, error) {
	switch cfg.Storage.Type {
	case "s3":
		store, err := storage.NewS3Storage(ctx, cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
		})
		if err != nil {
			return nil, "", err
		}
		return store, cfg.Storage.S3.Bucket, nil
	default:
		return nil, "", fmt.Errorf("storage type %q cannot publish artifacts", cfg.Storage.Type)
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
