// Package convert orchestrates the conversion pipeline: record source →
// flattener → schema unifier → table writer, with optional catalog
// registration and artifact publication.
package convert

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/robolake/robolake/internal/catalog"
	"github.com/robolake/robolake/internal/flatten"
	"github.com/robolake/robolake/internal/source"
	"github.com/robolake/robolake/internal/storage"
	"github.com/robolake/robolake/internal/table"
	"github.com/robolake/robolake/internal/unify"
	"github.com/robolake/robolake/pkg/types"
)

// Options configures one conversion run.
type Options struct {
	// Format selects the artifact encoding (sqlite, csv, json).
	Format string

	// Topics restricts conversion to the named channels (empty = all).
	Topics []string

	// OutputPath is the standalone artifact destination: a file path when a
	// single channel is converted, a directory otherwise. Empty means no
	// standalone output (catalog-only conversion).
	OutputPath string

	// Catalog, when non-nil, receives one registered table per channel.
	Catalog *catalog.Catalog

	// Overwrite permits replacing existing catalog entries.
	Overwrite bool

	// Concurrency bounds the number of channels converted in parallel.
	Concurrency int

	// MaxArraySlots is the flattener's array slot bound (0 = default).
	MaxArraySlots int

	// Store publishes artifacts to object storage when set together with
	// PublishBucket and PublishPrefix.
	Store         storage.ObjectStorage
	PublishBucket string
	PublishPrefix string
}

// ChannelReport summarizes the conversion of one channel.
type ChannelReport struct {
	Topic        string
	TableName    string
	ArtifactPath string
	RowCount     int64
	Skipped      int64
	Registered   bool
	Err          error
}

// Report summarizes one conversion run. Skipped records that could not be
// attributed to a channel are counted at the run level.
type Report struct {
	SourceFile     string
	Channels       []ChannelReport
	SkippedNoTopic int64
}

// Converted returns the total number of converted rows across channels.
func (r *Report) Converted() int64 {
	var n int64
	for _, ch := range r.Channels {
		n += ch.RowCount
	}
	return n
}

// Skipped returns the total number of skipped records.
func (r *Report) Skipped() int64 {
	n := r.SkippedNoTopic
	for _, ch := range r.Channels {
		n += ch.Skipped
	}
	return n
}

// Run converts every selected channel of src into one table each.
//
// The full record set of a channel is buffered in memory before writing:
// column typing needs a complete scan, so memory is bounded by the largest
// channel. Channels are independent and converted concurrently; per-record
// decode failures are counted and skipped, and a failure in one channel
// never aborts its siblings.
func Run(ctx context.Context, src source.Source, sourceFile string, opts Options) (*Report, error) {
	if opts.Format == "" {
		opts.Format = table.FormatSQLite
	}
	writer, err := table.ForFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.OutputPath == "" && opts.Catalog == nil {
		return nil, fmt.Errorf("convert: neither output path nor catalog given")
	}

	report := &Report{SourceFile: sourceFile}
	flattener := flatten.New(flatten.Options{MaxArraySlots: opts.MaxArraySlots})
	wanted := topicFilter(opts.Topics)

	// Single pass over the source, flattening records as they arrive and
	// buffering the FlatRows per channel.
	channels := make(map[string][]*types.FlatRow)
	skippedByTopic := make(map[string]int64)
	for {
		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if de, ok := source.AsDecodeError(err); ok {
				log.Printf("convert: %v", de)
				if de.Topic != "" && (wanted == nil || wanted[de.Topic]) {
					skippedByTopic[de.Topic]++
				} else if de.Topic == "" {
					report.SkippedNoTopic++
				}
				continue
			}
			return nil, fmt.Errorf("convert: failed to read source: %w", err)
		}
		if wanted != nil && !wanted[rec.Topic] {
			continue
		}
		channels[rec.Topic] = append(channels[rec.Topic], flattener.Flatten(rec))
	}

	// Channels named by the filter but absent from the file still convert,
	// to an empty baseline table.
	for topic := range wanted {
		if _, ok := channels[topic]; !ok {
			channels[topic] = nil
		}
	}

	// A channel whose records all failed to decode surfaces the same way:
	// an empty table whose report carries the skip count.
	for topic := range skippedByTopic {
		if _, ok := channels[topic]; !ok {
			channels[topic] = nil
		}
	}

	topics := make([]string, 0, len(channels))
	for topic := range channels {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	if opts.OutputPath != "" && len(topics) > 1 {
		if err := os.MkdirAll(opts.OutputPath, 0755); err != nil {
			return nil, fmt.Errorf("convert: failed to create output directory: %w", err)
		}
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	// Channels are embarrassingly parallel: independent schemas, independent
	// artifacts. Each worker owns its report slot; the catalog serializes
	// registrations itself.
	var (
		wg      sync.WaitGroup
		sem     = make(chan struct{}, concurrency)
		reports = make([]ChannelReport, len(topics))
	)
	for i, topic := range topics {
		wg.Add(1)
		go func(i int, topic string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			cr := convertChannel(ctx, writer, topic, channels[topic], sourceFile, len(topics), opts)
			cr.Skipped = skippedByTopic[topic]
			reports[i] = cr
		}(i, topic)
	}
	wg.Wait()
	report.Channels = reports

	for _, cr := range report.Channels {
		if cr.Err != nil {
			log.Printf("convert: channel %s failed: %v", cr.Topic, cr.Err)
		} else {
			log.Printf("convert: channel %s: %d rows converted, %d skipped -> %s",
				cr.Topic, cr.RowCount, cr.Skipped, cr.ArtifactPath)
		}
	}
	return report, nil
}

// convertChannel unifies, writes, and optionally registers one channel.
func convertChannel(ctx context.Context, writer table.Writer, topic string, rows []*types.FlatRow, sourceFile string, topicCount int, opts Options) ChannelReport {
	cr := ChannelReport{
		Topic:     topic,
		TableName: TableName(sourceFile, topic),
	}

	schema, projected := unify.Unify(rows)

	dest, err := artifactDest(cr.TableName, topic, topicCount, opts)
	if err != nil {
		cr.Err = err
		return cr
	}

	artifactPath, err := writer.Write(ctx, dest, schema, projected)
	if err != nil {
		cr.Err = err
		return cr
	}
	cr.RowCount = int64(len(projected))
	cr.ArtifactPath = artifactPath

	// Standalone artifacts get a metadata sidecar so their schema is
	// discoverable without opening them.
	if opts.Catalog == nil {
		if err := table.WriteSidecar(artifactPath, &table.MetadataSidecar{
			TableName:   cr.TableName,
			SourceFile:  sourceFile,
			Topic:       topic,
			Schema:      schema,
			Fingerprint: schema.Fingerprint(),
			RowCount:    cr.RowCount,
		}); err != nil {
			cr.Err = err
			return cr
		}
	}

	physical := artifactPath
	if opts.Store != nil && opts.PublishBucket != "" {
		key := publishKey(opts.PublishPrefix, artifactPath)
		if err := opts.Store.Upload(ctx, artifactPath, key); err != nil {
			cr.Err = err
			return cr
		}
		physical = storage.RemotePath(opts.PublishBucket, key)
	}

	if opts.Catalog != nil {
		if _, err := opts.Catalog.Register(ctx, catalog.RegisterSpec{
			TableName:    cr.TableName,
			SourceFile:   sourceFile,
			PhysicalPath: physical,
			Schema:       schema,
			RowCount:     cr.RowCount,
			Overwrite:    opts.Overwrite,
		}); err != nil {
			cr.Err = err
			return cr
		}
		cr.Registered = true
	}
	return cr
}

// artifactDest resolves the destination path for one channel's artifact.
// An explicit output path wins; catalog-only conversions land in the
// catalog's tables directory.
func artifactDest(tableName, topic string, topicCount int, opts Options) (string, error) {
	ext := table.Extension(opts.Format)

	if opts.OutputPath != "" {
		if topicCount == 1 {
			return opts.OutputPath, nil
		}
		return filepath.Join(opts.OutputPath, SanitizeName(topic)+ext), nil
	}

	// Catalog artifacts carry a short unique suffix so that a forced
	// re-registration never truncates the artifact a live query holds.
	name := fmt.Sprintf("%s-%s%s", tableName, uuid.New().String()[:8], ext)
	return filepath.Join(opts.Catalog.TablesDir(), name), nil
}

// publishKey composes the object key for a published artifact.
func publishKey(prefix, artifactPath string) string {
	key := filepath.Base(artifactPath)
	if prefix != "" {
		key = strings.TrimSuffix(prefix, "/") + "/" + key
	}
	return key
}

// topicFilter builds a membership set from a topic list (nil = all topics).
func topicFilter(topics []string) map[string]bool {
	if len(topics) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(topics))
	for _, t := range topics {
		wanted[t] = true
	}
	return wanted
}
