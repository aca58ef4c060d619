package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sqlsink/internal/buffer"
	"sqlsink/internal/config"
	"sqlsink/internal/schema"
)

// maxLine bounds one NDJSON record.
const maxLine = 16 << 20

func newIngestCmd(a *app) *cobra.Command {
	var idle time.Duration

	cmd := &cobra.Command{
		Use:   "ingest [file|-]",
		Short: "Read NDJSON records and write them through the buffer",
		Long: `Read newline-delimited JSON records and hand each one to the write buffer.

Each line names its destination and carries the field values:

  {"destination":"pages","fields":{"url":"https://example.com","title":"Example"}}

When no record arrives for --idle, destinations whose flush interval has
lapsed are flushed. At end of input, or on SIGINT/SIGTERM, every pending
row is flushed before exit. Invalid lines are logged and skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.checkConfig(cmd); err != nil {
				return err
			}

			in := io.Reader(cmd.InOrStdin())
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			flushMetrics, err := setupMetrics(a.cfg, a.verbose)
			if err != nil {
				return err
			}
			defer flushMetrics()

			start := time.Now()
			s, err := runIngest(ctx, a.cfg, in, idle)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "arrived=%d invalid=%d committed=%d written=%d dropped=%d skipped=%d\n",
				s.Arrived, s.Invalid, s.Committed, s.Written, s.Dropped, s.Skipped)
			if a.verbose {
				log.Printf("ingest: completed in %s", time.Since(start).Truncate(time.Millisecond))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&idle, "idle", time.Second, "time without input after which lapsed destinations are flushed")
	return cmd
}

// ingestStats is the buffer totals plus lines that never reached it.
type ingestStats struct {
	buffer.Stats
	Skipped int64
}

// runIngest feeds every line of in to a buffer over the configured store and
// closes the buffer at end of input or when ctx is done.
func runIngest(ctx context.Context, cfg config.Sink, in io.Reader, idle time.Duration) (ingestStats, error) {
	repo, err := openStore(ctx, cfg)
	if err != nil {
		return ingestStats{}, err
	}
	defer repo.Close()

	reg, err := buildRegistry(ctx, repo, cfg)
	if err != nil {
		return ingestStats{}, err
	}

	buf := buffer.New(repo, reg,
		buffer.WithJob(cfg.Job),
		buffer.WithDefaultBatchSize(cfg.Buffer.DefaultBatchSize),
		buffer.WithBatchSizes(cfg.BatchSizes()),
		buffer.WithFlushInterval(cfg.Buffer.FlushInterval()),
		buffer.WithFlushWorkers(cfg.Buffer.FlushWorkers),
	)

	skipped, readErr := pump(ctx, buf, reg, in, idle)

	// Pending rows are written even when ctx was cancelled by a signal.
	if err := buf.Close(context.Background()); err != nil {
		return ingestStats{}, err
	}
	st := ingestStats{Stats: buf.Stats(), Skipped: skipped}
	if readErr != nil {
		return st, fmt.Errorf("read input: %w", readErr)
	}
	return st, nil
}

// pump reads lines until EOF or ctx is done, calling OnIdle whenever no line
// arrived for idle. Buffer calls run on a context that ctx's cancellation
// does not reach, so a signal during a flush never fails the write. When ctx
// is done and in is an io.Closer, in is closed to stop the reader.
func pump(ctx context.Context, buf *buffer.Buffer, reg *schema.Registry, in io.Reader, idle time.Duration) (int64, error) {
	wctx := context.WithoutCancel(ctx)
	lines := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLine)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
		errc <- sc.Err()
	}()

	if idle <= 0 {
		idle = time.Second
	}
	ticker := time.NewTicker(idle)
	defer ticker.Stop()

	var (
		skipped int64
		lineNo  int
		last    = time.Now()
	)
	for {
		select {
		case <-ctx.Done():
			return skipped, interrupted(in, lineNo)

		case line, ok := <-lines:
			if !ok {
				return skipped, <-errc
			}
			if ctx.Err() != nil {
				return skipped, interrupted(in, lineNo)
			}
			lineNo++
			last = time.Now()
			if len(line) == 0 {
				continue
			}
			rec, err := decodeRecord(reg, line)
			if err != nil {
				skipped++
				log.Printf("ingest: skip line=%d err=%v", lineNo, err)
				continue
			}
			if err := buf.RecordArrived(wctx, rec); err != nil {
				skipped++
				log.Printf("ingest: skip line=%d dest=%s err=%v", lineNo, rec.Destination().Name(), err)
			}

		case now := <-ticker.C:
			if now.Sub(last) < idle {
				continue
			}
			for _, r := range buf.OnIdle(wctx) {
				log.Printf("ingest: idle flush dest=%s rows=%d written=%d", r.Destination, r.Rows, r.Written)
			}
		}
	}
}

func interrupted(in io.Reader, lineNo int) error {
	log.Printf("ingest: interrupted after line=%d, flushing", lineNo)
	if c, ok := in.(io.Closer); ok {
		_ = c.Close()
	}
	return nil
}
