// Package archive keeps a forensic copy of every admitted log line in
// ClickHouse. Writes are batched and strictly best-effort: a full
// buffer or a failed flush drops lines with a warning and never blocks
// the pipeline.
package archive

import (
	"context"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const insertRawLines = `INSERT INTO hlstatsd.raw_lines (received_at, server_id, source, line)`

type entry struct {
	receivedAt time.Time
	serverID   int32
	source     string
	line       string
}

// Archive batches raw lines into ClickHouse, flushing by size or
// ticker.
type Archive struct {
	conn          driver.Conn
	batchSize     int
	flushInterval time.Duration
	logger        *zap.SugaredLogger

	ch chan entry
	wg sync.WaitGroup

	stopOnce sync.Once
}

func New(conn driver.Conn, batchSize int, flushInterval time.Duration, logger *zap.SugaredLogger) *Archive {
	if batchSize <= 0 {
		batchSize = 500
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Archive{
		conn:          conn,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		ch:            make(chan entry, batchSize*4),
	}
}

// Start launches the flush loop.
func (a *Archive) Start() {
	a.wg.Add(1)
	go a.run()
	a.logger.Infow("archive started", "batchSize", a.batchSize, "flushInterval", a.flushInterval)
}

// Stop closes intake and drains whatever is buffered.
func (a *Archive) Stop() {
	a.stopOnce.Do(func() {
		close(a.ch)
		a.wg.Wait()
		a.logger.Info("archive stopped")
	})
}

// Record buffers one admitted line. Drops when the buffer is full.
func (a *Archive) Record(receivedAt time.Time, serverID int32, source, line string) {
	select {
	case a.ch <- entry{receivedAt: receivedAt, serverID: serverID, source: source, line: line}:
	default:
		a.logger.Warnw("archive buffer full, dropping line", "serverId", serverID)
	}
}

// Ping probes the connection. Used by readiness checks.
func (a *Archive) Ping(ctx context.Context) error {
	return a.conn.Ping(ctx)
}

func (a *Archive) run() {
	defer a.wg.Done()

	batch := make([]entry, 0, a.batchSize)
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		a.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-a.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= a.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// flush writes one batch. Failures warn and drop.
func (a *Archive) flush(batch []entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chBatch, err := a.conn.PrepareBatch(ctx, insertRawLines)
	if err != nil {
		a.logger.Warnw("archive batch prepare failed, dropping lines", "count", len(batch), "error", err)
		return
	}
	for _, e := range batch {
		if err := chBatch.Append(e.receivedAt, e.serverID, e.source, e.line); err != nil {
			a.logger.Warnw("archive append failed", "error", err)
		}
	}
	if err := chBatch.Send(); err != nil {
		a.logger.Warnw("archive batch send failed, dropping lines", "count", len(batch), "error", err)
		return
	}
	a.logger.Debugw("archive batch flushed", "count", len(batch))
}
