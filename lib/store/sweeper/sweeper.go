package sweeper

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Kain-Deterick/VK-Internship/lib/clock"
	"github.com/Kain-Deterick/VK-Internship/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
)

var log = logger.GetLogger("sweeper")

// Mode selects the reclamation primitive used per tick
type Mode string

const (
	// ModeIncremental calls RemoveOneExpiredEntry up to Limit times per tick
	ModeIncremental Mode = "incremental"
	// ModeBatch calls RemoveExpiredEntriesUpTo(now) once per tick
	ModeBatch Mode = "batch"
)

const defaultLimit = 100

// Options configures a Sweeper
type Options struct {
	Interval time.Duration // Time between ticks, 0 disables the background loop
	Mode     Mode          // Reclamation primitive (empty = incremental)
	Limit    int           // Max entries per tick in incremental mode (0 = default)
	Clock    clock.Clock   // Source of "now" for batch mode (nil = real clock)
}

// Stats summarizes the work done by a Sweeper
type Stats struct {
	Ticks     int64
	Reclaimed uint64
	MeanTick  time.Duration
	MaxTick   time.Duration
}

// Sweeper periodically reclaims expired entries of one store.
// Sweeper owns its goroutine. Call Close to stop it.
type Sweeper struct {
	store store.IStore
	name  string
	opts  Options

	// Goroutine ownership
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once

	// serializes ticks of the loop and manual Sweep calls
	tickMu sync.Mutex

	metrics   *metrics.Set
	reclaimed *metrics.Counter
	errors    *metrics.Counter
	tickTimer gometrics.Timer
}

// New creates a sweeper for s. It does not start the background loop, see Start.
// name labels the sweeper in logs and metrics.
func New(s store.IStore, name string, opts Options) *Sweeper {
	if opts.Mode == "" {
		opts.Mode = ModeIncremental
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sw := &Sweeper{
		store:     s,
		name:      name,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		metrics:   metrics.NewSet(),
		tickTimer: gometrics.NewTimer(),
	}
	sw.reclaimed = sw.metrics.NewCounter(fmt.Sprintf(`kvstorage_sweeper_reclaimed_total{namespace=%q,mode=%q}`, name, opts.Mode))
	sw.errors = sw.metrics.NewCounter(fmt.Sprintf(`kvstorage_sweeper_errors_total{namespace=%q}`, name))

	return sw
}

// Start launches the background loop. It is a no-op if the interval is 0,
// if the sweeper was already started, or after Close.
func (sw *Sweeper) Start() {
	if sw.opts.Interval <= 0 || sw.ctx.Err() != nil {
		return
	}

	sw.startOnce.Do(func() {
		sw.wg.Add(1)
		go sw.loop()
		log.Infof("sweeper %q started (mode %s, interval %s)", sw.name, sw.opts.Mode, sw.opts.Interval)
	})
}

// loop ticks until the sweeper is closed
func (sw *Sweeper) loop() {
	defer sw.wg.Done()

	ticker := time.NewTicker(sw.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-sw.ctx.Done():
			return
		case <-ticker.C:
			if _, err := sw.Sweep(); err != nil {
				log.Errorf("sweeper %q: %v", sw.name, err)
			}
		}
	}
}

// Sweep runs one tick synchronously and returns the number of reclaimed entries.
func (sw *Sweeper) Sweep() (int, error) {
	sw.tickMu.Lock()
	defer sw.tickMu.Unlock()

	start := time.Now()
	defer sw.tickTimer.UpdateSince(start)

	var (
		n   int
		err error
	)

	switch sw.opts.Mode {
	case ModeBatch:
		n, err = sw.store.RemoveExpiredEntriesUpTo(sw.opts.Clock.Now())
	case ModeIncremental:
		for n < sw.opts.Limit {
			var ok bool
			_, ok, err = sw.store.RemoveOneExpiredEntry()
			if err != nil || !ok {
				break
			}
			n++
		}
	default:
		err = fmt.Errorf("unknown sweep mode %q", sw.opts.Mode)
	}

	sw.reclaimed.Add(n)
	if err != nil {
		sw.errors.Inc()
		return n, err
	}

	if n > 0 {
		log.Debugf("sweeper %q reclaimed %d entries", sw.name, n)
	}
	return n, nil
}

// Stats returns counters and tick durations collected so far
func (sw *Sweeper) Stats() Stats {
	snapshot := sw.tickTimer.Snapshot()
	return Stats{
		Ticks:     snapshot.Count(),
		Reclaimed: sw.reclaimed.Get(),
		MeanTick:  time.Duration(snapshot.Mean()),
		MaxTick:   time.Duration(snapshot.Max()),
	}
}

// WritePrometheus writes the sweeper metrics in Prometheus text format to w
func (sw *Sweeper) WritePrometheus(w io.Writer) {
	sw.metrics.WritePrometheus(w)
}

// Close stops the background loop and waits for a running tick to finish.
//
// Close is safe to call multiple times.
func (sw *Sweeper) Close() {
	sw.closeOnce.Do(func() {
		sw.cancel()
		sw.wg.Wait()
		sw.tickTimer.Stop()
		log.Debugf("sweeper %q stopped", sw.name)
	})
}
