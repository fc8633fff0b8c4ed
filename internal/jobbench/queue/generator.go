package queue

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/riverqueue/river"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/time/rate"

	"github.com/armadaproject/jobbench/internal/common/logging"
	"github.com/armadaproject/jobbench/internal/jobbench/tasks"
)

// InsertFunc enqueues a batch of jobs.
type InsertFunc func(ctx context.Context, params []river.InsertManyParams) error

// ClientInserter enqueues through a river client.
func ClientInserter(client *Client) InsertFunc {
	return func(ctx context.Context, params []river.InsertManyParams) error {
		_, err := client.InsertMany(ctx, params)
		return err
	}
}

type GeneratorConfig struct {
	MaxJobs     int
	AvgDuration time.Duration
	MaxAttempts int
	FailureRate float64
	BatchSize   int
	// Jobs per second. Zero means as fast as the database accepts them.
	Rate float64
	Seed int64
}

// Generator enqueues the benchmark workload: MaxJobs sum jobs whose operands are multiples of one random pair.
type Generator struct {
	insert  InsertFunc
	config  GeneratorConfig
	limiter *rate.Limiter
	printer *message.Printer
}

func NewGenerator(insert InsertFunc, config GeneratorConfig) *Generator {
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.Rate > 0 {
		burst := config.BatchSize
		if float64(burst) < config.Rate {
			burst = int(config.Rate)
		}
		limiter = rate.NewLimiter(rate.Limit(config.Rate), burst)
	}
	return &Generator{
		insert:  insert,
		config:  config,
		limiter: limiter,
		printer: message.NewPrinter(language.English),
	}
}

// Generate enqueues every job and returns how many were enqueued. On error the count covers the batches that
// were committed before it.
func (g *Generator) Generate(ctx context.Context) (int, error) {
	r := rand.New(rand.NewSource(g.config.Seed))
	a, b := 1+r.Intn(100), 1+r.Intn(100)
	logging.Infof("Scheduling %s jobs of sum(%d*i, %d*i)", g.printer.Sprintf("%d", g.config.MaxJobs), a, b)

	progressEvery := g.config.MaxJobs / 10
	if progressEvery == 0 {
		progressEvery = 1
	}
	opts := &river.InsertOpts{MaxAttempts: g.config.MaxAttempts}

	start := time.Now()
	scheduled := 0
	batch := make([]river.InsertManyParams, 0, g.config.BatchSize)
	for i := 1; i <= g.config.MaxJobs; i++ {
		batch = append(batch, river.InsertManyParams{
			Args: tasks.SumArgs{
				A:           a * i,
				B:           b * i,
				AvgSleep:    g.config.AvgDuration,
				FailureRate: g.config.FailureRate,
			},
			InsertOpts: opts,
		})
		if len(batch) < g.config.BatchSize && i < g.config.MaxJobs {
			continue
		}
		if err := g.limiter.WaitN(ctx, len(batch)); err != nil {
			return scheduled, errors.WithStack(err)
		}
		if err := g.insert(ctx, batch); err != nil {
			return scheduled, errors.Wrapf(err, "inserting jobs %d to %d", scheduled+1, scheduled+len(batch))
		}
		previous := scheduled
		scheduled += len(batch)
		batch = batch[:0]
		if scheduled/progressEvery != previous/progressEvery || scheduled == g.config.MaxJobs {
			logging.Info(g.printer.Sprintf("Scheduled %d of %d jobs", scheduled, g.config.MaxJobs))
		}
	}

	elapsed := time.Since(start)
	logging.Info(g.printer.Sprintf("Scheduled everything: %d jobs in %s (%.0f jobs/s)",
		scheduled, elapsed.Round(time.Millisecond), float64(scheduled)/elapsed.Seconds()))
	return scheduled, nil
}
