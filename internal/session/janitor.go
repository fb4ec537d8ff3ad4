package session

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
)

// Janitor sweeps expired sessions on a cron schedule so an idle in-memory
// deployment does not hold transcripts forever.
type Janitor struct {
	store     Store
	expr      *cronexpr.Expression
	retention time.Duration
	logger    *log.Logger
	stop      chan struct{}
	done      chan struct{}
}

func NewJanitor(store Store, cronSpec string, retention time.Duration) (*Janitor, error) {
	expr, err := cronexpr.Parse(cronSpec)
	if err != nil {
		return nil, err
	}
	return &Janitor{
		store:     store,
		expr:      expr,
		retention: retention,
		logger:    log.New(log.Writer(), "[JANITOR] ", log.LstdFlags),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start runs the sweep loop until Stop is called.
func (j *Janitor) Start() {
	go func() {
		defer close(j.done)
		for {
			next := j.expr.Next(time.Now())
			if next.IsZero() {
				return
			}
			timer := time.NewTimer(time.Until(next))
			select {
			case <-j.stop:
				timer.Stop()
				return
			case <-timer.C:
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			removed, err := j.store.Sweep(ctx, time.Now().Add(-j.retention))
			cancel()
			if err != nil {
				j.logger.Printf("sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				j.logger.Printf("swept %d expired sessions", removed)
			}
		}
	}()
}

func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}
