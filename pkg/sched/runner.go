package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Run executes the planned jobs. With a job budget of one, jobs run strictly
// in construction order; otherwise they are consumed by a fixed-size worker
// pool with no cross-job ordering guarantee. A job failure is logged and
// collected but never cancels its siblings; the returned error joins every
// failure so the run exits non-zero when at least one job failed. In dry-run
// mode each job's shell-equivalent form is printed instead.
func (s *Scheduler) Run(ctx context.Context, jobs []Job) error {
	if s.cfg.DryRun {
		for _, j := range jobs {
			fmt.Println(j.Render())
		}
		return nil
	}
	if s.cfg.Verbose {
		for _, j := range jobs {
			log.Debugf("planned %q", j.Destination())
		}
	}

	if s.cfg.Jobs <= 1 {
		var errs []error
		for _, j := range jobs {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := j.Run(ctx); err != nil {
				log.Errorf("%s: %v", j.Destination(), err)
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	var mu sync.Mutex
	var errs []error
	var eg errgroup.Group
	eg.SetLimit(s.cfg.Jobs)
	for _, j := range jobs {
		j := j
		eg.Go(func() error {
			if err := j.Run(ctx); err != nil {
				log.Errorf("%s: %v", j.Destination(), err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	// workers never return errors, Wait is a pure barrier here
	_ = eg.Wait()
	return errors.Join(errs...)
}
