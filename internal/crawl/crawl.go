package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/AlfredBerg/green-scraper/internal/record"
)

// Crawl authenticates, collects the listing and extracts every detail page.
// The returned Result is never nil and holds whatever records were extracted,
// also when the run failed. The session is closed before returning.
func (j *Job) Crawl(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Started: time.Now()}
	log := j.Logger.With(zap.String("run_id", res.RunID))

	defer func() {
		if err := j.Session.Close(); err != nil {
			log.Warn("failed closing browser session", zap.Error(err))
		}
	}()

	log.Info("starting run", zap.String("listing", j.ListingURL), zap.Stringer("strategy", j.Strategy))

	if ar := j.Auth.EnsureAuthenticated(ctx, j.Session, j.Strategy); !ar.Success {
		err := ErrAuthFailed
		if ar.Err != nil {
			err = fmt.Errorf("%w: %w", ErrAuthFailed, ar.Err)
		}
		log.Error("run ended, not authenticated", zap.String("screenshot", ar.Screenshot), zap.Error(ar.Err))
		return j.finish(ctx, log, res, &StageError{Stage: StageAuth, Err: err})
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(j.RetryDelay), uint64(max(j.MaxRetries, 0))),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		log.Warn("collection failed, retrying", zap.Int("attempt", res.Attempts), zap.Duration("in", next), zap.Error(err))
	}
	err := backoff.RetryNotifyWithTimer(func() error {
		res.Attempts++
		ids, err := j.Collector.Collect(ctx, j.Session, j.ListingURL)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		res.Discovered = len(ids)
		return j.extractAll(ctx, log, res, ids)
	}, b, notify, j.timer)

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		log.Warn("run cancelled", zap.Int("records", len(res.Records)))
		err = &StageError{Stage: StageCancelled, Err: err}
	default:
		log.Error("giving up on collection", zap.Int("attempts", res.Attempts), zap.Error(err))
		err = &StageError{Stage: StageCollect, Err: fmt.Errorf("%w after %d attempts: %w", ErrCollectExhausted, res.Attempts, err)}
	}
	return j.finish(ctx, log, res, err)
}

// extractAll visits ids in order. A failing record is counted and skipped;
// only cancellation stops the loop, and it does so between records.
func (j *Job) extractAll(ctx context.Context, log *zap.Logger, res *Result, ids []Identifier) error {
	if j.MaxRecords > 0 && len(ids) > j.MaxRecords {
		log.Info("limiting records", zap.Int("discovered", len(ids)), zap.Int("max_records", j.MaxRecords))
		ids = ids[:j.MaxRecords]
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		l := log.With(zap.Int("position", id.Position), zap.String("url", id.URL))

		rec, err := j.extractOne(ctx, id)
		if err != nil {
			res.Failed++
			l.Warn("failed extracting listing", zap.Error(err))
			continue
		}
		if rec.Get(record.Company) == "" && id.Label != "" {
			rec.Set(record.Company, id.Label)
		}
		for f, v := range id.Card {
			if rec.Get(f) == "" {
				rec.Set(f, v)
			}
		}
		if rec.Get(record.ListingURL) == "" {
			rec.Set(record.ListingURL, id.URL)
		}
		res.Records = append(res.Records, rec)
		l.Info("extracted listing", zap.String("company", rec.Get(record.Company)))
	}
	return nil
}

func (j *Job) extractOne(ctx context.Context, id Identifier) (rec record.Record, err error) {
	var pc panics.Catcher
	pc.Try(func() {
		rec, err = j.Extractor.Extract(ctx, j.Session, id.URL)
	})
	if r := pc.Recovered(); r != nil {
		return record.Record{}, r.AsError()
	}
	return rec, err
}

func (j *Job) finish(ctx context.Context, log *zap.Logger, res *Result, err error) (*Result, error) {
	if len(res.Records) > 0 {
		var outErr error
		// Partial results are written too, the sinks must not lose them to a
		// cancelled run context.
		octx := context.WithoutCancel(ctx)
		for _, h := range j.OutputHandlers {
			outErr = multierr.Append(outErr, h.Handle(octx, res.RunID, res.Records))
		}
		if outErr != nil {
			log.Error("failed writing output", zap.Error(outErr))
			if err == nil {
				err = &StageError{Stage: StageOutput, Err: outErr}
			}
		}
	}

	res.Finished = time.Now()
	var se *StageError
	if errors.As(err, &se) {
		res.Stage = se.Stage
	}
	res.Err = err
	log.Info("run finished",
		zap.Int("records", len(res.Records)),
		zap.Int("discovered", res.Discovered),
		zap.Int("failed", res.Failed),
		zap.Int("attempts", res.Attempts),
		zap.Duration("took", res.Finished.Sub(res.Started)),
	)
	return res, err
}
