package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/AlfredBerg/green-scraper/internal/auth"
	"github.com/AlfredBerg/green-scraper/internal/browser"
	"github.com/AlfredBerg/green-scraper/internal/record"
)

var (
	ErrAuthFailed       = errors.New("authentication failed")
	ErrCollectExhausted = errors.New("listing collection failed")
)

type Stage string

const (
	StageAuth      Stage = "auth"
	StageCollect   Stage = "collect"
	StageCancelled Stage = "cancelled"
	StageOutput    Stage = "output"
)

// StageError reports which part of the run ended it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type Authenticator interface {
	EnsureAuthenticated(ctx context.Context, s browser.Session, strategy auth.Strategy) auth.Result
}

type Lister interface {
	Collect(ctx context.Context, s browser.Session, listingURL string) ([]Identifier, error)
}

type Extractor interface {
	Extract(ctx context.Context, s browser.Session, detailURL string) (record.Record, error)
}

// OutputHandler receives the records of a run in listing order.
type OutputHandler interface {
	Handle(ctx context.Context, runID string, records []record.Record) error
}

type Job struct {
	Session   browser.Session
	Auth      Authenticator
	Strategy  auth.Strategy
	Collector Lister
	Extractor Extractor

	ListingURL string

	// MaxRetries is the number of collection retries, so a run makes at most
	// MaxRetries+1 attempts.
	MaxRetries int
	RetryDelay time.Duration
	// MaxRecords caps the number of detail pages visited, 0 means all.
	MaxRecords int

	OutputHandlers []OutputHandler
	Logger         *zap.Logger

	timer backoff.Timer
}

type Result struct {
	RunID   string
	Records []record.Record
	// Discovered is the number of identifiers the last collection returned.
	Discovered int
	Failed     int
	Attempts   int

	Stage Stage
	Err   error

	Started  time.Time
	Finished time.Time
}

// Complete reports whether every discovered listing produced a record.
func (r *Result) Complete() bool {
	return r.Err == nil && r.Failed == 0
}
