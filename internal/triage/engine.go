package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/medisur/internal/facilities"
	"github.com/ziadkadry99/medisur/internal/metrics"
	"github.com/ziadkadry99/medisur/internal/transcript"
)

// Oracle is the external reasoning service behind every convergence step.
type Oracle interface {
	Extract(ctx context.Context, transcriptText string) (*Record, error)
	Questions(ctx context.Context, rec *Record, limit int) ([]string, error)
	Triage(ctx context.Context, rec *Record) (*Assessment, error)
	Suggest(ctx context.Context, rec *Record) (*Suggestions, error)
}

// FacilityLocator finds the facility closest to a patient location. A nil
// facility with a nil error means nothing qualified.
type FacilityLocator interface {
	Nearest(ctx context.Context, location string) (*facilities.Facility, error)
}

// Options bounds the engine.
type Options struct {
	MaxRounds         int
	QuestionsPerRound int
	OracleTimeout     time.Duration
}

// Engine runs the convergence algorithm.
type Engine struct {
	oracle  Oracle
	locator FacilityLocator
	opts    Options
}

// NewEngine creates an Engine. locator may be nil, in which case every
// outcome carries no facility.
func NewEngine(oracle Oracle, locator FacilityLocator, opts Options) *Engine {
	if opts.QuestionsPerRound < 1 {
		opts.QuestionsPerRound = 1
	}
	if opts.OracleTimeout <= 0 {
		opts.OracleTimeout = 30 * time.Second
	}
	return &Engine{oracle: oracle, locator: locator, opts: opts}
}

// Evaluate decides between asking more questions and resolving. It never
// mutates state; callers persist the result.
func (e *Engine) Evaluate(ctx context.Context, in Input) (*Result, error) {
	text := transcript.Render(in.Transcript)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty transcript", ErrExtractionFailed)
	}

	rec, err := callOracle(ctx, e.opts.OracleTimeout, "extract", func(ctx context.Context) (*Record, error) {
		return e.oracle.Extract(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: structured extraction: %w", ErrExtractionFailed, err)
	}

	if in.PriorRounds < e.opts.MaxRounds {
		questions, err := callOracle(ctx, e.opts.OracleTimeout, "questions", func(ctx context.Context) ([]string, error) {
			return e.oracle.Questions(ctx, rec, e.opts.QuestionsPerRound)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: clarifying questions: %w", ErrExtractionFailed, err)
		}
		if questions = clean(questions, e.opts.QuestionsPerRound); len(questions) > 0 {
			return &Result{Questions: questions}, nil
		}
	}

	outcome, err := e.resolve(ctx, rec, in.PatientLocation)
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: outcome}, nil
}

func (e *Engine) resolve(ctx context.Context, rec *Record, location string) (*Outcome, error) {
	var (
		assessment  *Assessment
		suggestions *Suggestions
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := callOracle(gctx, e.opts.OracleTimeout, "triage", func(ctx context.Context) (*Assessment, error) {
			return e.oracle.Triage(ctx, rec)
		})
		if err != nil {
			return err
		}
		assessment = a
		return nil
	})
	g.Go(func() error {
		s, err := callOracle(gctx, e.opts.OracleTimeout, "suggest", func(ctx context.Context) (*Suggestions, error) {
			return e.oracle.Suggest(ctx, rec)
		})
		if err != nil {
			log.Warn().Err(err).Msg("clinical suggestions unavailable")
			return nil
		}
		suggestions = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: triage: %w", ErrExtractionFailed, err)
	}
	if assessment == nil {
		return nil, fmt.Errorf("%w: triage returned nothing", ErrExtractionFailed)
	}

	outcome := &Outcome{
		Urgency:     assessment.Urgency,
		Specialty:   assessment.Specialty,
		Contagious:  assessment.Contagious,
		Record:      *rec,
		Suggestions: suggestions,
	}

	if f := e.nearestFacility(ctx, location); f != nil {
		outcome.FacilityID = f.ID
		outcome.FacilityName = f.Name
	}
	return outcome, nil
}

// nearestFacility falls back to no facility on any lookup failure.
func (e *Engine) nearestFacility(ctx context.Context, location string) *facilities.Facility {
	if e.locator == nil || strings.TrimSpace(location) == "" {
		return nil
	}
	f, err := callOracle(ctx, e.opts.OracleTimeout, "nearest_facility", func(ctx context.Context) (*facilities.Facility, error) {
		return e.locator.Nearest(ctx, location)
	})
	if err != nil {
		log.Warn().Err(err).Str("location", location).Msg("nearest facility lookup failed")
		return nil
	}
	return f
}

type oracleResult[T any] struct {
	v   T
	err error
}

// callOracle runs fn under a deadline. fn runs on its own goroutine so an
// implementation that ignores ctx still cannot hold the caller past the
// deadline.
func callOracle[T any](ctx context.Context, timeout time.Duration, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan oracleResult[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- oracleResult[T]{v: v, err: err}
	}()

	var res oracleResult[T]
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	status := "ok"
	switch {
	case errors.Is(res.err, context.DeadlineExceeded):
		status = "timeout"
	case res.err != nil:
		status = "error"
	}
	metrics.OracleDuration.WithLabelValues(name, status).Observe(time.Since(start).Seconds())
	return res.v, res.err
}

func clean(questions []string, limit int) []string {
	out := make([]string, 0, len(questions))
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
		if len(out) == limit {
			break
		}
	}
	return out
}
