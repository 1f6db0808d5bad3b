// Package escalation implements EscalationEngine: a bounded worker pool
// that consumes RequestMetadata asynchronously, runs the multi-stage
// scoring pipeline, and submits an ActionEvent to ActionService when the
// combined score crosses the configured threshold.
package escalation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/action"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/edge"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/fingerprint"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/frequency"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/identity"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/reputation"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/reqmeta"
	"github.com/rhamenator/ai-scraping-defense-sub001/pkg/metrics"
)

// Job is the unit of work submitted by TarpitService (and, in principle,
// EdgeClassifier) for asynchronous scoring.
type Job struct {
	Metadata   reqmeta.Metadata
	Features   map[string]float64
	HeaderHash string
}

// Config holds the scoring-pipeline tuning parameters from §4.6 and §6.
type Config struct {
	Workers                int
	QueueSize              int
	Threshold              float64
	EventDeadline          time.Duration
	ModelTimeout           time.Duration
	ReputationEnabled      bool
	ReputationMinMalicious float64
	ReputationBonus        float64
}

// Engine is the EscalationEngine.
type Engine struct {
	cfg        Config
	freq       *frequency.Tracker
	model       model.Adapter
	reputation  reputation.Client
	submitter   action.Submitter
	fingerprint *fingerprint.Store

	queue   chan Job
	dropped atomic.Int64
}

func New(cfg Config, freq *frequency.Tracker, adapter model.Adapter, rep reputation.Client, submitter action.Submitter) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	return &Engine{
		cfg:        cfg,
		freq:       freq,
		model:      adapter,
		reputation: rep,
		submitter:  submitter,
		queue:      make(chan Job, cfg.QueueSize),
	}
}

// WithFingerprint attaches the opportunistic header-order fingerprint
// store used as an extra heuristic signal in score(); nil disables it.
func (e *Engine) WithFingerprint(fp *fingerprint.Store) *Engine {
	e.fingerprint = fp
	return e
}

// Start launches the worker pool and returns immediately. Workers exit
// when ctx is canceled; jobs still in the queue at that point are not
// processed.
func (e *Engine) Start(ctx context.Context) {
	for i := 0; i < e.cfg.Workers; i++ {
		go e.worker(ctx)
	}
}

func (e *Engine) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-e.queue:
			metrics.EscalationQueueDepth.Set(float64(len(e.queue)))
			e.process(ctx, job)
		}
	}
}

// Submit enqueues job without blocking the caller. A full queue drops the
// job and increments the dropped counter, per §5's redesign note — the
// tarpit response path must never stall on a saturated escalation queue.
func (e *Engine) Submit(job Job) bool {
	select {
	case e.queue <- job:
		metrics.EscalationQueueDepth.Set(float64(len(e.queue)))
		return true
	default:
		e.dropped.Add(1)
		metrics.EscalationDroppedTotal.Inc()
		log.Warn().Str("client", string(job.Metadata.ClientIdentity)).Msg("escalation_queue_full_dropped")
		return false
	}
}

// Dropped reports the cumulative number of jobs dropped due to a full
// queue. Submit also counts each drop in metrics.EscalationDroppedTotal.
func (e *Engine) Dropped() int64 { return e.dropped.Load() }

func (e *Engine) process(ctx context.Context, job Job) {
	deadline := e.cfg.EventDeadline
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	if _, _, err := e.Evaluate(ctx, job); err != nil {
		log.Error().Err(err).Str("client", string(job.Metadata.ClientIdentity)).Msg("escalation_action_submit_failed")
	}
}

// Evaluate runs the full scoring pipeline synchronously and, if the
// combined score crosses the configured threshold, submits an
// ActionEvent before returning. It is the shared path behind both the
// async worker pool (process, via the queue) and the synchronous
// POST /escalate HTTP surface (§6), which must return the resulting
// score in its response rather than merely acknowledging a queued job.
func (e *Engine) Evaluate(ctx context.Context, job Job) (report action.ScoreReport, actionTaken bool, err error) {
	id := job.Metadata.ClientIdentity
	report = e.score(ctx, id, job)
	report.ThresholdCrossed = report.CombinedScore >= e.cfg.Threshold

	if !report.ThresholdCrossed {
		log.Info().Str("client", string(id)).Float64("score", report.CombinedScore).Msg("escalation_below_threshold")
		return report, false, nil
	}

	ev := action.Event{
		EventType: "tarpit_escalation",
		Reason:    primaryReason(report.Reasons),
		Timestamp: time.Now().UTC(),
		Metadata:  job.Metadata,
		Score:     report,
	}
	metrics.EscalationActionsTotal.WithLabelValues(ev.Reason).Inc()
	if err := e.submitter.Submit(ctx, ev); err != nil {
		return report, false, err
	}
	return report, true, nil
}

func primaryReason(reasons []string) string {
	if len(reasons) == 0 {
		return "escalation_threshold_exceeded"
	}
	return reasons[0]
}

// score runs steps 1-5 of §4.6.
func (e *Engine) score(ctx context.Context, id identity.ClientIdentity, job Job) action.ScoreReport {
	heuristic, reasons := heuristicFromFeatures(job.Features)

	if e.freq != nil {
		count, err := e.freq.Increment(ctx, id)
		if err == nil {
			switch {
			case count > 100:
				heuristic += 0.2
				reasons = append(reasons, "frequency_over_100")
			case count > 30:
				heuristic += 0.1
				reasons = append(reasons, "frequency_over_30")
			}
		}
	}
	if job.HeaderHash != "" && e.fingerprint != nil {
		if prior, ok := e.fingerprint.Lookup(ctx, id); ok && prior != job.HeaderHash {
			heuristic += 0.1
			reasons = append(reasons, "fingerprint_mismatch")
		}
	}
	if heuristic > 1.0 {
		heuristic = 1.0
	}

	var modelScorePtr *float64
	modelPresent := false
	if e.model != nil {
		modelCtx := ctx
		var cancel context.CancelFunc
		if e.cfg.ModelTimeout > 0 {
			modelCtx, cancel = context.WithTimeout(ctx, e.cfg.ModelTimeout)
			defer cancel()
		}
		if score, ok, err := e.model.Classify(modelCtx, job.Features); err == nil && ok {
			modelScorePtr = &score
			modelPresent = true
		}
	}

	var reputationBonus float64
	if e.cfg.ReputationEnabled && e.reputation != nil {
		if severity, err := e.reputation.Lookup(ctx, id); err == nil {
			if severity > e.cfg.ReputationMinMalicious {
				reputationBonus = e.cfg.ReputationBonus
				reasons = append(reasons, "reputation_bonus_applied")
			}
		}
	}

	var combined float64
	if modelPresent {
		combined = 0.5*heuristic + 0.5*(*modelScorePtr) + reputationBonus
	} else {
		combined = heuristic + reputationBonus
	}
	if combined > 1.0 {
		combined = 1.0
	}

	return action.ScoreReport{
		HeuristicScore:  heuristic,
		ModelScore:      modelScorePtr,
		ReputationBonus: reputationBonus,
		CombinedScore:   combined,
		Reasons:         reasons,
	}
}

// heuristicFromFeatures reconstructs the §4.4-derived heuristic score and
// reasons from the feature map attached to the job, so the escalation
// pipeline's "reuses 4.4 weights" step doesn't need the original
// *http.Request (which may no longer exist by the time this job runs).
func heuristicFromFeatures(features map[string]float64) (float64, []string) {
	var total float64
	var reasons []string
	for name, weight := range edge.FeatureWeights {
		if features[name] > 0 {
			total += weight
			reasons = append(reasons, name)
		}
	}
	if total > 1.0 {
		total = 1.0
	}
	return total, reasons
}
