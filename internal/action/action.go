// Package action implements ActionService: the terminal stage that turns
// a scored ActionEvent into a blocklist mutation, alert dispatch, and
// optional community report. The three sub-actions are independent —
// one failing never aborts the others.
package action

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/alert"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/blocklist"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/httpclient"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/identity"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/reqmeta"
)

// ScoreReport mirrors the data model's ScoreReport.
type ScoreReport struct {
	HeuristicScore   float64  `json:"heuristic_score"`
	ModelScore       *float64 `json:"model_score,omitempty"`
	ReputationBonus  float64  `json:"reputation_bonus"`
	CombinedScore    float64  `json:"combined_score"`
	ThresholdCrossed bool     `json:"threshold_crossed"`
	Reasons          []string `json:"reasons"`
}

// Event is the ActionEvent: immutable once emitted.
type Event struct {
	EventType string          `json:"event_type"`
	Reason    string          `json:"reason"`
	Timestamp time.Time       `json:"timestamp_utc"`
	Metadata  reqmeta.Metadata `json:"metadata"`
	Score     ScoreReport     `json:"score"`
}

// Submitter is the narrow contract EscalationEngine depends on, so it
// never needs the rest of ActionService's construction details.
type Submitter interface {
	Submit(ctx context.Context, ev Event) error
}

// Config carries the action-service-level tuning parameters.
type Config struct {
	BlockTTL                time.Duration
	CommunityReportingOn    bool
	CommunityReportURL      string
	CommunityReportMinScore float64
}

// Observer receives a copy of every submitted Event after its sub-actions
// have run. No pub/sub transport is wired to it in the core; it exists so
// a future external-event adapter has a seam to attach to without
// reopening Submit's signature.
type Observer interface {
	ObserveAction(ev Event)
}

// Service is the production ActionService.
type Service struct {
	cfg        Config
	blocklist  blocklist.Store
	dispatcher *alert.Dispatcher
	http       *httpclient.Client
	observers  []Observer
}

func New(cfg Config, bl blocklist.Store, dispatcher *alert.Dispatcher, client *httpclient.Client) *Service {
	return &Service{cfg: cfg, blocklist: bl, dispatcher: dispatcher, http: client}
}

// AddObserver registers an Observer notified after every Submit call.
func (s *Service) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// Submit runs the three sub-actions for ev; none is fatal to the others.
// Blocklist and community-report errors are logged and aggregated via
// multierror into the returned error; alert sink failures are logged by
// the dispatcher and are not returned.
func (s *Service) Submit(ctx context.Context, ev Event) error {
	var result *multierror.Error

	id := ev.Metadata.ClientIdentity
	if err := s.blockClient(ctx, id); err != nil {
		result = multierror.Append(result, err)
	}

	s.dispatchAlerts(ctx, ev)

	if s.shouldReport(ev) {
		if err := s.submitCommunityReport(ctx, ev); err != nil {
			result = multierror.Append(result, err)
		}
	}

	for _, o := range s.observers {
		o.ObserveAction(ev)
	}

	if result != nil {
		return result.ErrorOrNil()
	}
	return nil
}

func (s *Service) blockClient(ctx context.Context, id identity.ClientIdentity) error {
	ttl := s.cfg.BlockTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.blocklist.Block(ctx, id, ttl); err != nil {
		log.Error().Err(err).Str("client", string(id)).Msg("action_block_failed")
		return err
	}
	return nil
}

func (s *Service) dispatchAlerts(ctx context.Context, ev Event) {
	if s.dispatcher == nil {
		return
	}
	severity := alert.SeverityWarning
	if ev.Score.CombinedScore >= 0.9 {
		severity = alert.SeverityCritical
	}
	s.dispatcher.Dispatch(ctx, alert.Notification{
		Reason:         ev.Reason,
		ClientIdentity: string(ev.Metadata.ClientIdentity),
		Score:          ev.Score.CombinedScore,
		Severity:       severity,
	})
}

func (s *Service) shouldReport(ev Event) bool {
	return s.cfg.CommunityReportingOn && s.cfg.CommunityReportURL != "" &&
		ev.Score.CombinedScore >= s.cfg.CommunityReportMinScore
}

// communityReport is the redacted body submitted to the community
// reporting endpoint: RequestMetadata is trimmed per §4.7's redaction
// rule before it ever leaves the process.
type communityReport struct {
	Reason   string          `json:"reason"`
	Score    float64         `json:"score"`
	Metadata reqmeta.Metadata `json:"metadata"`
}

func (s *Service) submitCommunityReport(ctx context.Context, ev Event) error {
	body, err := json.Marshal(communityReport{
		Reason:   ev.Reason,
		Score:    ev.Score.CombinedScore,
		Metadata: ev.Metadata.Redacted(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.CommunityReportURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(ctx, req)
	if err != nil {
		log.Error().Err(err).Msg("action_community_report_failed")
		return err
	}
	defer resp.Body.Close()
	return nil
}
