package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"fiscal-reconciliation-service/internal/matcher"
	"fiscal-reconciliation-service/internal/models"
	"fiscal-reconciliation-service/internal/normalizer"
	"fiscal-reconciliation-service/internal/scoring"
	apperrors "fiscal-reconciliation-service/pkg/errors"
	"fiscal-reconciliation-service/pkg/logger"
)

// Runner orchestrates reconciliation runs over stored sessions. At most one
// run may be active per session; a second run started while the first is in
// flight is rejected rather than queued.
type Runner struct {
	store *Store
	log   logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRunner creates a runner over the given store
func NewRunner(store *Store, log logger.Logger) *Runner {
	if log == nil {
		log = logger.Global()
	}
	return &Runner{
		store: store,
		log:   log.WithComponent("session-runner"),
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *Runner) sessionLock(sessionID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[sessionID] = lock
	}
	return lock
}

// ImportResult summarizes one import batch.
type ImportResult struct {
	Imported      int `json:"imported"`
	NeedsReview   int `json:"needs_review"`
	OutsidePeriod int `json:"outside_period"`
}

// ImportRecords normalizes a batch of raw rows and stores them in the
// session. Rows dated outside the session period (plus slack) are kept but
// flagged for review; nothing is silently dropped.
func (r *Runner) ImportRecords(ctx context.Context, sessionID string, raws []normalizer.RawRecord) (*ImportResult, error) {
	sess, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	records := normalizer.New().NormalizeBatch(raws, sess.ID)

	result := &ImportResult{}
	for _, rec := range records {
		rec.ID = uuid.NewString()

		if !sess.InPeriod(rec) {
			rec.NeedsReview = true
			result.OutsidePeriod++
		}
		if rec.NeedsReview {
			result.NeedsReview++
		}

		if err := rec.Validate(); err != nil {
			return nil, apperrors.NewValidationError(apperrors.CodeInvalidData, "invalid record after normalization", err).
				WithContext("source", rec.SourceRef.String())
		}
	}

	if err := r.store.AddRecords(ctx, records); err != nil {
		return nil, err
	}
	if err := r.store.TouchSession(ctx, sess.ID); err != nil {
		return nil, err
	}

	result.Imported = len(records)
	r.log.WithFields(logger.Fields{
		"session_id":   sess.ID,
		"imported":     result.Imported,
		"needs_review": result.NeedsReview,
	}).Info("imported record batch")

	return result, nil
}

// RunResult is the outcome of one reconciliation run.
type RunResult struct {
	SessionID string                                   `json:"session_id"`
	Schemes   map[models.PairingScheme]*matcher.Result `json:"schemes"`
	Matches   []*models.Match                          `json:"matches"`
	Summary   *Summary                                 `json:"summary"`
}

// Run executes automatic matching over every pairing scheme of a session.
//
// Runs are idempotent: previous automatic matches are reverted first, then
// matching starts fresh over all records not held by a manual match. Manual
// matches always survive a re-run. A run already in progress on the same
// session causes an immediate concurrency error.
func (r *Runner) Run(ctx context.Context, sessionID string, cfg *scoring.Config) (*RunResult, error) {
	lock := r.sessionLock(sessionID)
	if !lock.TryLock() {
		return nil, apperrors.NewConcurrencyError(apperrors.CodeConcurrentRun,
			"a reconciliation run is already in progress for this session", nil).
			WithContext("session_id", sessionID).
			WithSuggestion("wait for the current run to finish")
	}
	defer lock.Unlock()

	sess, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	engine, err := matcher.NewEngine(cfg)
	if err != nil {
		return nil, apperrors.NewConfigurationError(apperrors.CodeInvalidConfig, "invalid scoring configuration", err)
	}

	reverted, err := r.store.DeleteAutomaticMatches(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if reverted > 0 {
		r.log.WithFields(logger.Fields{
			"session_id": sess.ID,
			"reverted":   reverted,
		}).Info("reverted previous automatic matches")
	}

	manual, err := r.store.ListMatches(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	manuallyMatched := make(map[string]bool, len(manual)*2)
	for _, m := range manual {
		manuallyMatched[m.RecordA] = true
		manuallyMatched[m.RecordB] = true
	}

	result := &RunResult{
		SessionID: sess.ID,
		Schemes:   make(map[models.PairingScheme]*matcher.Result),
	}

	var committed []*models.Match
	for _, scheme := range models.AllPairingSchemes() {
		typeA, typeB := scheme.Sides()

		sideA, err := r.loadFree(ctx, sess.ID, typeA, manuallyMatched)
		if err != nil {
			return nil, err
		}
		sideB, err := r.loadFree(ctx, sess.ID, typeB, manuallyMatched)
		if err != nil {
			return nil, err
		}

		schemeResult, err := engine.Match(ctx, scheme, sideA, sideB)
		if err != nil {
			return nil, apperrors.NewReconciliationError(apperrors.CodeMatchingFailed, "matching run failed", err).
				WithContext("scheme", string(scheme))
		}

		result.Schemes[scheme] = schemeResult
		committed = append(committed, schemeResult.ToMatches(sess.ID)...)
	}

	if err := r.store.InsertMatches(ctx, committed); err != nil {
		return nil, err
	}
	if err := r.store.TouchSession(ctx, sess.ID); err != nil {
		return nil, err
	}

	result.Matches = append(committed, manual...)

	records, err := r.store.ListRecords(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	result.Summary = ComputeSummary(sess.ID, records, result.Matches)

	r.log.WithFields(logger.Fields{
		"session_id": sess.ID,
		"matched":    len(committed),
		"manual":     len(manual),
		"match_rate": result.Summary.MatchRate,
	}).Info("reconciliation run complete")

	return result, nil
}

func (r *Runner) loadFree(ctx context.Context, sessionID string, sourceType models.SourceType, exclude map[string]bool) ([]*models.CandidateRecord, error) {
	records, err := r.store.ListRecordsByType(ctx, sessionID, sourceType)
	if err != nil {
		return nil, err
	}

	free := records[:0]
	for _, rec := range records {
		if !exclude[rec.ID] {
			free = append(free, rec)
		}
	}
	return free, nil
}

// CommitManualMatch pairs two records at user request. The records must
// belong to the session, form a valid scheme, and be unmatched; the pairing
// is stored with full confidence.
func (r *Runner) CommitManualMatch(ctx context.Context, sessionID, recordAID, recordBID string) (*models.Match, error) {
	recA, err := r.store.GetRecord(ctx, recordAID)
	if err != nil {
		return nil, err
	}
	recB, err := r.store.GetRecord(ctx, recordBID)
	if err != nil {
		return nil, err
	}

	if recA.SessionID != sessionID || recB.SessionID != sessionID {
		return nil, apperrors.NewValidationError(apperrors.CodeInvalidData,
			"records do not belong to this session", nil).
			WithContext("session_id", sessionID)
	}

	scheme, ok := models.SchemeFor(recA.SourceType, recB.SourceType)
	if !ok {
		return nil, apperrors.NewReconciliationError(apperrors.CodeSchemeMismatch,
			"these document types cannot be paired", nil).
			WithContext("type_a", string(recA.SourceType)).
			WithContext("type_b", string(recB.SourceType))
	}

	// Normalize sides so record A always carries the scheme's first type.
	typeA, _ := scheme.Sides()
	if recA.SourceType != typeA {
		recA, recB = recB, recA
	}

	match := models.NewManualMatch(sessionID, recA, recB, scheme)
	if err := r.store.InsertMatches(ctx, []*models.Match{match}); err != nil {
		// The unique constraint rejects records that are already matched.
		return nil, apperrors.NewReconciliationError(apperrors.CodeRecordsConsumed,
			"one of the records is already matched", err).
			WithSuggestion("unmatch the existing pairing first")
	}
	if err := r.store.TouchSession(ctx, sessionID); err != nil {
		return nil, err
	}

	r.log.WithFields(logger.Fields{
		"session_id": sessionID,
		"record_a":   recA.ID,
		"record_b":   recB.ID,
	}).Info("manual match committed")

	return match, nil
}

// Unmatch removes a committed match by ID, returning both records to the
// unmatched pool for the next run. The match must belong to the given
// session.
func (r *Runner) Unmatch(ctx context.Context, sessionID, matchID string) error {
	if err := r.store.DeleteMatch(ctx, sessionID, matchID); err != nil {
		return err
	}
	return r.store.TouchSession(ctx, sessionID)
}

// Summary recomputes the statistics view of a session from storage
func (r *Runner) Summary(ctx context.Context, sessionID string) (*Summary, error) {
	if _, err := r.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	records, err := r.store.ListRecords(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	matches, err := r.store.ListMatches(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ComputeSummary(sessionID, records, matches), nil
}
