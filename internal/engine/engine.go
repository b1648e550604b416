// Package engine orchestrates estimate and commit computations over
// repository snapshots, gating billable work behind payment confirmation
// and memoizing committed results in the session cache.
package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"codecat/internal/cache"
	"codecat/internal/concat"
	"codecat/internal/ignore"
	"codecat/internal/stats"
	"codecat/internal/tokenizer"
	"codecat/internal/types"
)

// schemaVersion participates in the fingerprint so cached results are never
// replayed across incompatible statistics layouts.
const schemaVersion = "codecat-v1"

const artifactFilePermissions = 0o644

// SessionState tracks one payment-gated computation.
type SessionState int

const (
	StateEstimated SessionState = iota
	StateAwaitingPayment
	StatePaid
	StateCommitted
	StateExpired
	StateFailed
)

// String returns the state name used in logs and errors.
func (state SessionState) String() string {
	switch state {
	case StateEstimated:
		return "ESTIMATED"
	case StateAwaitingPayment:
		return "AWAITING_PAYMENT"
	case StatePaid:
		return "PAID"
	case StateCommitted:
		return "COMMITTED"
	case StateExpired:
		return "EXPIRED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is the materialized repository tree handed to the engine by the
// fetch collaborator.
type Snapshot struct {
	RepositoryName string
	Ref            string
	Entries        []types.RawEntry
}

// Options configures an Engine.
type Options struct {
	// Cache stores committed results; nil selects an in-memory cache.
	Cache cache.SessionCache
	// CacheTTL bounds result replayability; non-positive selects the default.
	CacheTTL time.Duration
	// Workers bounds the per-computation classification pool.
	Workers int
	// OutputDirectory receives artifact files.
	OutputDirectory string
	// TokenCounter, when set, estimates the artifact's token count.
	TokenCounter tokenizer.Counter
	// TokenModel names the model the counter was built for.
	TokenModel string
}

// session is the engine-private record of one computation.
type session struct {
	fingerprint      string
	state            SessionState
	paymentSessionID string
	snapshot         Snapshot
	rules            []ignore.Rule
	aggregator       *stats.Aggregator
}

// Engine exposes the estimate/commit surface consumed by the payment
// collaborator. The session cache is the only shared mutable state; every
// computation builds its records fresh and hands them off by ownership
// transfer.
type Engine struct {
	options Options

	sessionMutex          sync.Mutex
	sessionsByFingerprint map[string]*session
	fingerprintsByPayment map[string]string

	commitGroup singleflight.Group
}

// New constructs an Engine.
func New(options Options) *Engine {
	if options.Cache == nil {
		options.Cache = cache.NewMemoryCache(cache.DefaultCapacity, options.CacheTTL)
	}
	if options.CacheTTL <= 0 {
		options.CacheTTL = cache.DefaultTTL
	}
	return &Engine{
		options:               options,
		sessionsByFingerprint: make(map[string]*session),
		fingerprintsByPayment: make(map[string]string),
	}
}

// ComputeFingerprint derives the stable cache key of one computation from
// the repository identity, the ref, the schema version, and the sorted rule
// patterns.
func ComputeFingerprint(repositoryName, ref string, sortedPatterns []string) string {
	digest := sha256.New()
	fmt.Fprintf(digest, "%s\n%s\n%s\n", schemaVersion, repositoryName, ref)
	for _, pattern := range sortedPatterns {
		fmt.Fprintf(digest, "%s\n", pattern)
	}
	return hex.EncodeToString(digest.Sum(nil))
}

// Estimate runs a size and file-count pass for pricing. It is cheap (no line
// classification), always re-runnable, and never cached. The returned
// fingerprint keys all subsequent operations.
func (computeEngine *Engine) Estimate(ctx context.Context, snapshot Snapshot, ruleInput ignore.RuleSetInput) (*types.Estimate, error) {
	rules := ignore.BuildRuleSet(ruleInput)
	matcher := ignore.Compile(rules)
	fingerprint := ComputeFingerprint(snapshot.RepositoryName, snapshot.Ref, ignore.SortedPatterns(rules))

	estimate := &types.Estimate{
		Fingerprint: fingerprint,
		Warnings:    matcher.Warnings(),
	}
	for _, rawEntry := range snapshot.Entries {
		if contextError := ctx.Err(); contextError != nil {
			return nil, contextError
		}
		if rawEntry.IsDirectory {
			continue
		}
		if !matcher.Test(rawEntry.Path, false).Included {
			continue
		}
		estimate.EstimatedFileCount++
		estimate.EstimatedSizeBytes += rawEntry.Size
	}

	computeEngine.sessionMutex.Lock()
	defer computeEngine.sessionMutex.Unlock()
	if _, exists := computeEngine.sessionsByFingerprint[fingerprint]; !exists {
		computeEngine.sessionsByFingerprint[fingerprint] = &session{
			fingerprint: fingerprint,
			state:       StateEstimated,
			snapshot:    snapshot,
			rules:       rules,
			aggregator: &stats.Aggregator{
				RepositoryName: snapshot.RepositoryName,
				Workers:        computeEngine.options.Workers,
			},
		}
	}
	return estimate, nil
}

// RequestCommit pairs a fingerprint with the payment collaborator's session
// key and moves the session to AWAITING_PAYMENT.
func (computeEngine *Engine) RequestCommit(fingerprint, paymentSessionID string) error {
	computeEngine.sessionMutex.Lock()
	defer computeEngine.sessionMutex.Unlock()

	currentSession, exists := computeEngine.sessionsByFingerprint[fingerprint]
	if !exists {
		return fmt.Errorf("%w: %s", ErrFingerprintMismatch, fingerprint)
	}
	switch currentSession.state {
	case StateEstimated, StateAwaitingPayment:
		delete(computeEngine.fingerprintsByPayment, currentSession.paymentSessionID)
		currentSession.state = StateAwaitingPayment
		currentSession.paymentSessionID = paymentSessionID
		computeEngine.fingerprintsByPayment[paymentSessionID] = fingerprint
		return nil
	case StateExpired:
		return fmt.Errorf("%w: %s", ErrSessionExpired, fingerprint)
	case StateFailed:
		return fmt.Errorf("%w: %s", ErrSessionFailed, fingerprint)
	default:
		// Already paid or committed; the pairing is settled.
		return nil
	}
}

// ConfirmPayment is invoked by the payment collaborator once it has verified
// the session. It transitions the matching session to PAID.
func (computeEngine *Engine) ConfirmPayment(paymentSessionID string) error {
	computeEngine.sessionMutex.Lock()
	defer computeEngine.sessionMutex.Unlock()

	fingerprint, exists := computeEngine.fingerprintsByPayment[paymentSessionID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownPaymentSession, paymentSessionID)
	}
	currentSession := computeEngine.sessionsByFingerprint[fingerprint]
	if currentSession.state == StateAwaitingPayment {
		currentSession.state = StatePaid
	}
	return nil
}

// SessionState reports the current state of a fingerprint's session.
func (computeEngine *Engine) SessionState(fingerprint string) (SessionState, bool) {
	computeEngine.sessionMutex.Lock()
	defer computeEngine.sessionMutex.Unlock()
	currentSession, exists := computeEngine.sessionsByFingerprint[fingerprint]
	if !exists {
		return 0, false
	}
	return currentSession.state, true
}

// AggregationRuns reports how many full aggregation passes ran for a
// fingerprint. Cached replays do not increment it.
func (computeEngine *Engine) AggregationRuns(fingerprint string) int64 {
	computeEngine.sessionMutex.Lock()
	defer computeEngine.sessionMutex.Unlock()
	currentSession, exists := computeEngine.sessionsByFingerprint[fingerprint]
	if !exists {
		return 0
	}
	return currentSession.aggregator.Runs()
}

// Commit produces the full statistics and artifact for a paid session. The
// cache is consulted first; a hit replays the stored entry without
// recomputation, which makes Commit safe to poll while payment confirmation
// propagates. Concurrent commits under one fingerprint serialize through a
// single flight, and a cancelled commit publishes nothing.
func (computeEngine *Engine) Commit(ctx context.Context, fingerprint string) (*types.CacheEntry, error) {
	currentSession, stateError := computeEngine.commitableSession(fingerprint)
	if stateError != nil {
		return nil, stateError
	}

	if cachedEntry, found := computeEngine.options.Cache.Get(fingerprint); found {
		return cachedEntry, nil
	}

	flightResult, flightError, _ := computeEngine.commitGroup.Do(fingerprint, func() (interface{}, error) {
		if cachedEntry, found := computeEngine.options.Cache.Get(fingerprint); found {
			return cachedEntry, nil
		}
		// A committed session whose entry vanished between the state check
		// and this flight has expired; it must not be recomputed.
		if expiredError := computeEngine.expireIfCommitted(currentSession); expiredError != nil {
			return nil, expiredError
		}
		return computeEngine.computeAndStore(ctx, currentSession)
	})
	if flightError != nil {
		return nil, flightError
	}
	return flightResult.(*types.CacheEntry), nil
}

// commitableSession validates that the fingerprint's session may commit.
func (computeEngine *Engine) commitableSession(fingerprint string) (*session, error) {
	computeEngine.sessionMutex.Lock()
	defer computeEngine.sessionMutex.Unlock()

	currentSession, exists := computeEngine.sessionsByFingerprint[fingerprint]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrFingerprintMismatch, fingerprint)
	}
	switch currentSession.state {
	case StatePaid:
		return currentSession, nil
	case StateCommitted:
		if _, found := computeEngine.options.Cache.Get(fingerprint); !found {
			currentSession.state = StateExpired
			return nil, fmt.Errorf("%w: %s", ErrSessionExpired, fingerprint)
		}
		return currentSession, nil
	case StateEstimated, StateAwaitingPayment:
		return nil, fmt.Errorf("%w: session %s is %s", ErrPaymentNotVerified, fingerprint, currentSession.state)
	case StateExpired:
		return nil, fmt.Errorf("%w: %s", ErrSessionExpired, fingerprint)
	default:
		return nil, fmt.Errorf("%w: %s", ErrSessionFailed, fingerprint)
	}
}

// expireIfCommitted marks a COMMITTED session expired, returning the expiry
// error. Sessions in any other state return nil and may compute.
func (computeEngine *Engine) expireIfCommitted(currentSession *session) error {
	computeEngine.sessionMutex.Lock()
	defer computeEngine.sessionMutex.Unlock()

	if currentSession.state != StateCommitted {
		return nil
	}
	currentSession.state = StateExpired
	return fmt.Errorf("%w: %s", ErrSessionExpired, currentSession.fingerprint)
}

// computeAndStore runs the full aggregation and artifact write for one
// session and publishes the cache entry. Nothing is published on error or
// cancellation.
func (computeEngine *Engine) computeAndStore(ctx context.Context, currentSession *session) (*types.CacheEntry, error) {
	matcher := ignore.Compile(currentSession.rules)

	aggregator := currentSession.aggregator
	aggregator.Matcher = matcher
	statistics, aggregateError := aggregator.Aggregate(ctx, currentSession.snapshot.Entries)
	if aggregateError != nil {
		return nil, computeEngine.failSession(ctx, currentSession, aggregateError)
	}

	artifactWriter := &concat.Writer{
		Matcher:        matcher,
		RepositoryName: currentSession.snapshot.RepositoryName,
		Workers:        computeEngine.options.Workers,
	}
	var artifactBuffer bytes.Buffer
	writeResult, writeError := artifactWriter.Write(ctx, currentSession.snapshot.Entries, &artifactBuffer)
	if writeError != nil {
		return nil, computeEngine.failSession(ctx, currentSession, writeError)
	}

	artifactLocation, persistError := computeEngine.persistArtifact(currentSession.snapshot.RepositoryName, artifactBuffer.Bytes())
	if persistError != nil {
		return nil, computeEngine.failSession(ctx, currentSession, persistError)
	}

	createdAt := time.Now()
	cacheEntry := &types.CacheEntry{
		Fingerprint:      currentSession.fingerprint,
		Statistics:       statistics,
		ArtifactLocation: artifactLocation,
		BytesWritten:     writeResult.BytesWritten,
		CreatedAt:        createdAt,
		ExpiresAt:        createdAt.Add(computeEngine.options.CacheTTL),
		PaymentSessionID: currentSession.paymentSessionID,
	}

	if computeEngine.options.TokenCounter != nil {
		tokenCount, tokenError := computeEngine.options.TokenCounter.CountString(artifactBuffer.String())
		if tokenError == nil {
			cacheEntry.Tokens = tokenCount
			cacheEntry.TokenModel = computeEngine.options.TokenModel
		} else {
			statistics.Warnings = append(statistics.Warnings, fmt.Sprintf("token estimate unavailable: %v", tokenError))
		}
	}

	storedEntry := computeEngine.options.Cache.Put(currentSession.fingerprint, cacheEntry)

	computeEngine.sessionMutex.Lock()
	currentSession.state = StateCommitted
	computeEngine.sessionMutex.Unlock()
	return storedEntry, nil
}

// failSession records a terminal failure unless the computation was merely
// cancelled, which leaves the session retryable.
func (computeEngine *Engine) failSession(ctx context.Context, currentSession *session, cause error) error {
	if ctx.Err() != nil {
		return cause
	}
	computeEngine.sessionMutex.Lock()
	currentSession.state = StateFailed
	computeEngine.sessionMutex.Unlock()
	return fmt.Errorf("%w: %v", ErrSessionFailed, cause)
}

// persistArtifact writes the artifact under the configured output directory
// and returns its location.
func (computeEngine *Engine) persistArtifact(repositoryName string, artifactBytes []byte) (string, error) {
	outputDirectory := computeEngine.options.OutputDirectory
	if outputDirectory == "" {
		outputDirectory = "."
	}
	if mkdirError := os.MkdirAll(outputDirectory, 0o755); mkdirError != nil {
		return "", fmt.Errorf("creating output directory %s: %w", outputDirectory, mkdirError)
	}
	artifactLocation := filepath.Join(outputDirectory, concat.ArtifactFileName(repositoryName))
	if writeError := os.WriteFile(artifactLocation, artifactBytes, artifactFilePermissions); writeError != nil {
		return "", fmt.Errorf("writing artifact %s: %w", artifactLocation, writeError)
	}
	return artifactLocation, nil
}

// InvalidateSession drops a fingerprint's cache entry and session record.
func (computeEngine *Engine) InvalidateSession(fingerprint string) {
	computeEngine.sessionMutex.Lock()
	defer computeEngine.sessionMutex.Unlock()

	if currentSession, exists := computeEngine.sessionsByFingerprint[fingerprint]; exists {
		delete(computeEngine.fingerprintsByPayment, currentSession.paymentSessionID)
		delete(computeEngine.sessionsByFingerprint, fingerprint)
	}
	computeEngine.options.Cache.Invalidate(fingerprint)
}
