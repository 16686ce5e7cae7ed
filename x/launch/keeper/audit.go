package keeper

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// ---------------------------------------------------------------------------
// Structured Audit Logging
// ---------------------------------------------------------------------------
//
// This file implements a deterministic, structured audit logging system for
// the launch module. Every funds-relevant action is recorded as an
// AuditRecord, which is:
//
//   1. Hashed (SHA-256) for tamper detection
//   2. Chained to the previous record (hash chain) for continuity
//   3. Emitted as an SDK event for on-chain persistence
//   4. Written to the Cosmos SDK logger for operator visibility
//
// The audit trail is designed for raise-accounting disputes and
// post-incident forensic analysis.
//
// Design principles:
//   - Deterministic: identical inputs always produce identical records
//   - Append-only: records are never modified or deleted
//   - Chainable: each record includes the hash of the previous record
//   - Self-describing: records include type, category, and severity
// ---------------------------------------------------------------------------

// DefaultAuditBufferSize bounds the in-memory audit ring buffer.
const DefaultAuditBufferSize = 4096

// ---------------------------------------------------------------------------
// Audit record types
// ---------------------------------------------------------------------------

// AuditCategory classifies an audit event by domain.
type AuditCategory string

const (
	AuditCategoryListing  AuditCategory = "listing"
	AuditCategoryCapital  AuditCategory = "capital"
	AuditCategoryRewards  AuditCategory = "rewards"
	AuditCategoryPass     AuditCategory = "pass"
	AuditCategoryYield    AuditCategory = "yield"
	AuditCategorySecurity AuditCategory = "security"
)

// AuditSeverity classifies the importance of an audit event.
type AuditSeverity string

const (
	AuditSeverityInfo     AuditSeverity = "info"
	AuditSeverityWarning  AuditSeverity = "warning"
	AuditSeverityCritical AuditSeverity = "critical"
)

// AuditRecord is a single structured audit entry. All fields are exported
// for JSON serialization. The RecordHash is computed deterministically from
// all other fields plus the PreviousHash (hash chain).
type AuditRecord struct {
	// Identity
	Sequence     uint64 `json:"sequence"`
	RecordHash   string `json:"record_hash"`
	PreviousHash string `json:"previous_hash"`

	// Classification
	Category AuditCategory `json:"category"`
	Severity AuditSeverity `json:"severity"`
	Action   string        `json:"action"`

	// Context
	BlockHeight int64  `json:"block_height"`
	Timestamp   string `json:"timestamp"` // RFC3339
	Actor       string `json:"actor"`     // address or "system"

	// Payload
	Details map[string]string `json:"details"`
}

// computeHash produces a deterministic SHA-256 digest of the record. It
// serializes all non-hash fields plus PreviousHash in a canonical order.
func (r *AuditRecord) computeHash() string {
	canonical := fmt.Sprintf(
		"seq=%d|prev=%s|cat=%s|sev=%s|act=%s|height=%d|ts=%s|actor=%s",
		r.Sequence, r.PreviousHash, r.Category, r.Severity, r.Action,
		r.BlockHeight, r.Timestamp, r.Actor,
	)
	// Append sorted details.
	if len(r.Details) > 0 {
		keys := sortedKeys(r.Details)
		for _, k := range keys {
			canonical += fmt.Sprintf("|%s=%s", k, r.Details[k])
		}
	}
	hash := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(hash[:])
}

// sortedKeys returns the keys of a map in sorted order (insertion sort).
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Insertion sort (deterministic, no import needed)
	for i := 1; i < len(keys); i++ {
		k := keys[i]
		j := i - 1
		for j >= 0 && keys[j] > k {
			keys[j+1] = keys[j]
			j--
		}
		keys[j+1] = k
	}
	return keys
}

// ---------------------------------------------------------------------------
// AuditLogger
// ---------------------------------------------------------------------------

// AuditLogger maintains a hash-chained sequence of audit records and emits
// them to both the SDK event system and the structured logger.
type AuditLogger struct {
	mu           sync.Mutex
	sequence     uint64
	lastHash     string
	records      []AuditRecord // in-memory buffer (bounded)
	bufferCap    int
	totalEmitted uint64
}

// NewAuditLogger creates a new audit logger with a bounded in-memory buffer.
// Records beyond the buffer capacity displace the oldest records (ring buffer
// semantics) in memory, but all records are still emitted to the SDK event
// system for on-chain persistence.
func NewAuditLogger(bufferCapacity int) *AuditLogger {
	if bufferCapacity <= 0 {
		bufferCapacity = DefaultAuditBufferSize
	}
	return &AuditLogger{
		bufferCap: bufferCapacity,
		records:   make([]AuditRecord, 0, bufferCapacity),
		lastHash:  "genesis",
	}
}

// Record creates a new audit record, computes its hash (chained to the
// previous record), appends it to the buffer, emits it as an SDK event,
// and logs it through the Cosmos SDK logger.
func (al *AuditLogger) Record(ctx sdk.Context, category AuditCategory, severity AuditSeverity, action, actor string, details map[string]string) *AuditRecord {
	al.mu.Lock()
	defer al.mu.Unlock()

	al.sequence++
	record := AuditRecord{
		Sequence:     al.sequence,
		PreviousHash: al.lastHash,
		Category:     category,
		Severity:     severity,
		Action:       action,
		BlockHeight:  ctx.BlockHeight(),
		Timestamp:    ctx.BlockTime().UTC().Format(time.RFC3339),
		Actor:        actor,
		Details:      details,
	}

	// Compute and set the record hash.
	record.RecordHash = record.computeHash()
	al.lastHash = record.RecordHash

	// Append to ring buffer.
	if len(al.records) < al.bufferCap {
		al.records = append(al.records, record)
	} else {
		al.records[int(al.totalEmitted)%al.bufferCap] = record
	}
	al.totalEmitted++

	// Emit SDK event for on-chain persistence.
	al.emitAuditEvent(ctx, &record)

	// Log for operator visibility.
	al.logRecord(ctx, &record)

	return &record
}

// emitAuditEvent emits the audit record as a structured SDK event.
func (al *AuditLogger) emitAuditEvent(ctx sdk.Context, r *AuditRecord) {
	em := ctx.EventManager()
	if em == nil {
		return
	}
	attrs := []sdk.Attribute{
		sdk.NewAttribute("sequence", strconv.FormatUint(r.Sequence, 10)),
		sdk.NewAttribute("record_hash", r.RecordHash),
		sdk.NewAttribute("previous_hash", r.PreviousHash),
		sdk.NewAttribute("category", string(r.Category)),
		sdk.NewAttribute("severity", string(r.Severity)),
		sdk.NewAttribute("action", r.Action),
		sdk.NewAttribute("actor", r.Actor),
		sdk.NewAttribute("block_height", strconv.FormatInt(r.BlockHeight, 10)),
		sdk.NewAttribute("timestamp", r.Timestamp),
	}

	// Add detail attributes (prefixed with "detail_" to avoid collisions).
	for _, k := range sortedKeys(r.Details) {
		attrs = append(attrs, sdk.NewAttribute("detail_"+k, r.Details[k]))
	}

	em.EmitEvent(sdk.NewEvent("audit_record", attrs...))
}

// logRecord writes the audit record to the Cosmos SDK logger with structured
// key-value pairs for operator visibility and log aggregation.
func (al *AuditLogger) logRecord(ctx sdk.Context, r *AuditRecord) {
	logger := ctx.Logger()
	if logger == nil {
		return
	}
	kvs := []interface{}{
		"sequence", r.Sequence,
		"hash", r.RecordHash[:16], // truncated for readability
		"category", string(r.Category),
		"action", r.Action,
		"actor", r.Actor,
		"block_height", r.BlockHeight,
	}

	// Add details.
	for _, k := range sortedKeys(r.Details) {
		kvs = append(kvs, k, r.Details[k])
	}

	switch r.Severity {
	case AuditSeverityCritical:
		logger.Error("AUDIT", kvs...)
	case AuditSeverityWarning:
		logger.Warn("AUDIT", kvs...)
	default:
		logger.Info("AUDIT", kvs...)
	}
}

// ---------------------------------------------------------------------------
// Query / export
// ---------------------------------------------------------------------------

// GetRecords returns a copy of the buffered audit records. The returned slice
// is safe to iterate without locks.
func (al *AuditLogger) GetRecords() []AuditRecord {
	al.mu.Lock()
	defer al.mu.Unlock()

	out := make([]AuditRecord, len(al.records))
	copy(out, al.records)
	return out
}

// GetRecordsSince returns all buffered audit records at or after the given
// block height.
func (al *AuditLogger) GetRecordsSince(height int64) []AuditRecord {
	al.mu.Lock()
	defer al.mu.Unlock()

	var out []AuditRecord
	for _, r := range al.records {
		if r.BlockHeight >= height {
			out = append(out, r)
		}
	}
	return out
}

// GetRecordsByCategory returns all buffered records matching the given
// category.
func (al *AuditLogger) GetRecordsByCategory(cat AuditCategory) []AuditRecord {
	al.mu.Lock()
	defer al.mu.Unlock()

	var out []AuditRecord
	for _, r := range al.records {
		if r.Category == cat {
			out = append(out, r)
		}
	}
	return out
}

// GetRecordsBySeverity returns all buffered records matching the given
// severity or higher.
func (al *AuditLogger) GetRecordsBySeverity(minSeverity AuditSeverity) []AuditRecord {
	al.mu.Lock()
	defer al.mu.Unlock()

	minOrd := severityOrdinal(minSeverity)
	var out []AuditRecord
	for _, r := range al.records {
		if severityOrdinal(r.Severity) >= minOrd {
			out = append(out, r)
		}
	}
	return out
}

func severityOrdinal(s AuditSeverity) int {
	switch s {
	case AuditSeverityInfo:
		return 0
	case AuditSeverityWarning:
		return 1
	case AuditSeverityCritical:
		return 2
	default:
		return 0
	}
}

// TotalEmitted returns the total number of audit records ever emitted
// (may exceed the buffer capacity).
func (al *AuditLogger) TotalEmitted() uint64 {
	al.mu.Lock()
	defer al.mu.Unlock()
	return al.totalEmitted
}

// Sequence returns the current sequence number.
func (al *AuditLogger) Sequence() uint64 {
	al.mu.Lock()
	defer al.mu.Unlock()
	return al.sequence
}

// LastHash returns the hash of the most recent record.
func (al *AuditLogger) LastHash() string {
	al.mu.Lock()
	defer al.mu.Unlock()
	return al.lastHash
}

// ExportJSON serializes all buffered records to a JSON byte slice.
func (al *AuditLogger) ExportJSON() ([]byte, error) {
	records := al.GetRecords()
	return json.Marshal(records)
}

// VerifyChain verifies the hash chain integrity of all buffered records.
// Returns nil if the chain is valid, or an error describing the first
// broken link.
func (al *AuditLogger) VerifyChain() error {
	al.mu.Lock()
	defer al.mu.Unlock()

	return VerifyRecordChain(al.records)
}

// VerifyRecordChain verifies the hash chain over an arbitrary slice of
// records, e.g. one re-read from an ExportJSON dump. Returns nil if the
// chain is valid, or an error describing the first broken link.
func VerifyRecordChain(records []AuditRecord) error {
	for i, r := range records {
		// Recompute hash.
		expected := r.computeHash()
		if expected != r.RecordHash {
			return fmt.Errorf("audit chain broken at sequence %d: expected hash %s, got %s",
				r.Sequence, expected, r.RecordHash)
		}

		// Check chain linkage.
		if i > 0 {
			if r.PreviousHash != records[i-1].RecordHash {
				return fmt.Errorf("audit chain broken at sequence %d: previous hash mismatch", r.Sequence)
			}
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Convenience audit helpers for common operations
// ---------------------------------------------------------------------------

// AuditListingCreated records a new listing registration.
func (al *AuditLogger) AuditListingCreated(ctx sdk.Context, listingID, issuer, beneficiary, denom string, feeBps int64) {
	al.Record(ctx, AuditCategoryListing, AuditSeverityInfo, "listing_created", issuer, map[string]string{
		"listing_id":  listingID,
		"beneficiary": beneficiary,
		"denom":       denom,
		"fee_bps":     strconv.FormatInt(feeBps, 10),
	})
}

// AuditListingActivated records a listing opening for deposits.
func (al *AuditLogger) AuditListingActivated(ctx sdk.Context, listingID, requester string) {
	al.Record(ctx, AuditCategoryListing, AuditSeverityInfo, "listing_activated", requester, map[string]string{
		"listing_id": listingID,
	})
}

// AuditListingPaused records a listing-level pause.
func (al *AuditLogger) AuditListingPaused(ctx sdk.Context, listingID, requester string) {
	al.Record(ctx, AuditCategoryListing, AuditSeverityWarning, "listing_paused", requester, map[string]string{
		"listing_id": listingID,
	})
}

// AuditListingResumed records a listing-level pause being lifted.
func (al *AuditLogger) AuditListingResumed(ctx sdk.Context, listingID, requester string) {
	al.Record(ctx, AuditCategoryListing, AuditSeverityInfo, "listing_resumed", requester, map[string]string{
		"listing_id": listingID,
	})
}

// AuditListingCancelled records a cancellation.
func (al *AuditLogger) AuditListingCancelled(ctx sdk.Context, listingID, requester, reason string) {
	al.Record(ctx, AuditCategoryListing, AuditSeverityWarning, "listing_cancelled", requester, map[string]string{
		"listing_id": listingID,
		"reason":     reason,
	})
}

// AuditListingCompleted records a listing reaching the Completed state.
func (al *AuditLogger) AuditListingCompleted(ctx sdk.Context, listingID string) {
	al.Record(ctx, AuditCategoryListing, AuditSeverityInfo, "listing_completed", "system", map[string]string{
		"listing_id": listingID,
	})
}

// AuditRouteGranted records a revenue route grant.
func (al *AuditLogger) AuditRouteGranted(ctx sdk.Context, listingID, requester, grantee string) {
	al.Record(ctx, AuditCategoryRewards, AuditSeverityInfo, "route_granted", requester, map[string]string{
		"listing_id": listingID,
		"grantee":    grantee,
	})
}

// AuditDepositAccepted records a backer deposit and the pass it minted.
func (al *AuditLogger) AuditDepositAccepted(ctx sdk.Context, listingID, backer, amount, shares, passID string) {
	al.Record(ctx, AuditCategoryCapital, AuditSeverityInfo, "deposit_accepted", backer, map[string]string{
		"listing_id": listingID,
		"amount":     amount,
		"shares":     shares,
		"pass_id":    passID,
	})
}

// AuditScheduleFinalized records the one-time schedule computation.
func (al *AuditLogger) AuditScheduleFinalized(ctx sdk.Context, listingID, requester, principal, fee, net string, tranches int) {
	al.Record(ctx, AuditCategoryCapital, AuditSeverityInfo, "schedule_finalized", requester, map[string]string{
		"listing_id": listingID,
		"principal":  principal,
		"fee":        fee,
		"net":        net,
		"tranches":   strconv.Itoa(tranches),
	})
}

// AuditFeeCollected records the raise fee payout. Severity escalates when
// the vault could not pay the full computed fee.
func (al *AuditLogger) AuditFeeCollected(ctx sdk.Context, listingID, fee, paid string, short bool) {
	sev := AuditSeverityInfo
	if short {
		sev = AuditSeverityCritical
	}
	al.Record(ctx, AuditCategoryCapital, sev, "fee_collected", "system", map[string]string{
		"listing_id": listingID,
		"fee":        fee,
		"paid":       paid,
	})
}

// AuditTrancheReleased records one tranche payout. Severity escalates when
// the vault could not pay in full.
func (al *AuditLogger) AuditTrancheReleased(ctx sdk.Context, listingID string, index int, amount, paid, shortfall string) {
	sev := AuditSeverityInfo
	if shortfall != "0" {
		sev = AuditSeverityCritical
	}
	al.Record(ctx, AuditCategoryCapital, sev, "tranche_released", "system", map[string]string{
		"listing_id": listingID,
		"index":      strconv.Itoa(index),
		"amount":     amount,
		"paid":       paid,
		"shortfall":  shortfall,
	})
}

// AuditRefundIssued records a post-cancellation refund.
func (al *AuditLogger) AuditRefundIssued(ctx sdk.Context, listingID, holder, passID, principal, rewards string) {
	al.Record(ctx, AuditCategoryCapital, AuditSeverityInfo, "refund_issued", holder, map[string]string{
		"listing_id": listingID,
		"pass_id":    passID,
		"principal":  principal,
		"rewards":    rewards,
	})
}

// AuditRewardsDeposited records revenue routed into the reward vault.
func (al *AuditLogger) AuditRewardsDeposited(ctx sdk.Context, listingID, source, amount, index string) {
	al.Record(ctx, AuditCategoryRewards, AuditSeverityInfo, "rewards_deposited", source, map[string]string{
		"listing_id":   listingID,
		"amount":       amount,
		"global_index": index,
	})
}

// AuditRewardsClaimed records a pass holder claim.
func (al *AuditLogger) AuditRewardsClaimed(ctx sdk.Context, listingID, holder, passID, amount string) {
	al.Record(ctx, AuditCategoryRewards, AuditSeverityInfo, "rewards_claimed", holder, map[string]string{
		"listing_id": listingID,
		"pass_id":    passID,
		"amount":     amount,
	})
}

// AuditPassTransferred records a pass change of ownership.
func (al *AuditLogger) AuditPassTransferred(ctx sdk.Context, listingID, passID, from, to string) {
	al.Record(ctx, AuditCategoryPass, AuditSeverityInfo, "pass_transferred", from, map[string]string{
		"listing_id": listingID,
		"pass_id":    passID,
		"to":         to,
	})
}

// AuditYieldEnabled records a listing opting into the yield source.
func (al *AuditLogger) AuditYieldEnabled(ctx sdk.Context, listingID, requester, validator string) {
	al.Record(ctx, AuditCategoryYield, AuditSeverityInfo, "yield_enabled", requester, map[string]string{
		"listing_id": listingID,
		"validator":  validator,
	})
}

// AuditYieldStaked records idle capital placed with the yield source.
func (al *AuditLogger) AuditYieldStaked(ctx sdk.Context, listingID, requester, handle, amount string) {
	al.Record(ctx, AuditCategoryYield, AuditSeverityInfo, "yield_staked", requester, map[string]string{
		"listing_id": listingID,
		"handle":     handle,
		"amount":     amount,
	})
}

// AuditYieldHarvested records a stake lot redemption. Severity escalates on
// a principal loss.
func (al *AuditLogger) AuditYieldHarvested(ctx sdk.Context, listingID, handle, withdrawn, reward, loss string) {
	sev := AuditSeverityInfo
	if loss != "0" {
		sev = AuditSeverityCritical
	}
	al.Record(ctx, AuditCategoryYield, sev, "yield_harvested", "system", map[string]string{
		"listing_id": listingID,
		"handle":     handle,
		"withdrawn":  withdrawn,
		"reward":     reward,
		"loss":       loss,
	})
}

// AuditSecurityAlert records a high-severity security event, such as a
// broken module invariant.
func (al *AuditLogger) AuditSecurityAlert(ctx sdk.Context, alertType, description string, details map[string]string) {
	if details == nil {
		details = make(map[string]string)
	}
	details["alert_type"] = alertType
	details["description"] = description
	al.Record(ctx, AuditCategorySecurity, AuditSeverityCritical, "security_alert", "system", details)
}
