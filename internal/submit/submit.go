// Package submit routes a statement submission to exactly one of: editing
// an existing claim, creating a depicts claim with its provenance
// qualifier, or recording a vote in one of the ledgers.
package submit

import (
	"context"
	"log/slog"
	"time"

	"github.com/wikimovimentobrasil/wikimotivos/internal/apperr"
	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
	"github.com/wikimovimentobrasil/wikimotivos/internal/oauth"
	"github.com/wikimovimentobrasil/wikimotivos/internal/wikibase"
)

// Authorizer provides the identity and edit token of a session.
type Authorizer interface {
	CurrentUser(ctx context.Context, sess oauth.Session) string
	CurrentToken(ctx context.Context, sess oauth.Session) (wikibase.EditToken, error)
}

// Gateway performs the claim writes and the reconciliation lookup.
type Gateway interface {
	CreateClaim(ctx context.Context, tok wikibase.EditToken, entityID, property, targetID string) (string, error)
	SetClaimValue(ctx context.Context, tok wikibase.EditToken, claimHandle, targetID string) error
	SetQualifier(ctx context.Context, tok wikibase.EditToken, claimHandle, property, qualifierEntityID string) error
	ResolveClaimHandle(ctx context.Context, entityID, property, targetID string) (string, error)
}

// VoteLedger records sentinel votes.
type VoteLedger interface {
	AppendVote(ctx context.Context, log model.LogName, subjectID, user string, at time.Time) error
}

// Observer records submission outcomes.
type Observer interface {
	ObserveSubmission(branch, outcome string)
	ObserveReconciliation(hit bool)
}

// Branch names the route a submission took.
type Branch string

const (
	BranchEditClaim    Branch = "edit_claim"
	BranchDepicts      Branch = "depicts"
	BranchUnknownMotif Branch = "unknown_motif"
	BranchNoMotif      Branch = "no_motif"
	BranchRejected     Branch = "rejected"
)

// Outcome describes a successful submission.
type Outcome struct {
	Branch  Branch
	Message model.MessageKey
	// ClaimHandle is the claim that was edited or resolved after creation.
	// It is empty when reconciliation missed.
	ClaimHandle string
	// QualifierSet reports whether the provenance qualifier was attached.
	QualifierSet bool
}

// Service is the submission orchestrator.
type Service struct {
	auth     Authorizer
	gateway  Gateway
	ledger   VoteLedger
	observer Observer
	wikidata model.WikidataConfig
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the vote timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithObserver records outcomes.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates an orchestrator writing the properties named in wikidata.
func NewService(auth Authorizer, gateway Gateway, ledger VoteLedger, wikidata model.WikidataConfig, opts ...Option) *Service {
	s := &Service{
		auth:     auth,
		gateway:  gateway,
		ledger:   ledger,
		wikidata: wikidata,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit applies sub on behalf of the session. The first matching rule wins:
//  1. a claim handle with a non-sentinel code edits that claim
//  2. the depicts property creates a claim and qualifies it
//  3. "unknownvalue" appends to the unknown-motif ledger
//  4. "novalue" appends to the no-motif ledger
//  5. anything else is a malformed submission
func (s *Service) Submit(ctx context.Context, sess oauth.Session, sub model.Submission) (out Outcome, err error) {
	sub = sub.Normalize()
	out.Branch = route(sub, s.wikidata.DepictsProperty)

	defer func() {
		result := "ok"
		if err != nil {
			result = apperr.KindOf(err).String()
		}
		if s.observer != nil {
			s.observer.ObserveSubmission(string(out.Branch), result)
		}
		if err != nil {
			s.logger.Warn("submission failed", "branch", out.Branch, "subject", sub.SubjectID,
				"code", sub.Predicate, "kind", apperr.KindOf(err).String(), "error", err)
		}
	}()

	if sub.SubjectID == "" {
		out.Branch = BranchRejected
		return out, apperr.Malformed("submit", "missing subject id")
	}

	switch out.Branch {
	case BranchEditClaim:
		return s.editClaim(ctx, sess, sub, out)
	case BranchDepicts:
		return s.createDepicts(ctx, sess, sub, out)
	case BranchUnknownMotif:
		return s.vote(ctx, sess, sub, model.LogUnknownMotif, model.MsgVoteQueued, out)
	case BranchNoMotif:
		return s.vote(ctx, sess, sub, model.LogNoMotif, model.MsgVoteRecorded, out)
	default:
		return out, apperr.New(apperr.KindMalformedSubmission, "submit", string(sub.Predicate), apperr.ErrUnknownCode)
	}
}

// route picks the branch for sub without side effects.
func route(sub model.Submission, depicts string) Branch {
	switch {
	case sub.ClaimHandle != "" && !sub.Predicate.IsSentinel():
		return BranchEditClaim
	case depicts != "" && string(sub.Predicate) == depicts:
		return BranchDepicts
	case sub.Predicate == model.PredicateUnknownValue:
		return BranchUnknownMotif
	case sub.Predicate == model.PredicateNoValue:
		return BranchNoMotif
	default:
		return BranchRejected
	}
}

func (s *Service) editClaim(ctx context.Context, sess oauth.Session, sub model.Submission, out Outcome) (Outcome, error) {
	if sub.TargetID == "" {
		return out, apperr.Malformed("submit.edit_claim", "missing target entity")
	}

	tok, err := s.auth.CurrentToken(ctx, sess)
	if err != nil {
		return out, err
	}
	if err := s.gateway.SetClaimValue(ctx, tok, sub.ClaimHandle, sub.TargetID); err != nil {
		return out, err
	}

	out.ClaimHandle = sub.ClaimHandle
	out.Message = model.MsgClaimSaved
	s.logger.Info("claim edited", "subject", sub.SubjectID, "claim", sub.ClaimHandle, "target", sub.TargetID)
	return out, nil
}

func (s *Service) createDepicts(ctx context.Context, sess oauth.Session, sub model.Submission, out Outcome) (Outcome, error) {
	if sub.TargetID == "" {
		return out, apperr.Malformed("submit.depicts", "missing target entity")
	}

	tok, err := s.auth.CurrentToken(ctx, sess)
	if err != nil {
		return out, err
	}

	created, err := s.gateway.CreateClaim(ctx, tok, sub.SubjectID, s.wikidata.DepictsProperty, sub.TargetID)
	if err != nil {
		return out, err
	}

	// The claim is saved from here on; the qualifier is best effort.
	out.Message = model.MsgClaimSaved

	handle, err := s.gateway.ResolveClaimHandle(ctx, sub.SubjectID, s.wikidata.DepictsProperty, sub.TargetID)
	if s.observer != nil {
		s.observer.ObserveReconciliation(err == nil && handle != "")
	}
	if err != nil || handle == "" {
		s.logger.Info("qualifier skipped", "subject", sub.SubjectID, "target", sub.TargetID,
			"created", created, "reason", reconciliationReason(err))
		return out, nil
	}
	out.ClaimHandle = handle

	if err := s.gateway.SetQualifier(ctx, tok, handle, s.wikidata.ProvenanceProperty, s.wikidata.ProvenanceEntity); err != nil {
		s.logger.Warn("qualifier rejected", "claim", handle, "error", err)
		return out, nil
	}
	out.QualifierSet = true
	return out, nil
}

func (s *Service) vote(ctx context.Context, sess oauth.Session, sub model.Submission, log model.LogName, msg model.MessageKey, out Outcome) (Outcome, error) {
	user := s.auth.CurrentUser(ctx, sess)
	if err := s.ledger.AppendVote(ctx, log, sub.SubjectID, user, s.now()); err != nil {
		return out, err
	}
	out.Message = msg
	return out, nil
}

func reconciliationReason(err error) string {
	if err == nil || apperr.Is(err, apperr.KindReconciliationMiss) {
		return "claim not visible yet"
	}
	return err.Error()
}

// MessageFor maps the result of Submit to the user-facing message.
func MessageFor(out Outcome, err error) model.MessageKey {
	if err == nil {
		if out.Message == "" {
			return model.MsgGenericError
		}
		return out.Message
	}
	switch apperr.KindOf(err) {
	case apperr.KindUpstreamAuth:
		return model.MsgAuthRequired
	case apperr.KindWriteRejected:
		return model.MsgWriteRejected
	case apperr.KindUpstreamTimeout:
		return model.MsgTimeout
	case apperr.KindLedgerIO:
		return model.MsgLedgerFailure
	default:
		return model.MsgGenericError
	}
}
