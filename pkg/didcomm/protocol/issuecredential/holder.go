/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-issuecredential-go/pkg/registry"
	"github.com/hyperledger/aries-issuecredential-go/pkg/store/exchange"
)

var errStillWaiting = errors.New("issuer has not answered")

// RequestParams holds the parameters of a proposal or of a request sent without an offer.
type RequestParams struct {
	// ThreadID is optional, a new thread is started when empty.
	ThreadID               string
	MyDID                  string
	TheirDID               string
	SchemaID               string
	CredentialDefinitionID string
	// Format defaults to AnonCreds.
	Format     exchange.Format
	Attributes []Attribute
	// Credential is the JSON-LD credential document.
	Credential map[string]interface{}
	Comment    string
}

// Holder drives the holder side of the exchange.
type Holder struct {
	*machine
	silenceTimeout time.Duration
	pollInterval   time.Duration
}

// NewHolder returns the holder state machine of the agent.
func NewHolder(p Provider, opts ...Opt) *Holder {
	o := newOptions(opts)

	return &Holder{
		machine:        newMachine(p, exchange.RoleHolder, o.middleware),
		silenceTimeout: o.silenceTimeout,
		pollInterval:   o.pollInterval,
	}
}

func (h *Holder) moveTo(ctx context.Context, rec *exchange.Record, next HolderState, msg service.DIDCommMsgMap) error {
	current := HolderState(rec.State)
	if rec.State == "" {
		current = HolderStart
	}

	if !current.CanTransitionTo(next) {
		return fmt.Errorf("%w: invalid state transition: %s -> %s", ErrProtocolViolation, current, next)
	}

	return h.transition(ctx, rec, string(next), next.Terminal(), msg)
}

func (h *Holder) abandon(ctx context.Context, rec *exchange.Record, why string) {
	if HolderState(rec.State).Terminal() {
		return
	}

	rec.ErrorReason = why

	if err := h.moveTo(ctx, rec, HolderAbandoned, nil); err != nil {
		logger.Errorf("agent=%s thid=%s: abandon: %s", h.agent, rec.ThreadID, err)
	}
}

// Propose starts an exchange with a credential proposal. It returns the thread id.
func (h *Holder) Propose(ctx context.Context, params *RequestParams) (string, error) {
	rec, err := h.prepareRequest(ctx, params, false)
	if err != nil {
		return "", err
	}

	if err := h.create(ctx, rec, HolderProposalSent); err != nil {
		return "", err
	}

	content, err := requestContent(rec)
	if err != nil {
		return "", err
	}

	formats, attachments := newAttachment(rec.Format, kindPropose, content)

	err = h.send(ctx, &ProposeCredential{
		Type:    ProposeCredentialMsgTypeV2,
		ID:      uuid.New().String(),
		Thread:  &decorator.Thread{ID: rec.ThreadID},
		Comment: params.Comment,
		CredentialPreview: &PreviewCredential{
			Type:       CredentialPreviewMsgTypeV2,
			Attributes: rec.Attributes,
		},
		Formats:       formats,
		FiltersAttach: attachments,
	}, rec.MyDID, rec.TheirDID)
	if err != nil {
		h.abandonAfterSend(ctx, rec.ThreadID, err)

		return rec.ThreadID, err
	}

	return rec.ThreadID, h.outcome(rec.ThreadID)
}

func (h *Holder) create(ctx context.Context, rec *exchange.Record, state HolderState) error {
	release, err := h.store.Acquire(rec.ThreadID)
	if err != nil {
		return err
	}

	defer release()

	return h.moveTo(ctx, rec, state, nil)
}

// prepareRequest validates what the holder asks for. Without a ready credential definition
// the request cannot be resolved.
func (h *Holder) prepareRequest(ctx context.Context, params *RequestParams, lock bool) (*exchange.Record, error) {
	if params.MyDID == "" || params.TheirDID == "" {
		return nil, fmt.Errorf("%w: no active connection", ErrProtocolViolation)
	}

	if params.SchemaID == "" {
		return nil, fmt.Errorf("%w: schema id is required", ErrProtocolViolation)
	}

	format := params.Format
	if format == "" {
		format = exchange.FormatIndy
	}

	if !validFormat(format) {
		return nil, fmt.Errorf("%w: unsupported credential format %q", ErrProtocolViolation, format)
	}

	rec := &exchange.Record{
		ThreadID:               params.ThreadID,
		Role:                   exchange.RoleHolder,
		MyDID:                  params.MyDID,
		TheirDID:               params.TheirDID,
		SchemaID:               params.SchemaID,
		CredentialDefinitionID: params.CredentialDefinitionID,
		Format:                 format,
		Attributes:             params.Attributes,
		AttributesLocked:       lock,
	}

	if rec.ThreadID == "" {
		rec.ThreadID = uuid.New().String()
	}

	if format == exchange.FormatJSONLD {
		if err := validateJSONLD(params.Credential, h.loader); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrProtocolViolation, err)
		}

		attrs, err := subjectAttributes(params.Credential)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrProtocolViolation, err)
		}

		if rec.Credential, err = json.Marshal(params.Credential); err != nil {
			return nil, fmt.Errorf("marshal JSON-LD credential: %w", err)
		}

		rec.Attributes = attrs
	}

	schema, err := h.resolver.Schema(ctx, params.SchemaID)
	if errors.Is(err, registry.ErrSchemaNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedRequest, err)
	}

	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}

	if err := validateAttributes(schema, rec.Attributes); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProtocolViolation, err)
	}

	if rec.CredentialDefinitionID != "" {
		if cd, err := h.resolver.CredentialDefinition(ctx, rec.CredentialDefinitionID); err == nil {
			rec.Revocable = cd.Revocable
		}
	}

	return rec, nil
}

// HandleOffer handles an inbound credential offer.
func (h *Holder) HandleOffer(ctx context.Context, msg service.DIDCommMsgMap, myDID, theirDID string) error {
	offer := &OfferCredential{}
	if err := msg.Decode(offer); err != nil {
		return fmt.Errorf("%w: decode offer: %s", ErrProtocolViolation, err)
	}

	thID, err := threadID(offer.Thread)
	if err != nil {
		return err
	}

	p, err := parsePayload(offer.Formats, offer.OffersAttach, kindOffer)
	if err != nil {
		h.sendProblemReport(ctx, thID, codeRejectedError, err.Error(), myDID, theirDID)

		return err
	}

	release, err := h.store.Acquire(thID)
	if err != nil {
		return err
	}

	defer release()

	rec, err := h.store.Get(thID)

	switch {
	case errors.Is(err, exchange.ErrRecordNotFound):
		rec = &exchange.Record{ThreadID: thID, Role: exchange.RoleHolder}
	case err != nil:
		return err
	case rec.Role != exchange.RoleHolder:
		return fmt.Errorf("%w: thread %s belongs to the %s", ErrProtocolViolation, thID, rec.Role)
	}

	rec.MyDID = myDID
	rec.TheirDID = theirDID
	rec.CredentialDefinitionID = p.filter.CredDefID

	if p.filter.SchemaID != "" {
		rec.SchemaID = p.filter.SchemaID
	}
	rec.Format = p.format
	rec.Attributes = offer.CredentialPreview.Attributes

	if p.document != nil {
		if rec.Credential, err = json.Marshal(p.document); err != nil {
			return fmt.Errorf("marshal JSON-LD credential: %w", err)
		}
	}

	return h.moveTo(ctx, rec, HolderOfferReceived, msg)
}

// Request answers a received offer.
func (h *Holder) Request(ctx context.Context, thID string) error {
	rec, release, err := h.lock(thID)
	if err != nil {
		return err
	}

	if HolderState(rec.State) != HolderOfferReceived {
		release()

		return fmt.Errorf("%w: request in state %s", ErrProtocolViolation, rec.State)
	}

	cd, _, err := h.credentialDefinition(ctx, rec.CredentialDefinitionID)
	if err != nil {
		release()

		return err
	}

	if rec.SchemaID != "" && cd.SchemaID != rec.SchemaID {
		release()

		return fmt.Errorf("%w: offered schema %s does not match credential definition schema %s",
			ErrProtocolViolation, rec.SchemaID, cd.SchemaID)
	}

	rec.SchemaID = cd.SchemaID

	rec.Revocable = cd.Revocable
	rec.AttributesLocked = true

	err = h.moveTo(ctx, rec, HolderRequestSent, nil)

	release()

	if err != nil {
		return err
	}

	return h.sendRequest(ctx, rec, nil, "")
}

// RequestStandalone requests a credential without a prior offer. It returns the thread id.
// Transport in-process is synchronous: when the issuer cannot resolve the request,
// its problem report has arrived once the request is sent and ErrUnresolvedRequest is returned.
func (h *Holder) RequestStandalone(ctx context.Context, params *RequestParams) (string, error) {
	rec, err := h.prepareRequest(ctx, params, true)
	if err != nil {
		return "", err
	}

	if err := h.create(ctx, rec, HolderRequestSent); err != nil {
		return "", err
	}

	preview := &PreviewCredential{Type: CredentialPreviewMsgTypeV2, Attributes: rec.Attributes}

	return rec.ThreadID, h.sendRequest(ctx, rec, preview, params.Comment)
}

func (h *Holder) sendRequest(ctx context.Context, rec *exchange.Record, preview *PreviewCredential,
	comment string) error {
	content, err := requestContent(rec)
	if err != nil {
		return err
	}

	formats, attachments := newAttachment(rec.Format, kindRequest, content)

	err = h.send(ctx, &RequestCredential{
		Type:              RequestCredentialMsgTypeV2,
		ID:                uuid.New().String(),
		Thread:            &decorator.Thread{ID: rec.ThreadID},
		Comment:           comment,
		CredentialPreview: preview,
		Formats:           formats,
		RequestsAttach:    attachments,
	}, rec.MyDID, rec.TheirDID)
	if err != nil {
		h.abandonAfterSend(ctx, rec.ThreadID, err)

		return err
	}

	return h.outcome(rec.ThreadID)
}

// outcome reports an exchange the issuer already turned down.
func (h *Holder) outcome(thID string) error {
	rec, err := h.store.Get(thID)
	if err != nil {
		return err
	}

	if HolderState(rec.State) == HolderAbandoned {
		return errorFromReason(rec.ErrorReason)
	}

	return nil
}

func (h *Holder) abandonAfterSend(ctx context.Context, thID string, sendErr error) {
	rec, release, err := h.lock(thID)
	if err != nil {
		logger.Errorf("agent=%s thid=%s: %s", h.agent, thID, err)

		return
	}

	defer release()

	h.abandon(ctx, rec, reason(codeTransportFailure, sendErr.Error()))
}

// ReceiveCredential validates the issued credential against the request, stores it and acks.
func (h *Holder) ReceiveCredential(ctx context.Context, msg service.DIDCommMsgMap, _, _ string) error {
	issued := &IssueCredential{}
	if err := msg.Decode(issued); err != nil {
		return fmt.Errorf("%w: decode credential: %s", ErrProtocolViolation, err)
	}

	thID, err := threadID(issued.Thread)
	if err != nil {
		return err
	}

	rec, release, err := h.lock(thID)
	if err != nil {
		return err
	}

	if HolderState(rec.State) != HolderRequestSent {
		release()

		return fmt.Errorf("%w: credential received in state %s", ErrProtocolViolation, rec.State)
	}

	p, err := parsePayload(issued.Formats, issued.CredentialsAttach, kindIssue)
	if err == nil {
		err = h.matchesRequest(rec, p)
	}

	if err != nil {
		err = fmt.Errorf("%w: %s", ErrCredentialMismatch, err)
		h.abandon(ctx, rec, reason(codeCredentialMismatch, err.Error()))
		release()

		h.sendProblemReport(ctx, thID, codeCredentialMismatch, err.Error(), rec.MyDID, rec.TheirDID)

		return err
	}

	if err = h.keepCredential(ctx, rec, p, msg); err != nil {
		release()

		return err
	}

	release()

	return h.send(ctx, &Ack{
		Type:   AckMsgTypeV2,
		ID:     uuid.New().String(),
		Thread: &decorator.Thread{ID: thID},
		Status: "OK",
	}, rec.MyDID, rec.TheirDID)
}

// keepCredential stores the credential: credential-received, then done.
func (h *Holder) keepCredential(ctx context.Context, rec *exchange.Record, p *payload, msg service.DIDCommMsgMap) error {
	var err error

	if p.credential != nil {
		rec.Credential, err = json.Marshal(p.credential)
	} else {
		rec.Credential, err = json.Marshal(p.document)
	}

	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	rec.RevocationRegistryID, rec.RevocationIndex = p.revocationOf()

	if err := h.moveTo(ctx, rec, HolderCredentialReceived, msg); err != nil {
		return err
	}

	return h.moveTo(ctx, rec, HolderDone, nil)
}

// matchesRequest checks definition, format, attributes and revocation metadata.
func (h *Holder) matchesRequest(rec *exchange.Record, p *payload) error {
	if p.format != rec.Format {
		return fmt.Errorf("received format %s, requested %s", p.format, rec.Format)
	}

	if p.format == exchange.FormatIndy {
		if p.filter.CredDefID != rec.CredentialDefinitionID {
			return fmt.Errorf("received credential definition %s, requested %s",
				p.filter.CredDefID, rec.CredentialDefinitionID)
		}

		if p.filter.SchemaID != rec.SchemaID {
			return fmt.Errorf("received schema %s, requested %s", p.filter.SchemaID, rec.SchemaID)
		}
	} else {
		doc := withoutKeys(p.document, proofKey, credentialStatusKey)
		if err := validateJSONLD(doc, h.loader); err != nil {
			return err
		}
	}

	attrs, err := p.attributes()
	if err != nil {
		return err
	}

	if !sameAttributes(attrs, rec.Attributes) {
		return errors.New("received attributes differ from the requested ones")
	}

	if regID, idx := p.revocationOf(); rec.Revocable && (regID == "" || idx == "") {
		return errors.New("revocable credential without revocation metadata")
	}

	return nil
}

// HandleProblemReport abandons a non-terminal exchange.
func (h *Holder) HandleProblemReport(ctx context.Context, msg service.DIDCommMsgMap, _, _ string) error {
	report := &ProblemReport{}
	if err := msg.Decode(report); err != nil {
		return fmt.Errorf("%w: decode problem report: %s", ErrProtocolViolation, err)
	}

	thID, err := threadID(report.Thread)
	if err != nil {
		return err
	}

	rec, release, err := h.lock(thID)
	if err != nil {
		return err
	}

	defer release()

	if HolderState(rec.State).Terminal() {
		logger.Infof("agent=%s thid=%s: problem report %s ignored in state %s",
			h.agent, thID, report.Description.Code, rec.State)

		return nil
	}

	rec.ErrorReason = reason(report.Description.Code, report.Description.En)

	return h.moveTo(ctx, rec, HolderAbandoned, msg)
}

// HandleRevocationNotification records that the issuer announced a revocation.
// The credential stays as it is until CheckRevocation is called.
func (h *Holder) HandleRevocationNotification(ctx context.Context, msg service.DIDCommMsgMap, _, _ string) error {
	n := &RevocationNotification{}
	if err := msg.Decode(n); err != nil {
		return fmt.Errorf("%w: decode revocation notification: %s", ErrProtocolViolation, err)
	}

	rec, release, err := h.lock(n.ThreadID)
	if err != nil {
		return err
	}

	defer release()

	logger.Infof("agent=%s thid=%s: revocation announced: %s", h.agent, n.ThreadID, n.Comment)

	rec.RevocationNotified = true

	return h.update(ctx, rec, map[string]interface{}{notifiedPropKey: true})
}

// ObserveDeletionOrSilence waits until the issuer answers the exchange. Polling backs off
// exponentially. When the silence timeout elapses first the record is abandoned with reason timeout.
// Without a silence timeout it waits for a problem report until ctx is done.
func (h *Holder) ObserveDeletionOrSilence(ctx context.Context, thID string) (HolderState, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.pollInterval
	b.MaxInterval = maxPollInterval
	b.MaxElapsedTime = h.silenceTimeout

	var state HolderState

	err := backoff.Retry(func() error {
		rec, err := h.store.Get(thID)
		if err != nil {
			return backoff.Permanent(err)
		}

		if rec.Role != exchange.RoleHolder {
			return backoff.Permanent(fmt.Errorf("%w: thread %s belongs to the %s",
				ErrProtocolViolation, thID, rec.Role))
		}

		state = HolderState(rec.State)
		if state.waiting() {
			return errStillWaiting
		}

		return nil
	}, backoff.WithContext(b, ctx))

	if !errors.Is(err, errStillWaiting) {
		return state, err
	}

	rec, release, err := h.lock(thID)
	if err != nil {
		return state, err
	}

	defer release()

	if !HolderState(rec.State).waiting() {
		return HolderState(rec.State), nil
	}

	h.abandon(ctx, rec, reason(codeTimeout, fmt.Sprintf("no answer from the issuer within %s", h.silenceTimeout)))

	return HolderState(rec.State), nil
}

// CheckRevocation asks the registry whether the stored credential was revoked.
// The state does not change; revoked_at is recorded on the holder copy.
func (h *Holder) CheckRevocation(ctx context.Context, thID string) (*registry.RevocationStatus, error) {
	rec, release, err := h.lock(thID)
	if err != nil {
		return nil, err
	}

	defer release()

	if HolderState(rec.State) != HolderDone {
		return nil, fmt.Errorf("%w: revocation check in state %s", ErrProtocolViolation, rec.State)
	}

	if rec.RevocationRegistryID == "" || rec.RevocationIndex == "" {
		return nil, fmt.Errorf("%w: credential on thread %s is not revocable", ErrProtocolViolation, thID)
	}

	status, err := h.revReg.Status(ctx, rec.RevocationRegistryID, rec.RevocationIndex)
	if err != nil {
		return nil, fmt.Errorf("revocation status: %w", err)
	}

	if status.Revoked && !rec.Revoked() {
		rec.RevokedAt = status.RevokedAt
		if rec.RevokedAt == nil {
			now := time.Now().UTC()
			rec.RevokedAt = &now
		}

		if err := h.update(ctx, rec, nil); err != nil {
			return nil, err
		}
	}

	return status, nil
}
