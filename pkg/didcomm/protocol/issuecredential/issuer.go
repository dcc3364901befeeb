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

	"github.com/google/uuid"

	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-issuecredential-go/pkg/registry"
	"github.com/hyperledger/aries-issuecredential-go/pkg/store/exchange"
)

// OfferParams holds the parameters of a credential offer.
type OfferParams struct {
	// ThreadID is optional, a new thread is started when empty.
	ThreadID               string
	MyDID                  string
	TheirDID               string
	CredentialDefinitionID string
	// Format defaults to AnonCreds.
	Format exchange.Format
	// Attributes of an AnonCreds credential.
	Attributes []Attribute
	// Credential is the JSON-LD credential document.
	Credential map[string]interface{}
	Comment    string
}

// Issuer drives the issuer side of the exchange.
type Issuer struct {
	*machine
	revocation     *Revocation
	autoIssue      bool
	notifyOnDelete bool
}

// NewIssuer returns the issuer state machine of the agent.
func NewIssuer(p Provider, opts ...Opt) *Issuer {
	o := newOptions(opts)
	m := newMachine(p, exchange.RoleIssuer, o.middleware)

	return &Issuer{
		machine:        m,
		revocation:     newRevocation(m, o.revocationNotification),
		autoIssue:      o.autoIssue,
		notifyOnDelete: o.notifyOnDelete,
	}
}

// Revocation returns the revocation coordinator of the issuer.
func (i *Issuer) Revocation() *Revocation {
	return i.revocation
}

func (i *Issuer) moveTo(ctx context.Context, rec *exchange.Record, next IssuerState, msg service.DIDCommMsgMap) error {
	current := IssuerState(rec.State)
	if rec.State == "" {
		current = IssuerStart
	}

	if !current.CanTransitionTo(next) {
		return fmt.Errorf("%w: invalid state transition: %s -> %s", ErrProtocolViolation, current, next)
	}

	return i.transition(ctx, rec, string(next), next.Terminal(), msg)
}

// abandon moves a non-terminal record to abandoned, keeping the first error reason.
func (i *Issuer) abandon(ctx context.Context, rec *exchange.Record, why string) {
	if IssuerState(rec.State).Terminal() {
		return
	}

	rec.ErrorReason = why

	if err := i.moveTo(ctx, rec, IssuerAbandoned, nil); err != nil {
		logger.Errorf("agent=%s thid=%s: abandon: %s", i.agent, rec.ThreadID, err)
	}
}

// Offer starts an exchange by offering a credential. It returns the thread id.
func (i *Issuer) Offer(ctx context.Context, params *OfferParams) (string, error) {
	rec, err := i.prepareOffer(ctx, &exchange.Record{}, params)
	if err != nil {
		return "", err
	}

	if rec.ThreadID == "" {
		rec.ThreadID = uuid.New().String()
	}

	release, err := i.store.Acquire(rec.ThreadID)
	if err != nil {
		return "", err
	}

	err = i.moveTo(ctx, rec, IssuerOfferSent, nil)

	release()

	if err != nil {
		return "", err
	}

	return rec.ThreadID, i.sendOffer(ctx, rec, params.Comment)
}

// OfferFromProposal answers a received proposal with an offer.
func (i *Issuer) OfferFromProposal(ctx context.Context, thID string, params *OfferParams) error {
	rec, release, err := i.lock(thID)
	if err != nil {
		return err
	}

	if IssuerState(rec.State) != IssuerProposalReceived {
		release()

		return fmt.Errorf("%w: offer from proposal in state %s", ErrProtocolViolation, rec.State)
	}

	p := *params
	p.MyDID, p.TheirDID = rec.MyDID, rec.TheirDID

	if p.CredentialDefinitionID == "" {
		p.CredentialDefinitionID = rec.CredentialDefinitionID
	}

	if p.Format == "" {
		p.Format = rec.Format
	}

	if len(p.Attributes) == 0 {
		p.Attributes = rec.Attributes
	}

	if p.Credential == nil && len(rec.Credential) > 0 {
		if p.Credential, err = documentOf(rec); err != nil {
			release()

			return err
		}
	}

	if _, err = i.prepareOffer(ctx, rec, &p); err != nil {
		release()

		return err
	}

	err = i.moveTo(ctx, rec, IssuerOfferSent, nil)

	release()

	if err != nil {
		return err
	}

	return i.sendOffer(ctx, rec, params.Comment)
}

// prepareOffer validates the offer parameters and fills rec.
func (i *Issuer) prepareOffer(ctx context.Context, rec *exchange.Record, params *OfferParams) (*exchange.Record, error) {
	if params.MyDID == "" || params.TheirDID == "" {
		return nil, fmt.Errorf("%w: no active connection", ErrProtocolViolation)
	}

	format := params.Format
	if format == "" {
		format = exchange.FormatIndy
	}

	if !validFormat(format) {
		return nil, fmt.Errorf("%w: unsupported credential format %q", ErrProtocolViolation, format)
	}

	cd, schema, err := i.credentialDefinition(ctx, params.CredentialDefinitionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProtocolViolation, err)
	}

	attrs := params.Attributes

	if format == exchange.FormatJSONLD {
		if err := validateJSONLD(params.Credential, i.loader); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrProtocolViolation, err)
		}

		if attrs, err = subjectAttributes(params.Credential); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrProtocolViolation, err)
		}

		if rec.Credential, err = json.Marshal(params.Credential); err != nil {
			return nil, fmt.Errorf("marshal JSON-LD credential: %w", err)
		}
	}

	if err := validateAttributes(schema, attrs); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProtocolViolation, err)
	}

	if rec.ThreadID == "" {
		rec.ThreadID = params.ThreadID
	}

	rec.Role = exchange.RoleIssuer
	rec.MyDID = params.MyDID
	rec.TheirDID = params.TheirDID
	rec.CredentialDefinitionID = cd.ID
	rec.SchemaID = cd.SchemaID
	rec.Format = format
	rec.Attributes = attrs
	rec.AttributesLocked = true
	rec.Revocable = cd.Revocable
	rec.RevocationRegistryID = cd.RevocationRegistryID

	return rec, nil
}

func (i *Issuer) sendOffer(ctx context.Context, rec *exchange.Record, comment string) error {
	content, err := requestContent(rec)
	if err != nil {
		return err
	}

	formats, attachments := newAttachment(rec.Format, kindOffer, content)

	err = i.send(ctx, &OfferCredential{
		Type:    OfferCredentialMsgTypeV2,
		ID:      uuid.New().String(),
		Thread:  &decorator.Thread{ID: rec.ThreadID},
		Comment: comment,
		CredentialPreview: PreviewCredential{
			Type:       CredentialPreviewMsgTypeV2,
			Attributes: rec.Attributes,
		},
		Formats:      formats,
		OffersAttach: attachments,
	}, rec.MyDID, rec.TheirDID)
	if err != nil {
		i.abandonAfterSend(ctx, rec.ThreadID, err)
	}

	return err
}

// abandonAfterSend abandons the exchange when its outbound message could not be delivered.
func (i *Issuer) abandonAfterSend(ctx context.Context, thID string, sendErr error) {
	rec, release, err := i.lock(thID)
	if err != nil {
		logger.Errorf("agent=%s thid=%s: %s", i.agent, thID, err)

		return
	}

	defer release()

	i.abandon(ctx, rec, reason(codeTransportFailure, sendErr.Error()))
}

// DeleteOffer withdraws an offer the holder has not answered yet.
// The holder is told with a problem report unless disabled; delivery is not awaited.
func (i *Issuer) DeleteOffer(ctx context.Context, thID string) error {
	rec, release, err := i.lock(thID)
	if err != nil {
		return err
	}

	if IssuerState(rec.State) != IssuerOfferSent {
		release()

		return fmt.Errorf("%w: delete offer in state %s", ErrProtocolViolation, rec.State)
	}

	err = i.moveTo(ctx, rec, IssuerDeleted, nil)

	release()

	if err != nil {
		return err
	}

	if i.notifyOnDelete {
		i.sendProblemReport(ctx, thID, codeOfferDeleted, "the offer was deleted by the issuer", rec.MyDID, rec.TheirDID)
	}

	return nil
}

// HandleProposal handles an inbound credential proposal.
func (i *Issuer) HandleProposal(ctx context.Context, msg service.DIDCommMsgMap, myDID, theirDID string) error {
	proposal := &ProposeCredential{}
	if err := msg.Decode(proposal); err != nil {
		return fmt.Errorf("%w: decode proposal: %s", ErrProtocolViolation, err)
	}

	thID, err := threadID(proposal.Thread)
	if err != nil {
		return err
	}

	p, err := parsePayload(proposal.Formats, proposal.FiltersAttach, kindPropose)
	if err != nil {
		i.sendProblemReport(ctx, thID, codeRejectedError, err.Error(), myDID, theirDID)

		return err
	}

	rec := &exchange.Record{
		ThreadID:               thID,
		Role:                   exchange.RoleIssuer,
		MyDID:                  myDID,
		TheirDID:               theirDID,
		CredentialDefinitionID: p.filter.CredDefID,
		SchemaID:               p.filter.SchemaID,
		Format:                 p.format,
	}

	if proposal.CredentialPreview != nil {
		rec.Attributes = proposal.CredentialPreview.Attributes
	}

	if p.document != nil {
		if rec.Credential, err = json.Marshal(p.document); err != nil {
			return fmt.Errorf("marshal JSON-LD credential: %w", err)
		}
	}

	release, err := i.store.Acquire(thID)
	if err != nil {
		return err
	}

	defer release()

	return i.moveTo(ctx, rec, IssuerProposalReceived, msg)
}

// HandleRequest handles an inbound credential request. A request answers an offer on the
// same thread or, when no record exists, starts the exchange.
func (i *Issuer) HandleRequest(ctx context.Context, msg service.DIDCommMsgMap, myDID, theirDID string) error {
	req := &RequestCredential{}
	if err := msg.Decode(req); err != nil {
		return fmt.Errorf("%w: decode request: %s", ErrProtocolViolation, err)
	}

	thID, err := threadID(req.Thread)
	if err != nil {
		return err
	}

	p, err := parsePayload(req.Formats, req.RequestsAttach, kindRequest)
	if err != nil {
		i.sendProblemReport(ctx, thID, codeRejectedError, err.Error(), myDID, theirDID)

		return err
	}

	release, err := i.store.Acquire(thID)
	if err != nil {
		return err
	}

	rec, err := i.store.Get(thID)

	switch {
	case errors.Is(err, exchange.ErrRecordNotFound):
		err = i.handleStandaloneRequest(ctx, req, p, thID, myDID, theirDID, msg)
	case err != nil:
	case rec.Role != exchange.RoleIssuer:
		err = fmt.Errorf("%w: thread %s belongs to the %s", ErrProtocolViolation, thID, rec.Role)
	default:
		err = i.handleOfferedRequest(ctx, rec, p, msg)
	}

	release()

	if err != nil {
		i.sendProblemReport(ctx, thID, codeOf(err), err.Error(), myDID, theirDID)

		return err
	}

	if !i.autoIssue {
		return nil
	}

	if err := i.AcceptRequest(ctx, thID); err != nil {
		// the issue message itself could not be sent; the record is already abandoned
		if !errors.Is(err, ErrTransportFailure) {
			i.abandonAutoIssue(ctx, thID, err)
		}

		return err
	}

	return nil
}

// abandonAutoIssue ends an exchange the issuer failed to answer on its own and tells the holder.
func (i *Issuer) abandonAutoIssue(ctx context.Context, thID string, issueErr error) {
	rec, release, err := i.lock(thID)
	if err != nil {
		logger.Errorf("agent=%s thid=%s: %s", i.agent, thID, err)

		return
	}

	if IssuerState(rec.State) != IssuerRequestReceived {
		release()

		return
	}

	code := codeOf(issueErr)

	i.abandon(ctx, rec, reason(code, issueErr.Error()))

	release()

	i.sendProblemReport(ctx, thID, code, issueErr.Error(), rec.MyDID, rec.TheirDID)
}

func (i *Issuer) handleStandaloneRequest(ctx context.Context, req *RequestCredential, p *payload,
	thID, myDID, theirDID string, msg service.DIDCommMsgMap) error {
	cd, schema, err := i.credentialDefinition(ctx, p.filter.CredDefID)
	if err != nil {
		return err
	}

	if p.filter.SchemaID != "" && p.filter.SchemaID != cd.SchemaID {
		return fmt.Errorf("%w: schema %s does not match credential definition %s",
			ErrUnresolvedRequest, p.filter.SchemaID, cd.ID)
	}

	rec := &exchange.Record{
		ThreadID:               thID,
		Role:                   exchange.RoleIssuer,
		MyDID:                  myDID,
		TheirDID:               theirDID,
		CredentialDefinitionID: cd.ID,
		SchemaID:               cd.SchemaID,
		Format:                 p.format,
		AttributesLocked:       true,
		Revocable:              cd.Revocable,
		RevocationRegistryID:   cd.RevocationRegistryID,
	}

	if err := i.requestedAttributes(rec, req, p, schema); err != nil {
		return err
	}

	return i.moveTo(ctx, rec, IssuerRequestReceived, msg)
}

func (i *Issuer) requestedAttributes(rec *exchange.Record, req *RequestCredential, p *payload,
	schema *registry.Schema) error {
	if p.document != nil {
		if err := validateJSONLD(p.document, i.loader); err != nil {
			return fmt.Errorf("%w: %s", ErrProtocolViolation, err)
		}

		attrs, err := subjectAttributes(p.document)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrProtocolViolation, err)
		}

		if rec.Credential, err = json.Marshal(p.document); err != nil {
			return fmt.Errorf("marshal JSON-LD credential: %w", err)
		}

		rec.Attributes = attrs
	} else {
		if req.CredentialPreview == nil {
			return fmt.Errorf("%w: request without offer carries no attributes", ErrProtocolViolation)
		}

		rec.Attributes = req.CredentialPreview.Attributes
	}

	if err := validateAttributes(schema, rec.Attributes); err != nil {
		return fmt.Errorf("%w: %s", ErrProtocolViolation, err)
	}

	return nil
}

func (i *Issuer) handleOfferedRequest(ctx context.Context, rec *exchange.Record, p *payload,
	msg service.DIDCommMsgMap) error {
	state := IssuerState(rec.State)

	if state == IssuerDeleted {
		return problem(codeOfferDeleted, fmt.Errorf("%w: offer on thread %s was deleted", ErrUnresolvedRequest, rec.ThreadID))
	}

	if state != IssuerOfferSent {
		err := fmt.Errorf("%w: request in state %s", ErrProtocolViolation, state)
		i.abandon(ctx, rec, reason(codeRejectedError, err.Error()))

		return err
	}

	if err := offeredMatches(rec, p); err != nil {
		err = fmt.Errorf("%w: %s", ErrProtocolViolation, err)
		i.abandon(ctx, rec, reason(codeRejectedError, err.Error()))

		return err
	}

	return i.moveTo(ctx, rec, IssuerRequestReceived, msg)
}

// offeredMatches checks that a request asks for what was offered.
func offeredMatches(rec *exchange.Record, p *payload) error {
	if p.format != rec.Format {
		return fmt.Errorf("requested format %s, offered %s", p.format, rec.Format)
	}

	if p.filter.CredDefID != rec.CredentialDefinitionID {
		return fmt.Errorf("requested credential definition %s, offered %s",
			p.filter.CredDefID, rec.CredentialDefinitionID)
	}

	if p.format == exchange.FormatIndy {
		return nil
	}

	attrs, err := subjectAttributes(p.document)
	if err != nil {
		return err
	}

	if !sameAttributes(attrs, rec.Attributes) {
		return errors.New("requested credential differs from the offered one")
	}

	return nil
}

// AcceptRequest issues the credential for a received request.
func (i *Issuer) AcceptRequest(ctx context.Context, thID string) error {
	rec, release, err := i.lock(thID)
	if err != nil {
		return err
	}

	if IssuerState(rec.State) != IssuerRequestReceived {
		release()

		return fmt.Errorf("%w: accept request in state %s", ErrProtocolViolation, rec.State)
	}

	if rec.Revocable {
		idx, err := i.revReg.Allocate(ctx, rec.RevocationRegistryID)
		if err != nil {
			release()

			return fmt.Errorf("allocate revocation index: %w", err)
		}

		rec.RevocationIndex = idx
	}

	content, err := issueContent(rec)
	if err != nil {
		release()

		return err
	}

	if rec.Credential, err = json.Marshal(content); err != nil {
		release()

		return fmt.Errorf("marshal credential: %w", err)
	}

	err = i.moveTo(ctx, rec, IssuerCredentialIssued, nil)

	release()

	if err != nil {
		return err
	}

	formats, attachments := newAttachment(rec.Format, kindIssue, content)

	return i.send(ctx, &IssueCredential{
		Type:              IssueCredentialMsgTypeV2,
		ID:                uuid.New().String(),
		Thread:            &decorator.Thread{ID: thID},
		Formats:           formats,
		CredentialsAttach: attachments,
	}, rec.MyDID, rec.TheirDID)
}

// Revoke revokes the credential issued on the thread.
func (i *Issuer) Revoke(ctx context.Context, thID string) error {
	return i.revocation.Revoke(ctx, thID)
}

// HandleAck records the holder's acknowledgement. The state does not change.
func (i *Issuer) HandleAck(ctx context.Context, msg service.DIDCommMsgMap, _, _ string) error {
	ack := &Ack{}
	if err := msg.Decode(ack); err != nil {
		return fmt.Errorf("%w: decode ack: %s", ErrProtocolViolation, err)
	}

	thID, err := threadID(ack.Thread)
	if err != nil {
		return err
	}

	rec, release, err := i.lock(thID)
	if err != nil {
		return err
	}

	defer release()

	if IssuerState(rec.State) != IssuerCredentialIssued {
		return fmt.Errorf("%w: ack in state %s", ErrProtocolViolation, rec.State)
	}

	if rec.Acked {
		return nil
	}

	rec.Acked = true

	return i.update(ctx, rec, map[string]interface{}{msgTypePropKey: AckMsgTypeV2})
}

// HandleProblemReport abandons a non-terminal exchange.
func (i *Issuer) HandleProblemReport(ctx context.Context, msg service.DIDCommMsgMap, _, _ string) error {
	report := &ProblemReport{}
	if err := msg.Decode(report); err != nil {
		return fmt.Errorf("%w: decode problem report: %s", ErrProtocolViolation, err)
	}

	thID, err := threadID(report.Thread)
	if err != nil {
		return err
	}

	rec, release, err := i.lock(thID)
	if err != nil {
		return err
	}

	defer release()

	if IssuerState(rec.State).Terminal() {
		logger.Infof("agent=%s thid=%s: problem report %s ignored in state %s",
			i.agent, thID, report.Description.Code, rec.State)

		return nil
	}

	rec.ErrorReason = reason(report.Description.Code, report.Description.En)

	return i.moveTo(ctx, rec, IssuerAbandoned, msg)
}
