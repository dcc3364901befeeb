/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"fmt"

	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-issuecredential-go/pkg/store/exchange"
)

const (
	// Name defines the protocol name.
	Name = "issue-credential"
	// SpecV2 defines the protocol spec V2.
	SpecV2 = "https://didcomm.org/issue-credential/2.0/"
	// ProposeCredentialMsgTypeV2 defines the protocol propose-credential message type.
	ProposeCredentialMsgTypeV2 = SpecV2 + "propose-credential"
	// OfferCredentialMsgTypeV2 defines the protocol offer-credential message type.
	OfferCredentialMsgTypeV2 = SpecV2 + "offer-credential"
	// RequestCredentialMsgTypeV2 defines the protocol request-credential message type.
	RequestCredentialMsgTypeV2 = SpecV2 + "request-credential"
	// IssueCredentialMsgTypeV2 defines the protocol issue-credential message type.
	IssueCredentialMsgTypeV2 = SpecV2 + "issue-credential"
	// AckMsgTypeV2 defines the protocol ack message type.
	AckMsgTypeV2 = SpecV2 + "ack"
	// ProblemReportMsgTypeV2 defines the protocol problem-report message type.
	ProblemReportMsgTypeV2 = SpecV2 + "problem-report"
	// CredentialPreviewMsgTypeV2 defines the protocol credential-preview inner object type.
	CredentialPreviewMsgTypeV2 = SpecV2 + "credential-preview"

	// RevocationNotificationMsgType defines the revocation notification message type.
	RevocationNotificationMsgType = "https://didcomm.org/revocation_notification/1.0/revoke"
)

// Attribute is a credential attribute in a preview or an exchange record.
type Attribute = exchange.Attribute

// Format names the attachment format of a message.
type Format struct {
	AttachID string `json:"attach_id"`
	Format   string `json:"format"`
}

// PreviewCredential is the human readable list of credential attributes.
type PreviewCredential struct {
	Type       string      `json:"@type,omitempty"`
	Attributes []Attribute `json:"attributes"`
}

// ProposeCredential is sent by the holder to initiate the protocol with a proposal.
type ProposeCredential struct {
	Type              string                 `json:"@type,omitempty"`
	ID                string                 `json:"@id,omitempty"`
	Thread            *decorator.Thread      `json:"~thread,omitempty"`
	Comment           string                 `json:"comment,omitempty"`
	CredentialPreview *PreviewCredential     `json:"credential_preview,omitempty"`
	Formats           []Format               `json:"formats,omitempty"`
	FiltersAttach     []decorator.Attachment `json:"filters~attach,omitempty"`
}

// OfferCredential is sent by the issuer to offer a credential.
type OfferCredential struct {
	Type              string                 `json:"@type,omitempty"`
	ID                string                 `json:"@id,omitempty"`
	Thread            *decorator.Thread      `json:"~thread,omitempty"`
	Comment           string                 `json:"comment,omitempty"`
	CredentialPreview PreviewCredential      `json:"credential_preview"`
	Formats           []Format               `json:"formats,omitempty"`
	OffersAttach      []decorator.Attachment `json:"offers~attach,omitempty"`
}

// RequestCredential is sent by the holder to request a credential.
// CredentialPreview is set only when the request does not answer an offer.
type RequestCredential struct {
	Type              string                 `json:"@type,omitempty"`
	ID                string                 `json:"@id,omitempty"`
	Thread            *decorator.Thread      `json:"~thread,omitempty"`
	Comment           string                 `json:"comment,omitempty"`
	CredentialPreview *PreviewCredential     `json:"credential_preview,omitempty"`
	Formats           []Format               `json:"formats,omitempty"`
	RequestsAttach    []decorator.Attachment `json:"requests~attach,omitempty"`
}

// IssueCredential carries the issued credential.
type IssueCredential struct {
	Type              string                 `json:"@type,omitempty"`
	ID                string                 `json:"@id,omitempty"`
	Thread            *decorator.Thread      `json:"~thread,omitempty"`
	Comment           string                 `json:"comment,omitempty"`
	Formats           []Format               `json:"formats,omitempty"`
	CredentialsAttach []decorator.Attachment `json:"credentials~attach,omitempty"`
}

// Ack acknowledges the issued credential.
type Ack struct {
	Type   string            `json:"@type,omitempty"`
	ID     string            `json:"@id,omitempty"`
	Thread *decorator.Thread `json:"~thread,omitempty"`
	Status string            `json:"status,omitempty"`
}

// Description of a problem report.
type Description struct {
	Code string `json:"code"`
	En   string `json:"en,omitempty"`
}

// ProblemReport tells the other party the exchange cannot continue.
type ProblemReport struct {
	Type        string            `json:"@type,omitempty"`
	ID          string            `json:"@id,omitempty"`
	Thread      *decorator.Thread `json:"~thread,omitempty"`
	Description Description       `json:"description"`
}

// RevocationNotification tells the holder that a credential was revoked.
type RevocationNotification struct {
	Type     string `json:"@type,omitempty"`
	ID       string `json:"@id,omitempty"`
	ThreadID string `json:"thread_id"`
	Comment  string `json:"comment,omitempty"`
}

// ParseMessage decodes a message of this protocol into its typed structure.
func ParseMessage(msg service.DIDCommMsgMap) (interface{}, error) {
	var v interface{}

	switch msg.Type() {
	case ProposeCredentialMsgTypeV2:
		v = &ProposeCredential{}
	case OfferCredentialMsgTypeV2:
		v = &OfferCredential{}
	case RequestCredentialMsgTypeV2:
		v = &RequestCredential{}
	case IssueCredentialMsgTypeV2:
		v = &IssueCredential{}
	case AckMsgTypeV2:
		v = &Ack{}
	case ProblemReportMsgTypeV2:
		v = &ProblemReport{}
	case RevocationNotificationMsgType:
		v = &RevocationNotification{}
	default:
		return nil, fmt.Errorf("%q: %w", msg.Type(), ErrUnknownMessageType)
	}

	if err := msg.Decode(v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", msg.Type(), err)
	}

	return v, nil
}

// threadID returns the thread of a reply-type message.
func threadID(thread *decorator.Thread) (string, error) {
	if thread == nil || thread.ID == "" {
		return "", service.ErrThreadIDNotFound
	}

	return thread.ID, nil
}
