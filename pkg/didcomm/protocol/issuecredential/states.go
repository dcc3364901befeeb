/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import "golang.org/x/exp/slices"

const stateNameStart = "start"

// IssuerState is the state of an issuer-role exchange record.
type IssuerState string

// states for Issuer
const (
	IssuerStart            IssuerState = stateNameStart
	IssuerProposalReceived IssuerState = "proposal-received"
	IssuerOfferSent        IssuerState = "offer-sent"
	IssuerRequestReceived  IssuerState = "request-received"
	IssuerCredentialIssued IssuerState = "credential-issued"
	IssuerAbandoned        IssuerState = "abandoned"
	IssuerDeleted          IssuerState = "deleted"
)

var issuerTransitions = map[IssuerState][]IssuerState{
	IssuerStart:            {IssuerProposalReceived, IssuerOfferSent, IssuerRequestReceived},
	IssuerProposalReceived: {IssuerOfferSent, IssuerAbandoned},
	IssuerOfferSent:        {IssuerRequestReceived, IssuerDeleted, IssuerAbandoned},
	IssuerRequestReceived:  {IssuerCredentialIssued, IssuerAbandoned},
}

// Name of this state.
func (s IssuerState) Name() string {
	return string(s)
}

// CanTransitionTo reports whether next can follow this state.
func (s IssuerState) CanTransitionTo(next IssuerState) bool {
	return slices.Contains(issuerTransitions[s], next)
}

// Terminal reports whether the state is final.
func (s IssuerState) Terminal() bool {
	return s == IssuerCredentialIssued || s == IssuerAbandoned || s == IssuerDeleted
}

// HolderState is the state of a holder-role exchange record.
type HolderState string

// states for Holder
const (
	HolderStart              HolderState = stateNameStart
	HolderProposalSent       HolderState = "proposal-sent"
	HolderOfferReceived      HolderState = "offer-received"
	HolderRequestSent        HolderState = "request-sent"
	HolderCredentialReceived HolderState = "credential-received"
	HolderDone               HolderState = "done"
	HolderAbandoned          HolderState = "abandoned"
)

var holderTransitions = map[HolderState][]HolderState{
	HolderStart:              {HolderProposalSent, HolderOfferReceived, HolderRequestSent},
	HolderProposalSent:       {HolderOfferReceived, HolderAbandoned},
	HolderOfferReceived:      {HolderRequestSent, HolderAbandoned},
	HolderRequestSent:        {HolderCredentialReceived, HolderAbandoned},
	HolderCredentialReceived: {HolderDone, HolderAbandoned},
}

// Name of this state.
func (s HolderState) Name() string {
	return string(s)
}

// CanTransitionTo reports whether next can follow this state.
func (s HolderState) CanTransitionTo(next HolderState) bool {
	return slices.Contains(holderTransitions[s], next)
}

// Terminal reports whether the state is final.
func (s HolderState) Terminal() bool {
	return s == HolderDone || s == HolderAbandoned
}

// waiting reports whether the holder waits for the issuer to answer.
func (s HolderState) waiting() bool {
	return s == HolderProposalSent || s == HolderOfferReceived || s == HolderRequestSent
}
