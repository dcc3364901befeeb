/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package aries drives the Aries issue credential exchange between an issuer and a holder agent.
//
// Packages for end developer usage
//
// pkg/framework/agent: Agents hosting the issuer and holder state machines, and Tenants hosting many
// agents on one storage provider.
//
// pkg/didcomm/protocol/issuecredential: The issuer and holder state machines and the revocation coordinator.
//
// pkg/store/exchange: Persistent exchange records with per-thread leases.
//
// pkg/controller: Controller command and REST handlers, webhook and websocket notifications.
//
// cmd/aries-issuecredential-agent: The agent binary.
package aries
