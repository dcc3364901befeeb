/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storage/leveldb"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/protocol/issuecredential"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/transport"
	didcommhttp "github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/transport/http"
	"github.com/hyperledger/aries-issuecredential-go/pkg/registry"
	"github.com/hyperledger/aries-issuecredential-go/pkg/store/exchange"
)

const (
	faberDID = "did:example:faber"
	aliceDID = "did:example:alice"

	schemaDL       = "driverslicense:1.0"
	credDefDL      = "driverslicense:creddef:default"
	credDefPending = "driverslicense:creddef:pending"
	revRegDL       = "driverslicense:revreg:1"
)

func dlAttributeNames() []string {
	names := make([]string, 0, len(dataDLNormalizedValues()))
	for _, attr := range dataDLNormalizedValues() {
		names = append(names, attr.Name)
	}

	return names
}

// dataDLNormalizedValues is the normalized drivers license data of the holder.
func dataDLNormalizedValues() []issuecredential.Attribute {
	return []issuecredential.Attribute{
		{Name: "family_name", Value: "DOE"},
		{Name: "given_name", Value: "JANE"},
		{Name: "birth_date", Value: "19900115"},
		{Name: "issue_date", Value: "20200201"},
		{Name: "expiry_date", Value: "20300201"},
		{Name: "document_number", Value: "D1234567"},
		{Name: "driving_privileges", Value: "C"},
		{Name: "address", Value: "123 MAIN ST"},
		{Name: "postal_code", Value: "94105"},
		{Name: "height", Value: "170"},
		{Name: "sex", Value: "2"},
	}
}

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) listen(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
}

func (r *recorder) states(thID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []string

	for _, e := range r.events {
		if e.ThreadID == thID {
			res = append(res, e.NewState)
		}
	}

	return res
}

func newTenants(t *testing.T, ledger *registry.Memory, opts ...issuecredential.Opt) (*Tenants, *Agent, *Agent) {
	t.Helper()

	tenants := NewTenants(mem.NewProvider(), WithDefaultOptions(
		WithSchemaResolver(ledger),
		WithRevocationRegistry(ledger),
		WithProtocolOptions(opts...),
	))

	t.Cleanup(func() {
		require.NoError(t, tenants.Close())
	})

	faber, err := tenants.Add("faber", WithDIDs(faberDID))
	require.NoError(t, err)

	alice, err := tenants.Add("alice", WithDIDs(aliceDID))
	require.NoError(t, err)

	return tenants, faber, alice
}

func record(t *testing.T, a *Agent, thID string) *exchange.Record {
	t.Helper()

	rec, err := a.Store().Get(thID)
	require.NoError(t, err)

	return rec
}

func offerDL(t *testing.T, faber *Agent) string {
	t.Helper()

	thID, err := faber.Issuer().Offer(context.Background(), &issuecredential.OfferParams{
		MyDID:                  faberDID,
		TheirDID:               aliceDID,
		CredentialDefinitionID: credDefDL,
		Attributes:             dataDLNormalizedValues(),
	})
	require.NoError(t, err)

	return thID
}

func TestTenants_IssueDriversLicense(t *testing.T) {
	ctx := context.Background()
	_, faber, alice := newTenants(t, newLedger())

	faberEvents, aliceEvents := &recorder{}, &recorder{}
	faber.Dispatcher().RegisterListener(faberEvents.listen)
	alice.Dispatcher().RegisterListener(aliceEvents.listen)

	thID := offerDL(t, faber)
	require.NoError(t, alice.Holder().Request(ctx, thID))
	require.NoError(t, faber.Issuer().AcceptRequest(ctx, thID))

	issued := record(t, faber, thID)
	require.Equal(t, string(issuecredential.IssuerCredentialIssued), issued.State)
	require.True(t, issued.Acked)

	held := record(t, alice, thID)
	require.Equal(t, string(issuecredential.HolderDone), held.State)
	require.Equal(t, issued.AttributeMap(), held.AttributeMap())
	require.Equal(t, dataDLNormalizedValues(), held.Attributes)

	cred := &issuecredential.IndyCredential{}
	require.NoError(t, json.Unmarshal(held.Credential, cred))
	require.Equal(t, credDefDL, cred.CredDefID)
	require.Equal(t, "DOE", cred.Values["family_name"].Raw)

	require.Equal(t, []string{"offer-sent", "request-received", "credential-issued", "credential-issued"},
		faberEvents.states(thID))
	require.Equal(t, []string{"offer-received", "request-sent", "credential-received", "done"},
		aliceEvents.states(thID))
}

func TestTenants_DeleteOffer(t *testing.T) {
	ctx := context.Background()
	_, faber, alice := newTenants(t, newLedger())

	thID := offerDL(t, faber)
	require.NoError(t, faber.Issuer().DeleteOffer(ctx, thID))

	require.Equal(t, string(issuecredential.IssuerDeleted), record(t, faber, thID).State)
	require.Equal(t, string(issuecredential.HolderAbandoned), record(t, alice, thID).State)

	state, err := alice.Holder().ObserveDeletionOrSilence(ctx, thID)
	require.NoError(t, err)
	require.Equal(t, issuecredential.HolderAbandoned, state)

	err = alice.Holder().Request(ctx, thID)
	require.True(t, errors.Is(err, issuecredential.ErrProtocolViolation))
}

func TestTenants_SilentDelete(t *testing.T) {
	ctx := context.Background()
	_, faber, alice := newTenants(t, newLedger(),
		issuecredential.WithNotifyOnDelete(false),
		issuecredential.WithSilenceTimeout(50*time.Millisecond),
		issuecredential.WithPollInterval(5*time.Millisecond),
	)

	thID := offerDL(t, faber)
	require.NoError(t, faber.Issuer().DeleteOffer(ctx, thID))

	state, err := alice.Holder().ObserveDeletionOrSilence(ctx, thID)
	require.NoError(t, err)
	require.Equal(t, issuecredential.HolderAbandoned, state)
	require.Equal(t, string(issuecredential.IssuerDeleted), record(t, faber, thID).State)
}

func TestTenants_StandaloneRequest(t *testing.T) {
	ctx := context.Background()
	_, faber, alice := newTenants(t, newLedger())

	thID, err := alice.Holder().RequestStandalone(ctx, &issuecredential.RequestParams{
		MyDID:                  aliceDID,
		TheirDID:               faberDID,
		SchemaID:               schemaDL,
		CredentialDefinitionID: credDefPending,
		Attributes:             dataDLNormalizedValues(),
	})
	require.True(t, errors.Is(err, issuecredential.ErrUnresolvedRequest))
	require.Equal(t, string(issuecredential.HolderAbandoned), record(t, alice, thID).State)

	_, err = faber.Store().Get(thID)
	require.True(t, errors.Is(err, exchange.ErrRecordNotFound))

	issued, err := faber.Store().ListByState(string(issuecredential.IssuerCredentialIssued))
	require.NoError(t, err)
	require.Empty(t, issued)
}

func TestTenants_Revocation(t *testing.T) {
	ctx := context.Background()
	_, faber, alice := newTenants(t, newLedger(),
		issuecredential.WithAutoIssue(true),
		issuecredential.WithRevocationNotification(true),
	)

	thID := offerDL(t, faber)
	require.NoError(t, alice.Holder().Request(ctx, thID))
	require.NoError(t, faber.Issuer().Revoke(ctx, thID))

	issued := record(t, faber, thID)
	require.Equal(t, string(issuecredential.IssuerCredentialIssued), issued.State)
	require.NotNil(t, issued.RevokedAt)

	status, err := alice.Holder().CheckRevocation(ctx, thID)
	require.NoError(t, err)
	require.True(t, status.Revoked)

	held := record(t, alice, thID)
	require.Equal(t, string(issuecredential.HolderDone), held.State)
	require.NotNil(t, held.RevokedAt)
}

func TestTenants_JSONLD(t *testing.T) {
	ctx := context.Background()
	_, faber, alice := newTenants(t, newLedger(), issuecredential.WithAutoIssue(true))

	subject := map[string]interface{}{"id": aliceDID}
	for _, attr := range dataDLNormalizedValues() {
		subject[attr.Name] = attr.Value
	}

	thID, err := faber.Issuer().Offer(ctx, &issuecredential.OfferParams{
		MyDID:                  faberDID,
		TheirDID:               aliceDID,
		CredentialDefinitionID: credDefDL,
		Format:                 exchange.FormatJSONLD,
		Credential: map[string]interface{}{
			"@context":          map[string]interface{}{"@vocab": "https://example.org/driverslicense#"},
			"type":              "DriversLicense",
			"credentialSubject": subject,
		},
	})
	require.NoError(t, err)

	require.NoError(t, alice.Holder().Request(ctx, thID))

	held := record(t, alice, thID)
	require.Equal(t, string(issuecredential.HolderDone), held.State)
	require.Equal(t, exchange.FormatJSONLD, held.Format)
	require.Equal(t, record(t, faber, thID).AttributeMap(), held.AttributeMap())
}

func TestTenants_Registry(t *testing.T) {
	ledger := newLedger()
	tenants, _, _ := newTenants(t, ledger)

	require.Equal(t, []string{"alice", "faber"}, tenants.Names())

	_, err := tenants.Get("bob")
	require.True(t, errors.Is(err, ErrTenantNotFound))

	_, err = tenants.Add("faber")
	require.True(t, errors.Is(err, ErrTenantExists))

	_, err = tenants.Add("mallory", WithDIDs("did:example:mallory", faberDID))
	require.Error(t, err)
	require.Equal(t, []string{"alice", "faber"}, tenants.Names())

	bob, err := tenants.Add("bob", WithDIDs("did:example:mallory"))
	require.NoError(t, err, "routes of a failed tenant are released")

	got, err := tenants.Get("bob")
	require.NoError(t, err)
	require.Equal(t, bob, got)

	err = tenants.HandleInbound(context.Background(), nil, "did:example:unknown", faberDID)
	require.True(t, errors.Is(err, transport.ErrNoRoute))
}

func TestTenants_SharedLevelDB(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger()
	provider := leveldb.NewProvider(filepath.Join(t.TempDir(), "agents"))

	tenants := NewTenants(provider, WithDefaultOptions(WithSchemaResolver(ledger), WithRevocationRegistry(ledger)))

	faber, err := tenants.Add("faber", WithDIDs(faberDID))
	require.NoError(t, err)

	alice, err := tenants.Add("alice", WithDIDs(aliceDID))
	require.NoError(t, err)

	thID := offerDL(t, faber)
	require.NoError(t, alice.Holder().Request(ctx, thID))
	require.NoError(t, faber.Issuer().AcceptRequest(ctx, thID))

	require.Len(t, mustList(t, faber, exchange.RoleIssuer), 1)
	require.Empty(t, mustList(t, faber, exchange.RoleHolder))
	require.Len(t, mustList(t, alice, exchange.RoleHolder), 1)

	require.NoError(t, tenants.Close())
	require.NoError(t, provider.Close())
}

func mustList(t *testing.T, a *Agent, role exchange.Role) []*exchange.Record {
	t.Helper()

	recs, err := a.Store().List(role)
	require.NoError(t, err)

	return recs
}

func TestTenants_RemoteAgents(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger()
	endpoints := didcommhttp.NewEndpoints(nil)

	outbound, err := didcommhttp.NewOutbound(endpoints)
	require.NoError(t, err)

	newSite := func(name, did string) (*Tenants, *Agent) {
		tenants := NewTenants(mem.NewProvider(),
			WithRemoteSender(outbound),
			WithDefaultOptions(WithSchemaResolver(ledger), WithRevocationRegistry(ledger)),
		)

		a, err := tenants.Add(name, WithDIDs(did))
		require.NoError(t, err)

		handler, err := didcommhttp.NewInboundHandler(tenants)
		require.NoError(t, err)

		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)

		endpoints.Set(did, srv.URL)

		return tenants, a
	}

	_, faber := newSite("faber", faberDID)
	_, alice := newSite("alice", aliceDID)

	thID := offerDL(t, faber)
	require.NoError(t, alice.Holder().Request(ctx, thID))
	require.NoError(t, faber.Issuer().AcceptRequest(ctx, thID))

	require.Equal(t, string(issuecredential.IssuerCredentialIssued), record(t, faber, thID).State)
	require.Equal(t, string(issuecredential.HolderDone), record(t, alice, thID).State)
}
