/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	cmd "github.com/hyperledger/aries-issuecredential-go/pkg/controller/command/issuecredential"
	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/rest"
	protocol "github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/protocol/issuecredential"
	"github.com/hyperledger/aries-issuecredential-go/pkg/framework/agent"
	"github.com/hyperledger/aries-issuecredential-go/pkg/registry"
)

const (
	faberDID  = "did:example:faber"
	aliceDID  = "did:example:alice"
	schemaDL  = "driverslicense:1.0"
	credDefDL = "faber:driverslicense:default"
)

func newRouter(t *testing.T) *mux.Router {
	t.Helper()

	ledger := registry.NewMemory()
	ledger.AddSchema(&registry.Schema{
		ID: schemaDL, Name: "driverslicense", Version: "1.0",
		AttributeNames: []string{"family_name"},
	})
	ledger.AddCredentialDefinition(&registry.CredentialDefinition{
		ID: credDefDL, SchemaID: schemaDL, Tag: "default", Ready: true,
	}, 0)

	tenants := agent.NewTenants(mem.NewProvider(), agent.WithDefaultOptions(
		agent.WithSchemaResolver(ledger),
		agent.WithRevocationRegistry(ledger),
	))

	_, err := tenants.Add("faber", agent.WithDIDs(faberDID))
	require.NoError(t, err)

	_, err = tenants.Add("alice", agent.WithDIDs(aliceDID))
	require.NoError(t, err)

	op, err := New(tenants, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		op.Close()
		require.NoError(t, tenants.Close())
	})

	router := mux.NewRouter()

	rest.Register(router, op.GetRESTHandlers()...)

	return router
}

// serveRequest serves the request and returns the response body and status code.
func serveRequest(router http.Handler, method, path string, body io.Reader) (*bytes.Buffer, int) {
	req := httptest.NewRequest(method, path, body)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	return rr.Body, rr.Code
}

func TestNew(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)

	router := newRouter(t)
	require.NotNil(t, router)
}

func TestOperation_IssueFlow(t *testing.T) {
	router := newRouter(t)

	offer, err := json.Marshal(&cmd.IssueOfferArgs{
		MyDID:                  faberDID,
		TheirDID:               aliceDID,
		CredentialDefinitionID: credDefDL,
		Attributes:             []protocol.Attribute{{Name: "family_name", Value: "DOE"}},
	})
	require.NoError(t, err)

	body, code := serveRequest(router, http.MethodPost, "/faber/issuecredential/offer", bytes.NewBuffer(offer))
	require.Equal(t, http.StatusOK, code, body.String())

	var res cmd.ThreadResponse
	require.NoError(t, json.Unmarshal(body.Bytes(), &res))
	require.Equal(t, string(protocol.IssuerOfferSent), res.State)

	body, code = serveRequest(router, http.MethodPost, "/alice/issuecredential/"+res.ThreadID+"/request", nil)
	require.Equal(t, http.StatusOK, code, body.String())

	body, code = serveRequest(router, http.MethodPost, "/faber/issuecredential/"+res.ThreadID+"/accept-request", nil)
	require.Equal(t, http.StatusOK, code, body.String())

	body, code = serveRequest(router, http.MethodGet, "/alice/issuecredential/records/"+res.ThreadID, nil)
	require.Equal(t, http.StatusOK, code, body.String())

	var held cmd.RecordResponse
	require.NoError(t, json.Unmarshal(body.Bytes(), &held))
	require.Equal(t, string(protocol.HolderDone), held.Record.State)

	body, code = serveRequest(router, http.MethodGet, "/faber/issuecredential/records?role=holder", nil)
	require.Equal(t, http.StatusOK, code, body.String())

	var list cmd.RecordsResponse
	require.NoError(t, json.Unmarshal(body.Bytes(), &list))
	require.Empty(t, list.Records)

	body, code = serveRequest(router, http.MethodGet, "/faber/issuecredential/records?state=credential-issued", nil)
	require.Equal(t, http.StatusOK, code, body.String())
	require.NoError(t, json.Unmarshal(body.Bytes(), &list))
	require.Len(t, list.Records, 1)
}

func TestOperation_Errors(t *testing.T) {
	router := newRouter(t)

	t.Run("not a JSON object", func(t *testing.T) {
		body, code := serveRequest(router, http.MethodPost, "/faber/issuecredential/offer", strings.NewReader("[1]"))
		require.Equal(t, http.StatusBadRequest, code)
		require.Contains(t, body.String(), "payload is not a JSON object")
	})

	t.Run("validation", func(t *testing.T) {
		body, code := serveRequest(router, http.MethodPost, "/faber/issuecredential/offer", strings.NewReader("{}"))
		require.Equal(t, http.StatusBadRequest, code)
		require.Contains(t, body.String(), "empty my_did")
	})

	t.Run("unknown agent", func(t *testing.T) {
		_, code := serveRequest(router, http.MethodGet, "/bob/issuecredential/records", nil)
		require.Equal(t, http.StatusNotFound, code)
	})

	t.Run("unknown thread", func(t *testing.T) {
		_, code := serveRequest(router, http.MethodPost, "/faber/issuecredential/unknown/delete-offer", nil)
		require.Equal(t, http.StatusNotFound, code)
	})

	t.Run("protocol violation", func(t *testing.T) {
		body, code := serveRequest(router, http.MethodPost, "/faber/issuecredential/propose", strings.NewReader(
			`{"my_did":"`+faberDID+`","their_did":"`+aliceDID+`","schema_id":"`+schemaDL+
				`","credential_attributes":[{"name":"family_name","value":"DOE"}]}`))
		require.Equal(t, http.StatusOK, code, body.String())

		var res cmd.ThreadResponse
		require.NoError(t, json.Unmarshal(body.Bytes(), &res))

		body, code = serveRequest(router, http.MethodPost, "/faber/issuecredential/"+res.ThreadID+"/accept-request", nil)
		require.Equal(t, http.StatusInternalServerError, code)
		require.Contains(t, body.String(), "protocol violation")
	})
}
