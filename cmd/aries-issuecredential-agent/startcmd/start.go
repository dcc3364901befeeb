/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/component/storage/leveldb"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/hyperledger/aries-issuecredential-go/pkg/common/logging/zaplog"
	"github.com/hyperledger/aries-issuecredential-go/pkg/controller"
	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/rest"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/protocol/issuecredential"
	arieshttp "github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/transport/http"
	"github.com/hyperledger/aries-issuecredential-go/pkg/framework/agent"
	"github.com/hyperledger/aries-issuecredential-go/pkg/metrics"
	"github.com/hyperledger/aries-issuecredential-go/pkg/registry"
)

const (
	// api host flag.
	agentHostFlagName      = "api-host"
	agentHostEnvKey        = "ARIESIC_API_HOST"
	agentHostFlagShorthand = "a"
	agentHostFlagUsage     = "Host Name:Port. The controller API, the DIDComm inbound endpoint (" + inboundPath +
		") and the metrics endpoint (" + metricsPath + ") are served here." +
		" Alternatively, this can be set with the following environment variable: " + agentHostEnvKey

	// api token flag.
	agentTokenFlagName      = "api-token"
	agentTokenEnvKey        = "ARIESIC_API_TOKEN" // nolint:gosec
	agentTokenFlagShorthand = "t"
	agentTokenFlagUsage     = "Check for bearer token in the authorization header of controller API calls (optional)." +
		" Alternatively, this can be set with the following environment variable: " + agentTokenEnvKey

	databaseTypeFlagName      = "database-type"
	databaseTypeEnvKey        = "ARIESIC_DATABASE_TYPE"
	databaseTypeFlagShorthand = "q"
	databaseTypeFlagUsage     = "The type of database to store exchange records in." +
		" Supported options: mem, leveldb." +
		" Alternatively, this can be set with the following environment variable: " + databaseTypeEnvKey

	databasePathFlagName      = "database-path"
	databasePathEnvKey        = "ARIESIC_DATABASE_PATH"
	databasePathFlagShorthand = "v"
	databasePathFlagUsage     = "The path of the leveldb database. Not needed if using memstore." +
		" Alternatively, this can be set with the following environment variable: " + databasePathEnvKey

	databaseTimeoutFlagName  = "database-timeout"
	databaseTimeoutFlagUsage = "Total time in seconds to wait until the db is available before giving up." +
		" Default: " + databaseTimeoutDefault + " seconds." +
		" Alternatively, this can be set with the following environment variable: " + databaseTimeoutEnvKey
	databaseTimeoutEnvKey  = "ARIESIC_DATABASE_TIMEOUT"
	databaseTimeoutDefault = "30"

	// webhook url flag.
	agentWebhookFlagName      = "webhook-url"
	agentWebhookEnvKey        = "ARIESIC_WEBHOOK_URL"
	agentWebhookFlagShorthand = "w"
	agentWebhookFlagUsage     = "URL to send exchange state notifications to." +
		" This flag can be repeated, allowing for multiple listeners." +
		" Alternatively, this can be set with the following environment variable (in CSV format): " + agentWebhookEnvKey

	// webhook retries flag.
	agentWebhookRetriesFlagName  = "webhook-retries"
	agentWebhookRetriesEnvKey    = "ARIESIC_WEBHOOK_RETRIES"
	agentWebhookRetriesFlagUsage = "Times a failed webhook notification is retried. Defaults to 2 if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentWebhookRetriesEnvKey

	// tenant flag.
	agentTenantFlagName      = "tenant"
	agentTenantEnvKey        = "ARIESIC_TENANTS"
	agentTenantFlagShorthand = "n"
	agentTenantFlagUsage     = "Agent hosted by this process. Values should be in `name@did` format." +
		" This flag can be repeated, a name given more than once receives on every DID." +
		" Alternatively, this can be set with the following environment variable (in CSV format): " + agentTenantEnvKey

	// peer endpoint flag.
	agentPeerFlagName      = "peer-endpoint"
	agentPeerEnvKey        = "ARIESIC_PEER_ENDPOINTS"
	agentPeerFlagShorthand = "p"
	agentPeerFlagUsage     = "DIDComm inbound URL of a DID hosted elsewhere. Values should be in `did@url` format." +
		" This flag can be repeated." +
		" Alternatively, this can be set with the following environment variable (in CSV format): " + agentPeerEnvKey

	// ledger file flag.
	agentLedgerFlagName      = "ledger-file"
	agentLedgerEnvKey        = "ARIESIC_LEDGER_FILE"
	agentLedgerFlagShorthand = "l"
	agentLedgerFlagUsage     = "JSON file with the schemas and credential definitions the agents resolve." +
		" Alternatively, this can be set with the following environment variable: " + agentLedgerEnvKey

	// log level.
	agentLogLevelFlagName  = "log-level"
	agentLogLevelEnvKey    = "ARIESIC_LOG_LEVEL"
	agentLogLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL] . Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentLogLevelEnvKey

	// log format.
	agentLogFormatFlagName  = "log-format"
	agentLogFormatEnvKey    = "ARIESIC_LOG_FORMAT"
	agentLogFormatFlagUsage = "Log format." +
		" Possible values [text] [json]. Defaults to text if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentLogFormatEnvKey

	// auto issue flag.
	agentAutoIssueFlagName  = "auto-issue"
	agentAutoIssueEnvKey    = "ARIESIC_AUTO_ISSUE"
	agentAutoIssueFlagUsage = "Issue credentials as soon as the request is received." +
		" Possible values [true] [false]. Defaults to false if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentAutoIssueEnvKey

	// silence timeout flag.
	agentSilenceTimeoutFlagName  = "silence-timeout"
	agentSilenceTimeoutEnvKey    = "ARIESIC_SILENCE_TIMEOUT"
	agentSilenceTimeoutFlagUsage = "Time in seconds a holder waits on an unanswered offer before abandoning it." +
		" Defaults to waiting for an explicit problem report if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentSilenceTimeoutEnvKey

	// dispatcher flag.
	agentDispatcherFlagName  = "dispatcher"
	agentDispatcherEnvKey    = "ARIESIC_DISPATCHER"
	agentDispatcherFlagUsage = "Event dispatcher." +
		" Possible values [sync] [queued]. Defaults to sync if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentDispatcherEnvKey

	// metrics flag.
	agentMetricsFlagName  = "metrics"
	agentMetricsEnvKey    = "ARIESIC_METRICS"
	agentMetricsFlagUsage = "Serve prometheus metrics on " + metricsPath + "." +
		" Possible values [true] [false]. Defaults to false if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentMetricsEnvKey

	agentTLSCertFileFlagName      = "tls-cert-file"
	agentTLSCertFileEnvKey        = "TLS_CERT_FILE"
	agentTLSCertFileFlagShorthand = "c"
	agentTLSCertFileFlagUsage     = "tls certificate file." +
		" Alternatively, this can be set with the following environment variable: " + agentTLSCertFileEnvKey

	agentTLSKeyFileFlagName      = "tls-key-file"
	agentTLSKeyFileEnvKey        = "TLS_KEY_FILE"
	agentTLSKeyFileFlagShorthand = "k"
	agentTLSKeyFileFlagUsage     = "tls key file." +
		" Alternatively, this can be set with the following environment variable: " + agentTLSKeyFileEnvKey

	databaseTypeMemOption     = "mem"
	databaseTypeLevelDBOption = "leveldb"

	logFormatText = "text"
	logFormatJSON = "json"

	dispatcherSync   = "sync"
	dispatcherQueued = "queued"

	inboundPath = "/didcomm"
	metricsPath = "/metrics"

	resolverCacheSize   = 100
	resolverCacheExpiry = time.Minute
)

var (
	errMissingHost    = errors.New("host not provided")
	errMissingTenants = errors.New("no tenant configured")
	errMissingDBPath  = errors.New("leveldb needs a database path")
	logger            = log.New("aries-framework/issuecredential-agent")
)

type agentParameters struct {
	server                  server
	host, token             string
	tlsCertFile, tlsKeyFile string
	webhookURLs             []string
	webhookRetries          *uint64
	tenants                 []tenant
	peers                   map[string]string
	ledgerFile              string
	dbParam                 *dbParam
	autoIssue               bool
	silenceTimeout          time.Duration
	dispatcher              string
	metrics                 bool
}

type tenant struct {
	name string
	dids []string
}

type dbParam struct {
	dbType  string
	path    string
	timeout uint64
}

// nolint:gochecknoglobals
var supportedStorageProviders = map[string]func(path string) (storage.Provider, error){
	databaseTypeMemOption: func(_ string) (storage.Provider, error) { // nolint:unparam
		return mem.NewProvider(), nil
	},
	databaseTypeLevelDBOption: func(path string) (storage.Provider, error) { // nolint:unparam
		return leveldb.NewProvider(path), nil
	},
}

type server interface {
	ListenAndServe(host string, router http.Handler, certFile, keyFile string) error
}

// HTTPServer represents an actual server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go HTTP server implementation.
func (s *HTTPServer) ListenAndServe(host string, router http.Handler, certFile, keyFile string) error {
	if certFile != "" && keyFile != "" {
		return http.ListenAndServeTLS(host, certFile, keyFile, router)
	}

	return http.ListenAndServe(host, router) // nolint:gosec
}

// Cmd returns the Cobra start command.
func Cmd(server server) (*cobra.Command, error) {
	startCmd := createStartCMD(server)

	createFlags(startCmd)

	return startCmd, nil
}

func createStartCMD(server server) *cobra.Command { //nolint: funlen, gocyclo
	return &cobra.Command{
		Use:   "start",
		Short: "Start an agent",
		Long:  `Start an issue credential agent hosting one or more tenants`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logFormat, err := getUserSetVar(cmd, agentLogFormatFlagName, agentLogFormatEnvKey, true)
			if err != nil {
				return err
			}

			err = setLogFormat(logFormat)
			if err != nil {
				return err
			}

			logLevel, err := getUserSetVar(cmd, agentLogLevelFlagName, agentLogLevelEnvKey, true)
			if err != nil {
				return err
			}

			err = setLogLevel(logLevel)
			if err != nil {
				return err
			}

			host, err := getUserSetVar(cmd, agentHostFlagName, agentHostEnvKey, false)
			if err != nil {
				return err
			}

			token, err := getUserSetVar(cmd, agentTokenFlagName, agentTokenEnvKey, true)
			if err != nil {
				return err
			}

			dbParam, err := getDBParam(cmd)
			if err != nil {
				return err
			}

			webhookURLs, err := getUserSetVars(cmd, agentWebhookFlagName, agentWebhookEnvKey, true)
			if err != nil {
				return err
			}

			webhookRetries, err := getWebhookRetries(cmd)
			if err != nil {
				return err
			}

			tenantVars, err := getUserSetVars(cmd, agentTenantFlagName, agentTenantEnvKey, false)
			if err != nil {
				return err
			}

			tenants, err := getTenants(tenantVars)
			if err != nil {
				return err
			}

			peerVars, err := getUserSetVars(cmd, agentPeerFlagName, agentPeerEnvKey, true)
			if err != nil {
				return err
			}

			peers, err := getPeers(peerVars)
			if err != nil {
				return err
			}

			ledgerFile, err := getUserSetVar(cmd, agentLedgerFlagName, agentLedgerEnvKey, true)
			if err != nil {
				return err
			}

			autoIssue, err := getBoolValue(cmd, agentAutoIssueFlagName, agentAutoIssueEnvKey)
			if err != nil {
				return err
			}

			silenceTimeout, err := getSilenceTimeout(cmd)
			if err != nil {
				return err
			}

			dispatcher, err := getDispatcher(cmd)
			if err != nil {
				return err
			}

			withMetrics, err := getBoolValue(cmd, agentMetricsFlagName, agentMetricsEnvKey)
			if err != nil {
				return err
			}

			tlsCertFile, err := getUserSetVar(cmd, agentTLSCertFileFlagName, agentTLSCertFileEnvKey, true)
			if err != nil {
				return err
			}

			tlsKeyFile, err := getUserSetVar(cmd, agentTLSKeyFileFlagName, agentTLSKeyFileEnvKey, true)
			if err != nil {
				return err
			}

			parameters := &agentParameters{
				server:         server,
				host:           host,
				token:          token,
				tlsCertFile:    tlsCertFile,
				tlsKeyFile:     tlsKeyFile,
				webhookURLs:    webhookURLs,
				webhookRetries: webhookRetries,
				tenants:        tenants,
				peers:          peers,
				ledgerFile:     ledgerFile,
				dbParam:        dbParam,
				autoIssue:      autoIssue,
				silenceTimeout: silenceTimeout,
				dispatcher:     dispatcher,
				metrics:        withMetrics,
			}

			return startAgent(parameters)
		},
	}
}

func getDBParam(cmd *cobra.Command) (*dbParam, error) {
	dbParam := &dbParam{}

	var err error

	dbParam.dbType, err = getUserSetVar(cmd, databaseTypeFlagName, databaseTypeEnvKey, true)
	if err != nil {
		return nil, err
	}

	if dbParam.dbType == "" {
		dbParam.dbType = databaseTypeMemOption
	}

	dbParam.path, err = getUserSetVar(cmd, databasePathFlagName, databasePathEnvKey, true)
	if err != nil {
		return nil, err
	}

	dbTimeout, err := getUserSetVar(cmd, databaseTimeoutFlagName, databaseTimeoutEnvKey, true)
	if err != nil {
		return nil, err
	}

	if dbTimeout == "" || dbTimeout == "0" {
		dbTimeout = databaseTimeoutDefault
	}

	t, err := strconv.Atoi(dbTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db timeout %s: %w", dbTimeout, err)
	}

	dbParam.timeout = uint64(t)

	return dbParam, nil
}

func getBoolValue(cmd *cobra.Command, flagName, envKey string) (bool, error) {
	v, err := getUserSetVar(cmd, flagName, envKey, true)
	if err != nil {
		return false, err
	}

	if v == "" {
		return false, nil
	}

	return strconv.ParseBool(v)
}

func getWebhookRetries(cmd *cobra.Command) (*uint64, error) {
	v, err := getUserSetVar(cmd, agentWebhookRetriesFlagName, agentWebhookRetriesEnvKey, true)
	if err != nil || v == "" {
		return nil, err
	}

	retries, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to parse webhook retries %s", v)
	}

	return &retries, nil
}

func getSilenceTimeout(cmd *cobra.Command) (time.Duration, error) {
	v, err := getUserSetVar(cmd, agentSilenceTimeoutFlagName, agentSilenceTimeoutEnvKey, true)
	if err != nil {
		return 0, err
	}

	if v == "" {
		return 0, nil
	}

	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("failed to parse silence timeout %s", v)
	}

	return time.Duration(seconds) * time.Second, nil
}

func getDispatcher(cmd *cobra.Command) (string, error) {
	v, err := getUserSetVar(cmd, agentDispatcherFlagName, agentDispatcherEnvKey, true)
	if err != nil {
		return "", err
	}

	switch v {
	case "", dispatcherSync:
		return dispatcherSync, nil
	case dispatcherQueued:
		return dispatcherQueued, nil
	default:
		return "", fmt.Errorf("dispatcher [%s] not supported", v)
	}
}

func getTenants(values []string) ([]tenant, error) {
	pairs, err := splitPairs(values, "tenant", "name@did")
	if err != nil {
		return nil, err
	}

	var tenants []tenant

	index := map[string]int{}

	for _, p := range pairs {
		i, ok := index[p[0]]
		if !ok {
			i = len(tenants)
			index[p[0]] = i
			tenants = append(tenants, tenant{name: p[0]})
		}

		tenants[i].dids = append(tenants[i].dids, p[1])
	}

	return tenants, nil
}

func getPeers(values []string) (map[string]string, error) {
	pairs, err := splitPairs(values, "peer endpoint", "did@url")
	if err != nil {
		return nil, err
	}

	peers := make(map[string]string, len(pairs))
	for _, p := range pairs {
		peers[p[0]] = p[1]
	}

	return peers, nil
}

// splitPairs splits every value at its first "@".
func splitPairs(values []string, what, format string) ([][2]string, error) {
	pairs := make([][2]string, 0, len(values))

	for _, v := range values {
		key, value, ok := strings.Cut(v, "@")
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("invalid %s option %q: use %s to pass the option", what, v, format)
		}

		pairs = append(pairs, [2]string{key, value})
	}

	return pairs, nil
}

func createFlags(startCmd *cobra.Command) {
	// agent host flag
	startCmd.Flags().StringP(agentHostFlagName, agentHostFlagShorthand, "", agentHostFlagUsage)

	// agent token flag
	startCmd.Flags().StringP(agentTokenFlagName, agentTokenFlagShorthand, "", agentTokenFlagUsage)

	// db type
	startCmd.Flags().StringP(databaseTypeFlagName, databaseTypeFlagShorthand, "", databaseTypeFlagUsage)

	// db path
	startCmd.Flags().StringP(databasePathFlagName, databasePathFlagShorthand, "", databasePathFlagUsage)

	// db timeout
	startCmd.Flags().StringP(databaseTimeoutFlagName, "", "", databaseTimeoutFlagUsage)

	// webhook url flag
	startCmd.Flags().StringSliceP(agentWebhookFlagName, agentWebhookFlagShorthand, []string{}, agentWebhookFlagUsage)

	// webhook retries flag
	startCmd.Flags().StringP(agentWebhookRetriesFlagName, "", "", agentWebhookRetriesFlagUsage)

	// tenant flag
	startCmd.Flags().StringSliceP(agentTenantFlagName, agentTenantFlagShorthand, []string{}, agentTenantFlagUsage)

	// peer endpoint flag
	startCmd.Flags().StringSliceP(agentPeerFlagName, agentPeerFlagShorthand, []string{}, agentPeerFlagUsage)

	// ledger file flag
	startCmd.Flags().StringP(agentLedgerFlagName, agentLedgerFlagShorthand, "", agentLedgerFlagUsage)

	// log level
	startCmd.Flags().StringP(agentLogLevelFlagName, "", "", agentLogLevelFlagUsage)

	// log format
	startCmd.Flags().StringP(agentLogFormatFlagName, "", "", agentLogFormatFlagUsage)

	// auto issue flag
	startCmd.Flags().StringP(agentAutoIssueFlagName, "", "", agentAutoIssueFlagUsage)

	// silence timeout flag
	startCmd.Flags().StringP(agentSilenceTimeoutFlagName, "", "", agentSilenceTimeoutFlagUsage)

	// dispatcher flag
	startCmd.Flags().StringP(agentDispatcherFlagName, "", "", agentDispatcherFlagUsage)

	// metrics flag
	startCmd.Flags().StringP(agentMetricsFlagName, "", "", agentMetricsFlagUsage)

	// tls cert file
	startCmd.Flags().StringP(agentTLSCertFileFlagName,
		agentTLSCertFileFlagShorthand, "", agentTLSCertFileFlagUsage)

	// tls key file
	startCmd.Flags().StringP(agentTLSKeyFileFlagName,
		agentTLSKeyFileFlagShorthand, "", agentTLSKeyFileFlagUsage)
}

func getUserSetVar(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	if isOptional || isSet {
		return value, nil
	}

	return "", errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

func getUserSetVars(cmd *cobra.Command, flagName, envKey string, isOptional bool) ([]string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetStringSlice(flagName)
		if err != nil {
			return nil, fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	var values []string

	if isSet {
		values = strings.Split(value, ",")
	}

	if isOptional || isSet {
		return values, nil
	}

	return nil, fmt.Errorf(" %s not set. "+
		"It must be set via either command line or environment variable", flagName)
}

func setLogLevel(logLevel string) error {
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
		}

		log.SetLevel("", level)

		logger.Infof("logger level set to %s", logLevel)
	}

	return nil
}

// setLogFormat installs the zap logger provider for JSON logs. It takes effect once per process.
func setLogFormat(logFormat string) error {
	switch logFormat {
	case "", logFormatText:
		return nil
	case logFormatJSON:
		log.Initialize(zaplog.New())

		return nil
	default:
		return fmt.Errorf("log format [%s] not supported", logFormat)
	}
}

func validateAuthorizationBearerToken(w http.ResponseWriter, r *http.Request, token string) bool {
	actHdr := r.Header.Get("Authorization")
	expHdr := "Bearer " + token

	if subtle.ConstantTimeCompare([]byte(actHdr), []byte(expHdr)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Unauthorised.\n")) // nolint:gosec,errcheck

		return false
	}

	return true
}

func authorizationMiddleware(token string) mux.MiddlewareFunc {
	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validateAuthorizationBearerToken(w, r, token) {
				next.ServeHTTP(w, r)
			}
		})
	}

	return middleware
}

func startAgent(parameters *agentParameters) error {
	if parameters.host == "" {
		return errMissingHost
	}

	router, closeAgent, err := createRouter(parameters)
	if err != nil {
		return fmt.Errorf("failed to start issue credential agent on port [%s] : %w", parameters.host, err)
	}

	defer closeAgent()

	logger.Infof("Starting issue credential agent on host [%s]", parameters.host)
	// start server on given port and serve using given handlers
	handler := cors.New(
		cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodHead},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "Authorization"},
		},
	).Handler(router)

	err = parameters.server.ListenAndServe(parameters.host, handler, parameters.tlsCertFile, parameters.tlsKeyFile)
	if err != nil {
		return fmt.Errorf("failed to start issue credential agent on port [%s], cause:  %w", parameters.host, err)
	}

	return nil
}

// createRouter builds the agents and their routes. The returned func releases them.
func createRouter(parameters *agentParameters) (*mux.Router, func(), error) { // nolint: funlen
	if len(parameters.tenants) == 0 {
		return nil, nil, errMissingTenants
	}

	ledger, err := loadLedger(parameters.ledgerFile)
	if err != nil {
		return nil, nil, err
	}

	remote, err := arieshttp.NewOutbound(arieshttp.NewEndpoints(parameters.peers))
	if err != nil {
		return nil, nil, fmt.Errorf("http outbound transport initialization failed: %w", err)
	}

	storePro, err := createStoreProvider(parameters)
	if err != nil {
		return nil, nil, err
	}

	protocolOpts := []issuecredential.Opt{issuecredential.WithAutoIssue(parameters.autoIssue)}
	if parameters.silenceTimeout > 0 {
		protocolOpts = append(protocolOpts, issuecredential.WithSilenceTimeout(parameters.silenceTimeout))
	}

	var m *metrics.Metrics
	if parameters.metrics {
		m = metrics.New()
		protocolOpts = append(protocolOpts, issuecredential.WithMiddleware(m.Middleware()))
	}

	tenants := agent.NewTenants(storePro,
		agent.WithRemoteSender(remote),
		agent.WithDefaultOptions(
			agent.WithSchemaResolver(registry.NewCachingResolver(ledger, resolverCacheSize, resolverCacheExpiry)),
			agent.WithRevocationRegistry(ledger),
			agent.WithProtocolOptions(protocolOpts...),
		))

	closeTenants := func() {
		if e := tenants.Close(); e != nil {
			logger.Warnf("failed to close agents: %s", e)
		}

		if e := storePro.Close(); e != nil {
			logger.Warnf("failed to close storage: %s", e)
		}
	}

	for _, t := range parameters.tenants {
		opts := []agent.Option{agent.WithDIDs(t.dids...)}

		if parameters.dispatcher == dispatcherQueued {
			d, e := event.NewQueued()
			if e != nil {
				closeTenants()

				return nil, nil, fmt.Errorf("queued dispatcher of %s: %w", t.name, e)
			}

			opts = append(opts, agent.WithDispatcher(d))
		}

		if _, err = tenants.Add(t.name, opts...); err != nil {
			closeTenants()

			return nil, nil, fmt.Errorf("add agent %s: %w", t.name, err)
		}
	}

	ctrlOpts := []controller.Opt{controller.WithWebhookURLs(parameters.webhookURLs...)}
	if parameters.webhookRetries != nil {
		ctrlOpts = append(ctrlOpts, controller.WithWebhookRetries(*parameters.webhookRetries))
	}

	ctrl, err := controller.New(tenants, ctrlOpts...)
	if err != nil {
		closeTenants()

		return nil, nil, fmt.Errorf("failed to get rest service api : %w", err)
	}

	inbound, err := arieshttp.NewInboundHandler(tenants)
	if err != nil {
		ctrl.Close()
		closeTenants()

		return nil, nil, err
	}

	router := mux.NewRouter()
	router.Handle(inboundPath, inbound)

	if m != nil {
		router.Handle(metricsPath, m.Handler()).Methods(http.MethodGet)
	}

	api := router.NewRoute().Subrouter()

	if parameters.token != "" {
		api.Use(authorizationMiddleware(parameters.token))
	}

	rest.Register(api, ctrl.GetRESTHandlers()...)

	return router, func() {
		ctrl.Close()
		closeTenants()
	}, nil
}

func loadLedger(path string) (*registry.Memory, error) {
	if path == "" {
		return registry.NewMemory(), nil
	}

	f, err := os.Open(path) // nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("open ledger file: %w", err)
	}

	defer func() {
		if e := f.Close(); e != nil {
			logger.Warnf("failed to close ledger file: %s", e)
		}
	}()

	return registry.LoadMemory(f)
}

func createStoreProvider(parameters *agentParameters) (storage.Provider, error) {
	provider, supported := supportedStorageProviders[parameters.dbParam.dbType]
	if !supported {
		return nil, fmt.Errorf("database type not set to a valid type." +
			" run start --help to see the available options")
	}

	if parameters.dbParam.dbType == databaseTypeLevelDBOption && parameters.dbParam.path == "" {
		return nil, errMissingDBPath
	}

	var store storage.Provider

	err := backoff.RetryNotify(
		func() error {
			var openErr error
			store, openErr = provider(parameters.dbParam.path)
			return openErr
		},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), parameters.dbParam.timeout),
		func(retryErr error, t time.Duration) {
			logger.Warnf(
				"failed to connect to storage, will sleep for %s before trying again : %s\n",
				t, retryErr)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage at %s : %w", parameters.dbParam.path, err)
	}

	return store, nil
}
