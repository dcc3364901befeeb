/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/command"
	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/internal/cmdutil"
	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/webnotifier"
	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/event"
	protocol "github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/protocol/issuecredential"
	"github.com/hyperledger/aries-issuecredential-go/pkg/framework/agent"
	"github.com/hyperledger/aries-issuecredential-go/pkg/internal/logutil"
	"github.com/hyperledger/aries-issuecredential-go/pkg/store/exchange"
)

var (
	logger = log.New("aries-framework/controller/issuecredential")
	cmdLog = logutil.ForCommand(logger, CommandName)
)

const (
	// InvalidRequestErrorCode is typically a code for validation errors
	// for invalid issue credential controller requests.
	InvalidRequestErrorCode = command.Code(iota + command.IssueCredential)
	// AgentNotFoundErrorCode is for commands addressing an unknown agent.
	AgentNotFoundErrorCode
	// RecordNotFoundErrorCode is for commands addressing an unknown exchange.
	RecordNotFoundErrorCode
	// IssueOfferErrorCode is for failures in issue offer command.
	IssueOfferErrorCode
	// DeleteOfferErrorCode is for failures in delete offer command.
	DeleteOfferErrorCode
	// SendProposalErrorCode is for failures in send proposal command.
	SendProposalErrorCode
	// SendRequestErrorCode is for failures in send request command.
	SendRequestErrorCode
	// AcceptRequestErrorCode is for failures in accept request command.
	AcceptRequestErrorCode
	// RevokeCredentialErrorCode is for failures in revoke credential command.
	RevokeCredentialErrorCode
	// CheckRevocationErrorCode is for failures in check revocation command.
	CheckRevocationErrorCode
	// RecordsErrorCode is for failures in records command.
	RecordsErrorCode
	// ProtocolViolationErrorCode is for commands illegal in the state of the exchange.
	ProtocolViolationErrorCode
	// UnresolvedRequestErrorCode is for requests without a matching offer or credential definition.
	UnresolvedRequestErrorCode
	// CredentialMismatchErrorCode is for credentials not matching the request.
	CredentialMismatchErrorCode
	// ConcurrentModificationErrorCode is for commands losing against a concurrent operation on the thread.
	ConcurrentModificationErrorCode
	// TransportFailureErrorCode is for messages that could not be delivered.
	TransportFailureErrorCode
	// AlreadyRevokedErrorCode is for credentials revoked twice.
	AlreadyRevokedErrorCode
)

// constants for issue credential commands.
const (
	// command name.
	CommandName = "issuecredential"

	IssueOffer       = "IssueOffer"
	AcceptProposal   = "AcceptProposal"
	DeleteOffer      = "DeleteOffer"
	SendProposal     = "SendProposal"
	SendRequest      = "SendRequest"
	AcceptRequest    = "AcceptRequest"
	RevokeCredential = "RevokeCredential"
	CheckRevocation  = "CheckRevocation"
	Records          = "Records"
	Record           = "Record"

	// StatesTopic is the notification topic of exchange state changes.
	StatesTopic = event.Topic
)

const (
	// error messages.
	errEmptyAgent    = "empty agent"
	errEmptyThreadID = "empty thread_id"
	errEmptyMyDID    = "empty my_did"
	errEmptyTheirDID = "empty their_did"
	errEmptyCredDef  = "empty credential_definition_id"
	errEmptySchemaID = "empty schema_id"

	// log constants.
	successString = "success"

	defaultCommandTimeout = 30 * time.Second
)

// Provider gives access to the agents of the process.
type Provider interface {
	Get(name string) (*agent.Agent, error)
	Names() []string
}

// Options contains configuration options.
type Options struct {
	timeout time.Duration
}

// Option modifies Options.
type Option func(*Options)

// WithTimeout sets the time a command may take, defaults to 30 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.timeout = timeout
	}
}

// Command is controller command for issue credential.
type Command struct {
	agents   Provider
	observer *webnotifier.Observer
	timeout  time.Duration
}

// New returns new issue credential controller command instance.
// The events of the agents known to p are notified on StatesTopic when notifier is set.
func New(p Provider, notifier command.Notifier, options ...Option) (*Command, error) {
	if p == nil {
		return nil, errors.New("agent provider is mandatory")
	}

	opts := &Options{timeout: defaultCommandTimeout}

	for i := range options {
		options[i](opts)
	}

	c := &Command{agents: p, timeout: opts.timeout}

	if notifier != nil {
		c.observer = webnotifier.NewObserver(notifier)

		for _, name := range p.Names() {
			a, err := p.Get(name)
			if err != nil {
				c.observer.Stop()

				return nil, fmt.Errorf("observe agent %s: %w", name, err)
			}

			c.observer.RegisterDispatcher(StatesTopic, a.Dispatcher())
		}
	}

	return c, nil
}

// Close stops notifying events.
func (c *Command) Close() {
	if c.observer != nil {
		c.observer.Stop()
	}
}

// GetHandlers returns list of all commands supported by this controller command.
func (c *Command) GetHandlers() []command.Handler {
	return cmdutil.CommandHandlers(CommandName,
		cmdutil.Method{Name: IssueOffer, Exec: c.IssueOffer},
		cmdutil.Method{Name: AcceptProposal, Exec: c.AcceptProposal},
		cmdutil.Method{Name: DeleteOffer, Exec: c.DeleteOffer},
		cmdutil.Method{Name: SendProposal, Exec: c.SendProposal},
		cmdutil.Method{Name: SendRequest, Exec: c.SendRequest},
		cmdutil.Method{Name: AcceptRequest, Exec: c.AcceptRequest},
		cmdutil.Method{Name: RevokeCredential, Exec: c.RevokeCredential},
		cmdutil.Method{Name: CheckRevocation, Exec: c.CheckRevocation},
		cmdutil.Method{Name: Records, Exec: c.Records},
		cmdutil.Method{Name: Record, Exec: c.Record},
	)
}

// IssueOffer is used by the Issuer to offer a credential.
func (c *Command) IssueOffer(rw io.Writer, req io.Reader) command.Error {
	var args IssueOfferArgs

	if cmdErr := command.DecodeArgs(req, &args, InvalidRequestErrorCode); cmdErr != nil {
		cmdLog.Info(IssueOffer, cmdErr.Error())
		return cmdErr
	}

	if cmdErr := validateOffer(IssueOffer, &args); cmdErr != nil {
		return cmdErr
	}

	a, cmdErr := c.agent(IssueOffer, args.Agent)
	if cmdErr != nil {
		return cmdErr
	}

	ctx, cancel := c.context()
	defer cancel()

	thID, err := a.Issuer().Offer(ctx, offerParams(&args))
	if err != nil {
		cmdLog.Error(IssueOffer, err.Error(), logutil.Agent(args.Agent))
		return executeError(IssueOfferErrorCode, err)
	}

	c.writeThread(rw, a, thID)

	cmdLog.Debug(IssueOffer, successString, logutil.ThreadID(thID))

	return nil
}

// AcceptProposal is used by the Issuer to answer a proposal with an offer.
func (c *Command) AcceptProposal(rw io.Writer, req io.Reader) command.Error {
	var args IssueOfferArgs

	if cmdErr := command.DecodeArgs(req, &args, InvalidRequestErrorCode); cmdErr != nil {
		cmdLog.Info(AcceptProposal, cmdErr.Error())
		return cmdErr
	}

	if args.ThreadID == "" {
		cmdLog.Debug(AcceptProposal, errEmptyThreadID)
		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyThreadID))
	}

	if args.Agent == "" {
		cmdLog.Debug(AcceptProposal, errEmptyAgent)
		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyAgent))
	}

	a, cmdErr := c.agent(AcceptProposal, args.Agent)
	if cmdErr != nil {
		return cmdErr
	}

	ctx, cancel := c.context()
	defer cancel()

	if err := a.Issuer().OfferFromProposal(ctx, args.ThreadID, offerParams(&args)); err != nil {
		cmdLog.Error(AcceptProposal, err.Error(),
			logutil.ThreadID(args.ThreadID))

		return executeError(IssueOfferErrorCode, err)
	}

	c.writeThread(rw, a, args.ThreadID)

	cmdLog.Debug(AcceptProposal, successString, logutil.Agent(args.Agent), logutil.ThreadID(args.ThreadID))

	return nil
}

// DeleteOffer is used by the Issuer to withdraw an offer the holder did not answer.
func (c *Command) DeleteOffer(rw io.Writer, req io.Reader) command.Error {
	return c.threadCommand(rw, req, DeleteOffer, DeleteOfferErrorCode,
		func(ctx context.Context, a *agent.Agent, thID string) error {
			return a.Issuer().DeleteOffer(ctx, thID)
		})
}

// SendProposal is used by the Holder to propose a credential.
func (c *Command) SendProposal(rw io.Writer, req io.Reader) command.Error {
	var args SendRequestArgs

	if cmdErr := command.DecodeArgs(req, &args, InvalidRequestErrorCode); cmdErr != nil {
		cmdLog.Info(SendProposal, cmdErr.Error())
		return cmdErr
	}

	if cmdErr := validateStandalone(SendProposal, &args); cmdErr != nil {
		return cmdErr
	}

	a, cmdErr := c.agent(SendProposal, args.Agent)
	if cmdErr != nil {
		return cmdErr
	}

	ctx, cancel := c.context()
	defer cancel()

	thID, err := a.Holder().Propose(ctx, args.params())
	if err != nil {
		cmdLog.Error(SendProposal, err.Error(), logutil.Agent(args.Agent))
		return executeError(SendProposalErrorCode, err)
	}

	c.writeThread(rw, a, thID)

	cmdLog.Debug(SendProposal, successString, logutil.ThreadID(thID))

	return nil
}

// SendRequest is used by the Holder to request a credential. With only the agent and the
// thread id it requests the offered credential, otherwise it requests a credential without an offer.
func (c *Command) SendRequest(rw io.Writer, req io.Reader) command.Error {
	var args SendRequestArgs

	if cmdErr := command.DecodeArgs(req, &args, InvalidRequestErrorCode); cmdErr != nil {
		cmdLog.Info(SendRequest, cmdErr.Error())
		return cmdErr
	}

	if !args.standalone() {
		return c.threadCommandArgs(rw, &ThreadArgs{Agent: args.Agent, ThreadID: args.ThreadID},
			SendRequest, SendRequestErrorCode, func(ctx context.Context, a *agent.Agent, thID string) error {
				return a.Holder().Request(ctx, thID)
			})
	}

	if cmdErr := validateStandalone(SendRequest, &args); cmdErr != nil {
		return cmdErr
	}

	a, cmdErr := c.agent(SendRequest, args.Agent)
	if cmdErr != nil {
		return cmdErr
	}

	ctx, cancel := c.context()
	defer cancel()

	thID, err := a.Holder().RequestStandalone(ctx, args.params())
	if err != nil {
		cmdLog.Error(SendRequest, err.Error(), logutil.ThreadID(thID))
		return executeError(SendRequestErrorCode, err)
	}

	c.writeThread(rw, a, thID)

	cmdLog.Debug(SendRequest, successString, logutil.ThreadID(thID))

	return nil
}

// AcceptRequest is used by the Issuer to issue the requested credential.
func (c *Command) AcceptRequest(rw io.Writer, req io.Reader) command.Error {
	return c.threadCommand(rw, req, AcceptRequest, AcceptRequestErrorCode,
		func(ctx context.Context, a *agent.Agent, thID string) error {
			return a.Issuer().AcceptRequest(ctx, thID)
		})
}

// RevokeCredential is used by the Issuer to revoke an issued credential. The state of the exchange does not change.
func (c *Command) RevokeCredential(rw io.Writer, req io.Reader) command.Error {
	return c.threadCommand(rw, req, RevokeCredential, RevokeCredentialErrorCode,
		func(ctx context.Context, a *agent.Agent, thID string) error {
			return a.Issuer().Revoke(ctx, thID)
		})
}

// CheckRevocation is used by the Holder to check whether a stored credential was revoked.
func (c *Command) CheckRevocation(rw io.Writer, req io.Reader) command.Error {
	args, a, cmdErr := c.threadArgs(req, CheckRevocation)
	if cmdErr != nil {
		return cmdErr
	}

	ctx, cancel := c.context()
	defer cancel()

	status, err := a.Holder().CheckRevocation(ctx, args.ThreadID)
	if err != nil {
		cmdLog.Error(CheckRevocation, err.Error(),
			logutil.ThreadID(args.ThreadID))

		return executeError(CheckRevocationErrorCode, err)
	}

	command.WriteNillableResponse(rw, &RevocationStatusResponse{ThreadID: args.ThreadID, Status: status}, logger)

	cmdLog.Debug(CheckRevocation, successString)

	return nil
}

// Records returns the exchange records of an agent.
func (c *Command) Records(rw io.Writer, req io.Reader) command.Error {
	var args RecordsArgs

	if cmdErr := command.DecodeArgs(req, &args, InvalidRequestErrorCode); cmdErr != nil {
		cmdLog.Info(Records, cmdErr.Error())
		return cmdErr
	}

	a, cmdErr := c.agent(Records, args.Agent)
	if cmdErr != nil {
		return cmdErr
	}

	records, err := list(a.Store(), &args)
	if err != nil {
		cmdLog.Error(Records, err.Error(), logutil.Agent(args.Agent))
		return command.NewExecuteError(RecordsErrorCode, err)
	}

	command.WriteNillableResponse(rw, &RecordsResponse{Records: records}, logger)

	cmdLog.Debug(Records, successString)

	return nil
}

func list(s *exchange.Store, args *RecordsArgs) ([]*exchange.Record, error) {
	var (
		all []*exchange.Record
		err error
	)

	switch {
	case args.State != "":
		all, err = s.ListByState(args.State)
	case args.Role != "":
		return s.List(args.Role)
	default:
		var holder []*exchange.Record

		all, err = s.List(exchange.RoleIssuer)
		if err == nil {
			holder, err = s.List(exchange.RoleHolder)
			all = append(all, holder...)
		}
	}

	if err != nil {
		return nil, err
	}

	records := make([]*exchange.Record, 0, len(all))

	for _, rec := range all {
		if args.Role == "" || rec.Role == args.Role {
			records = append(records, rec)
		}
	}

	return records, nil
}

// Record returns one exchange record of an agent.
func (c *Command) Record(rw io.Writer, req io.Reader) command.Error {
	args, a, cmdErr := c.threadArgs(req, Record)
	if cmdErr != nil {
		return cmdErr
	}

	rec, err := a.Store().Get(args.ThreadID)
	if err != nil {
		cmdLog.Debug(Record, err.Error(), logutil.ThreadID(args.ThreadID))
		return executeError(RecordsErrorCode, err)
	}

	command.WriteNillableResponse(rw, &RecordResponse{Record: rec}, logger)

	cmdLog.Debug(Record, successString)

	return nil
}

func (c *Command) threadCommand(rw io.Writer, req io.Reader, action string, code command.Code,
	fn func(ctx context.Context, a *agent.Agent, thID string) error) command.Error {
	var args ThreadArgs

	if cmdErr := command.DecodeArgs(req, &args, InvalidRequestErrorCode); cmdErr != nil {
		cmdLog.Info(action, cmdErr.Error())
		return cmdErr
	}

	return c.threadCommandArgs(rw, &args, action, code, fn)
}

func (c *Command) threadCommandArgs(rw io.Writer, args *ThreadArgs, action string, code command.Code,
	fn func(ctx context.Context, a *agent.Agent, thID string) error) command.Error {
	a, cmdErr := c.validateThread(args, action)
	if cmdErr != nil {
		return cmdErr
	}

	ctx, cancel := c.context()
	defer cancel()

	if err := fn(ctx, a, args.ThreadID); err != nil {
		cmdLog.Error(action, err.Error(), logutil.ThreadID(args.ThreadID))
		return executeError(code, err)
	}

	c.writeThread(rw, a, args.ThreadID)

	cmdLog.Debug(action, successString, logutil.ThreadID(args.ThreadID))

	return nil
}

func (c *Command) threadArgs(req io.Reader, action string) (*ThreadArgs, *agent.Agent, command.Error) {
	var args ThreadArgs

	if cmdErr := command.DecodeArgs(req, &args, InvalidRequestErrorCode); cmdErr != nil {
		cmdLog.Info(action, cmdErr.Error())
		return nil, nil, cmdErr
	}

	a, cmdErr := c.validateThread(&args, action)
	if cmdErr != nil {
		return nil, nil, cmdErr
	}

	return &args, a, nil
}

func (c *Command) validateThread(args *ThreadArgs, action string) (*agent.Agent, command.Error) {
	if args.ThreadID == "" {
		cmdLog.Debug(action, errEmptyThreadID)
		return nil, command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyThreadID))
	}

	return c.agent(action, args.Agent)
}

func (c *Command) agent(action, name string) (*agent.Agent, command.Error) {
	if name == "" {
		cmdLog.Debug(action, errEmptyAgent)
		return nil, command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyAgent))
	}

	a, err := c.agents.Get(name)
	if err != nil {
		cmdLog.Debug(action, err.Error(), logutil.Agent(name))
		return nil, command.NewNotFoundError(AgentNotFoundErrorCode, err)
	}

	return a, nil
}

func (c *Command) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// writeThread writes the thread with the state the exchange reached.
func (c *Command) writeThread(rw io.Writer, a *agent.Agent, thID string) {
	res := &ThreadResponse{ThreadID: thID}

	if rec, err := a.Store().Get(thID); err == nil {
		res.State = rec.State
	}

	command.WriteNillableResponse(rw, res, logger)
}

func validateOffer(action string, args *IssueOfferArgs) command.Error {
	for _, check := range []struct {
		value, errMsg string
	}{
		{args.MyDID, errEmptyMyDID},
		{args.TheirDID, errEmptyTheirDID},
		{args.CredentialDefinitionID, errEmptyCredDef},
	} {
		if check.value == "" {
			cmdLog.Debug(action, check.errMsg)
			return command.NewValidationError(InvalidRequestErrorCode, errors.New(check.errMsg))
		}
	}

	return nil
}

func validateStandalone(action string, args *SendRequestArgs) command.Error {
	for _, check := range []struct {
		value, errMsg string
	}{
		{args.MyDID, errEmptyMyDID},
		{args.TheirDID, errEmptyTheirDID},
		{args.SchemaID, errEmptySchemaID},
	} {
		if check.value == "" {
			cmdLog.Debug(action, check.errMsg)
			return command.NewValidationError(InvalidRequestErrorCode, errors.New(check.errMsg))
		}
	}

	return nil
}

func offerParams(args *IssueOfferArgs) *protocol.OfferParams {
	return &protocol.OfferParams{
		ThreadID:               args.ThreadID,
		MyDID:                  args.MyDID,
		TheirDID:               args.TheirDID,
		CredentialDefinitionID: args.CredentialDefinitionID,
		Format:                 args.Format,
		Attributes:             args.Attributes,
		Credential:             args.Credential,
		Comment:                args.Comment,
	}
}

// executeError maps protocol failures to their own error codes.
func executeError(code command.Code, err error) command.Error {
	switch {
	case errors.Is(err, exchange.ErrRecordNotFound):
		return command.NewNotFoundError(RecordNotFoundErrorCode, err)
	case errors.Is(err, protocol.ErrConcurrentModification):
		code = ConcurrentModificationErrorCode
	case errors.Is(err, protocol.ErrUnresolvedRequest):
		code = UnresolvedRequestErrorCode
	case errors.Is(err, protocol.ErrCredentialMismatch):
		code = CredentialMismatchErrorCode
	case errors.Is(err, protocol.ErrTransportFailure):
		code = TransportFailureErrorCode
	case errors.Is(err, protocol.ErrAlreadyRevoked):
		code = AlreadyRevokedErrorCode
	case errors.Is(err, protocol.ErrProtocolViolation):
		code = ProtocolViolationErrorCode
	}

	return command.NewExecuteError(code, err)
}
