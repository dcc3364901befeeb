/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/internal/cmdutil"
	"github.com/hyperledger/aries-issuecredential-go/pkg/controller/rest"
)

// agentQueryParam restricts a WebSocket client to the events of one agent.
const agentQueryParam = "agent"

type wsSubscriber struct {
	conn  *websocket.Conn
	agent string
}

func (s *wsSubscriber) wants(agent string) bool {
	return s.agent == "" || s.agent == agent
}

// WSNotifier pushes events to the WebSocket clients connected on its path.
// A client connecting with ?agent=<name> only receives the events of that agent.
type WSNotifier struct {
	conns     []*wsSubscriber
	connsLock sync.RWMutex
	handlers  []rest.Handler
}

// NewWSNotifier returns a WSNotifier accepting clients on path.
func NewWSNotifier(path string) *WSNotifier {
	n := &WSNotifier{}
	n.handlers = []rest.Handler{cmdutil.NewHTTPHandler(path, http.MethodGet, n.handleWS)}

	return n
}

// Notify writes the message to every interested client and returns the errors of all of them.
func (n *WSNotifier) Notify(topic string, message []byte) error {
	if topic == "" {
		return errors.New(emptyTopicErrMsg)
	}

	if len(message) == 0 {
		return errors.New(emptyMessageErrMsg)
	}

	topicMsg, err := PrepareTopicMessage(topic, message)
	if err != nil {
		return fmt.Errorf(failedToCreateErrMsg, err)
	}

	agent := agentOf(message)

	var allErrs error

	for _, sub := range n.subscribers() {
		if !sub.wants(agent) {
			continue
		}

		allErrs = appendError(allErrs, writeWS(sub.conn, topicMsg))
	}

	return allErrs
}

// GetRESTHandlers returns the WebSocket endpoint.
func (n *WSNotifier) GetRESTHandlers() []rest.Handler {
	return n.handlers
}

func (n *WSNotifier) subscribers() []*wsSubscriber {
	n.connsLock.RLock()
	defer n.connsLock.RUnlock()

	return append([]*wsSubscriber(nil), n.conns...)
}

func agentOf(message []byte) string {
	var e struct {
		Agent string `json:"agent"`
	}

	if err := json.Unmarshal(message, &e); err != nil {
		return ""
	}

	return e.Agent
}

func writeWS(conn *websocket.Conn, message []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), notificationSendTimeout)
	defer cancel()

	return conn.Write(ctx, websocket.MessageText, message)
}

func (n *WSNotifier) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		logger.Infof("failed to upgrade the websocket notification connection : %v", err)

		return
	}

	sub := &wsSubscriber{conn: conn, agent: r.URL.Query().Get(agentQueryParam)}

	logger.Debugf("websocket notification client connected, agent=[%s]", sub.agent)

	n.connsLock.Lock()
	n.conns = append(n.conns, sub)
	n.connsLock.Unlock()

	defer n.remove(sub)

	// clients only listen, anything they send ends the subscription
	_, _, err = conn.Reader(context.Background())
	if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		logger.Infof("reading from websocket notification client failed: %v", err)
	}

	if err = conn.Close(websocket.StatusPolicyViolation, "unexpected message"); err != nil {
		logger.Debugf("closing websocket notification client failed: %v", err)
	}
}

func (n *WSNotifier) remove(sub *wsSubscriber) {
	n.connsLock.Lock()
	defer n.connsLock.Unlock()

	for i, s := range n.conns {
		if s == sub {
			n.conns = append(n.conns[:i], n.conns[i+1:]...)

			break
		}
	}

	logger.Debugf("websocket notification client dropped, agent=[%s]", sub.agent)
}
