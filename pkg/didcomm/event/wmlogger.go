/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package event

import (
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/hyperledger/aries-framework-go/component/log"
	spilog "github.com/hyperledger/aries-framework-go/spi/log"
	"golang.org/x/exp/slices"
)

const wmModule = "watermill"

// wmLogger implements the watermill logger adapter on top of the aries logger.
type wmLogger struct {
	logger *log.Log
	fields watermill.LogFields
}

func newWMLogger() *wmLogger {
	return &wmLogger{logger: log.New(wmModule)}
}

func (l *wmLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Errorf("%s: %s%s", msg, err, l.asString(fields))
}

// Info is logged at debug level; watermill is chatty.
func (l *wmLogger) Info(msg string, fields watermill.LogFields) {
	if !log.IsEnabledFor(wmModule, spilog.DEBUG) {
		return
	}

	l.logger.Infof("%s%s", msg, l.asString(fields))
}

func (l *wmLogger) Debug(msg string, fields watermill.LogFields) {
	if !log.IsEnabledFor(wmModule, spilog.DEBUG) {
		return
	}

	l.logger.Debugf("%s%s", msg, l.asString(fields))
}

func (l *wmLogger) Trace(msg string, fields watermill.LogFields) {
	l.Debug(msg, fields)
}

func (l *wmLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &wmLogger{
		logger: l.logger,
		fields: l.fields.Add(fields),
	}
}

func (l *wmLogger) asString(additional watermill.LogFields) string {
	all := l.fields.Add(additional)
	if len(all) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(all))

	for k, v := range all {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}

	slices.Sort(pairs)

	return " - Fields: " + strings.Join(pairs, ", ")
}
