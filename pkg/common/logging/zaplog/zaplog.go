/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package zaplog provides a zap backed logger provider for the aries log component.
//
// Install it once, before the first log output:
//
//	log.Initialize(zaplog.New())
//
// Module levels set with log.SetLevel keep applying on top of it.
package zaplog

import (
	"os"

	spilog "github.com/hyperledger/aries-framework-go/spi/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const moduleKey = "module"

// Provider creates JSON loggers, one named logger per module.
type Provider struct {
	base *zap.Logger
}

// Option is a provider option.
type Option func(opts *options)

type options struct {
	out zapcore.WriteSyncer
}

// WithOutput sets the output of the loggers.
func WithOutput(out zapcore.WriteSyncer) Option {
	return func(opts *options) {
		opts.out = out
	}
}

// New returns the zap logger provider.
func New(opts ...Option) *Provider {
	o := &options{out: zapcore.Lock(os.Stdout)}

	for _, opt := range opts {
		opt(o)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	// levels are filtered by the aries module levels
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), o.out, zapcore.DebugLevel)

	return &Provider{base: zap.New(core)}
}

// GetLogger returns the logger of module.
func (p *Provider) GetLogger(module string) spilog.Logger {
	return p.base.With(zap.String(moduleKey, module)).Sugar()
}

// Sync flushes buffered log entries.
func (p *Provider) Sync() error {
	return p.base.Sync()
}
