////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

// Package options holds the external CLI contract described in spec.md §6.
// The actual flag parser lives in cmd/sslcaudit; this package only defines
// the shape of the options and their defaults, so the core never depends
// on a specific flag library.
package options

import (
	"time"

	"github.com/pkg/errors"
)

// DefaultCN is the CN used when the user hasn't supplied one and
// --no-default-cn wasn't given, per spec.md §4.2 rule 1.
const DefaultCN = "nonexistent.gremwell.com"

// Options is the fully-resolved set of knobs spec.md §6 lists.
type Options struct {
	// Listen is the [HOST:]PORT to bind, e.g. "0.0.0.0:8443".
	Listen string
	// Module restricts the plan to one audit module ("sslcert" or
	// "sslproto"); empty means all modules spec.md's default plan wires
	// in (see profile.BuildPlan).
	Module string
	// NumClients stops the run after this many distinct clients complete
	// the plan.
	NumClients int
	// TestName is a free-form label included in each result line.
	TestName string
	// DebugLevel is one of jwalterweatherman's level names
	// (trace/debug/info/warn/error/fatal).
	DebugLevel string

	UserCN string
	Server string

	UserCertPath string
	UserKeyPath  string

	UserCACertPath string
	UserCAKeyPath  string

	NoDefaultCN      bool
	NoSelfSigned     bool
	NoUserCertSigned bool

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	JoinTimeout      time.Duration

	// FileBagDir is the parent directory the temp-file bag creates its
	// private subdirectory under; empty means the system temp dir.
	FileBagDir string
}

// Defaults returns an Options populated with spec.md's defaults.
func Defaults() Options {
	return Options{
		Listen:           "0.0.0.0:8443",
		NumClients:       1,
		DebugLevel:       "info",
		HandshakeTimeout: 5 * time.Second,
		ReadTimeout:      5 * time.Second,
		JoinTimeout:      10 * time.Second,
	}
}

// Validate checks the configuration-error class of failures spec.md §7
// calls out: these must fail fast before the listener starts.
func (o Options) Validate() error {
	if o.Listen == "" {
		return errors.New("listen address must not be empty")
	}
	if o.NumClients <= 0 {
		return errors.New("-c (client count) must be positive")
	}
	if (o.UserCertPath == "") != (o.UserKeyPath == "") {
		return errors.New("--user-cert and --user-key must be given together")
	}
	if (o.UserCACertPath == "") != (o.UserCAKeyPath == "") {
		return errors.New("--user-ca-cert and --user-ca-key must be given together")
	}
	if o.Module != "" && o.Module != "sslcert" && o.Module != "sslproto" {
		return errors.Errorf("unknown module %q (want sslcert or sslproto)", o.Module)
	}
	return nil
}

// HasUserCA reports whether a user CA was supplied.
func (o Options) HasUserCA() bool {
	return o.UserCACertPath != "" && o.UserCAKeyPath != ""
}

// HasUserCert reports whether a fixed user cert+key profile was supplied.
func (o Options) HasUserCert() bool {
	return o.UserCertPath != "" && o.UserKeyPath != ""
}
