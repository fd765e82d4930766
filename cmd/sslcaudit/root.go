////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"github.com/spf13/cobra"

	"gitlab.com/sslcaudit/sslcaudit/certauthority"
	"gitlab.com/sslcaudit/sslcaudit/controller"
	"gitlab.com/sslcaudit/sslcaudit/options"
	"gitlab.com/sslcaudit/sslcaudit/sink"
)

// exitConfig/exitInternal are the nonzero exit codes spec.md §6 defines.
const (
	exitConfig   = 1
	exitInternal = 2
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sslcaudit",
		Short: "Audits TLS clients' certificate validation behavior",
		Long: "sslcaudit listens for TLS connections and walks each client through a " +
			"plan of certificate and protocol profiles, reporting how the client " +
			"reacted to each one.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}

	flags := cmd.Flags()
	flags.StringP("listen", "l", options.Defaults().Listen, "bind address [HOST:]PORT")
	flags.StringP("module", "m", "", "restrict to one audit module (sslcert|sslproto); default sslcert only")
	flags.IntP("num-clients", "c", options.Defaults().NumClients, "stop after N clients complete the plan")
	flags.StringP("test-name", "N", "", "free-form test label included in each result line")
	flags.StringP("debug-level", "d", options.Defaults().DebugLevel, "log verbosity (trace/debug/info/warn/error/fatal)")

	flags.String("user-cn", "", "override CN on generated leaves")
	flags.String("server", "", "pull CN from this server's certificate")

	flags.String("user-cert", "", "path to a fixed certificate presented verbatim as one profile")
	flags.String("user-key", "", "path to the key for --user-cert")

	flags.String("user-ca-cert", "", "CA certificate used to sign generated leaves and intermediates")
	flags.String("user-ca-key", "", "key for --user-ca-cert")

	flags.Bool("no-default-cn", false, "do not test the built-in default CN")
	flags.Bool("no-self-signed", false, "do not emit self-signed profiles")
	flags.Bool("no-user-cert-signed", false, "do not emit profiles signed directly by the CA")

	flags.Duration("handshake-timeout", options.Defaults().HandshakeTimeout, "per-connection TLS handshake timeout")
	flags.Duration("read-timeout", options.Defaults().ReadTimeout, "post-handshake probe read timeout")
	flags.Duration("join-timeout", options.Defaults().JoinTimeout, "how long stop() waits for workers to finish")

	if err := viper.BindPFlags(flags); err != nil {
		jww.FATAL.Fatalf("bind flags: %v", err)
	}

	return cmd
}

func optionsFromViper() options.Options {
	o := options.Defaults()
	o.Listen = viper.GetString("listen")
	o.Module = viper.GetString("module")
	o.NumClients = viper.GetInt("num-clients")
	o.TestName = viper.GetString("test-name")
	o.DebugLevel = viper.GetString("debug-level")
	o.UserCN = viper.GetString("user-cn")
	o.Server = viper.GetString("server")
	o.UserCertPath = viper.GetString("user-cert")
	o.UserKeyPath = viper.GetString("user-key")
	o.UserCACertPath = viper.GetString("user-ca-cert")
	o.UserCAKeyPath = viper.GetString("user-ca-key")
	o.NoDefaultCN = viper.GetBool("no-default-cn")
	o.NoSelfSigned = viper.GetBool("no-self-signed")
	o.NoUserCertSigned = viper.GetBool("no-user-cert-signed")
	o.HandshakeTimeout = viper.GetDuration("handshake-timeout")
	o.ReadTimeout = viper.GetDuration("read-timeout")
	o.JoinTimeout = viper.GetDuration("join-timeout")
	return o
}

func setLogLevel(level string) {
	switch level {
	case "trace":
		jww.SetLogThreshold(jww.LevelTrace)
		jww.SetStdoutThreshold(jww.LevelTrace)
	case "debug":
		jww.SetLogThreshold(jww.LevelDebug)
		jww.SetStdoutThreshold(jww.LevelDebug)
	case "warn":
		jww.SetStdoutThreshold(jww.LevelWarn)
	case "error":
		jww.SetStdoutThreshold(jww.LevelError)
	case "fatal":
		jww.SetStdoutThreshold(jww.LevelFatal)
	default:
		jww.SetStdoutThreshold(jww.LevelInfo)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	opts := optionsFromViper()
	setLogLevel(opts.DebugLevel)

	if err := opts.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "sslcaudit: configuration error: %v\n", err)
		os.Exit(exitConfig)
	}

	bag, err := certauthority.NewFileBag(opts.FileBagDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sslcaudit: file bag: %v\n", err)
		os.Exit(exitConfig)
	}
	defer bag.Close()

	authority := certauthority.NewAuthority(bag)
	s := sink.NewLineSink(os.Stdout, opts.TestName)
	ctl := controller.New(opts, authority, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctl.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sslcaudit: startup error: %v\n", err)
		os.Exit(exitConfig)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctl.Done():
	case <-sigCh:
		jww.INFO.Printf("received interrupt, stopping")
	}
	ctl.Stop()

	return nil
}
