////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

package profile

import (
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/sslcaudit/sslcaudit/certauthority"
	"gitlab.com/sslcaudit/sslcaudit/options"
)

// resolveCNs implements spec.md §4.2 rule 1: if --user-cn is set, use only
// it; otherwise use the CN discovered through --server (best-effort — a
// failed fetch just means that candidate is skipped, since FetchServerCert
// is opportunistic). DefaultCN is always appended unless --no-default-cn,
// and the result is deduplicated while preserving first-seen order so the
// printed matrix stays stable across runs.
func resolveCNs(o options.Options, authority *certauthority.Authority) []string {
	var candidates []string

	if o.UserCN != "" {
		candidates = append(candidates, o.UserCN)
	} else if o.Server != "" {
		cert, err := certauthority.FetchServerCert(o.Server)
		if err != nil {
			jww.WARN.Printf("discover CN from --server %s: %v (continuing without it)", o.Server, err)
		} else {
			candidates = append(candidates, cert.Subject.CommonName)
		}
	}

	if !o.NoDefaultCN {
		candidates = append(candidates, options.DefaultCN)
	}

	seen := make(map[string]bool, len(candidates))
	var cns []string
	for _, cn := range candidates {
		if seen[cn] {
			continue
		}
		seen[cn] = true
		cns = append(cns, cn)
	}
	return cns
}

// signingCA returns the CA profiles should be signed with, preferring a
// user-supplied CA but falling back to a per-CN default CA so that the
// Signed and IMCASigned profile families are still exercised by default
// when the operator hasn't brought their own CA — a deliberate supplement
// to spec.md §4.2, recorded in DESIGN.md.
func signingCA(authority *certauthority.Authority, cn string) (certauthority.CertNKey, error) {
	if ca, ok := authority.UserCA(); ok {
		return ca, nil
	}
	return authority.DefaultCA(cn + "-ca")
}

// BuildPlan enumerates the ordered Plan a client is tested against,
// materializing every profile's certificate chain and key up front so the
// printed matrix and the handshakes that follow are both driven from the
// same, already-resolved material (spec.md §4.2's "applied in this exact
// order so the printed matrix is stable").
func BuildPlan(o options.Options, authority *certauthority.Authority) (Plan, error) {
	var plan Plan

	includeSSLCert := o.Module == "" || o.Module == string(HandlerSSLCert)
	includeSSLProto := o.Module == string(HandlerSSLProto)

	if includeSSLCert {
		if o.HasUserCert() {
			cnk, err := authority.LoadUserCert(o.UserCertPath, o.UserKeyPath)
			if err != nil {
				return nil, err
			}
			plan = append(plan, Profile{
				Spec:        UserSupplied{CN: cnk.Leaf.Subject.CommonName},
				CertNKey:    cnk,
				HandlerKind: HandlerSSLCert,
			})
		}

		for _, cn := range resolveCNs(o, authority) {
			profiles, err := cnProfiles(o, authority, cn)
			if err != nil {
				return nil, err
			}
			plan = append(plan, profiles...)
		}
	}

	if includeSSLProto {
		for _, entry := range protoSweepGrid() {
			csr, err := authority.MakeCSR(options.DefaultCN)
			if err != nil {
				return nil, err
			}
			cnk, err := authority.SelfSign(csr)
			if err != nil {
				return nil, err
			}
			plan = append(plan, Profile{
				Spec:              SSLProtoSpec{Proto: entry.ProtoLabel, Cipher: entry.CipherLabel},
				CertNKey:          cnk,
				HandlerKind:       HandlerSSLProto,
				TLSConfigOverride: entry.Config,
			})
		}
	}

	return plan, nil
}

// cnProfiles builds the self-signed, CA-signed, and intermediate-CA
// profiles for a single CN, per spec.md §4.2 rule 2.
func cnProfiles(o options.Options, authority *certauthority.Authority, cn string) (Plan, error) {
	var plan Plan

	if !o.NoSelfSigned {
		csr, err := authority.MakeCSR(cn)
		if err != nil {
			return nil, err
		}
		cnk, err := authority.SelfSign(csr)
		if err != nil {
			return nil, err
		}
		plan = append(plan, Profile{Spec: SelfSigned{CN: cn}, CertNKey: cnk, HandlerKind: HandlerSSLCert})
	}

	ca, err := signingCA(authority, cn)
	if err != nil {
		return nil, err
	}
	caCN := ca.Leaf.Subject.CommonName

	if !o.NoUserCertSigned {
		csr, err := authority.MakeCSR(cn)
		if err != nil {
			return nil, err
		}
		cnk, err := authority.Sign(csr, ca, nil)
		if err != nil {
			return nil, err
		}
		plan = append(plan, Profile{Spec: Signed{CN: cn, CACN: caCN}, CertNKey: cnk, HandlerKind: HandlerSSLCert})
	}

	for _, variant := range []certauthority.BasicConstraintsVariant{
		certauthority.BCNone,
		certauthority.BCFalse,
		certauthority.BCTrue,
	} {
		imCSR, err := authority.MakeCSR(cn + "-im-ca")
		if err != nil {
			return nil, err
		}
		v := variant
		intermediate, err := authority.Sign(imCSR, ca, &v)
		if err != nil {
			return nil, err
		}

		leafCSR, err := authority.MakeCSR(cn)
		if err != nil {
			return nil, err
		}
		leaf, err := authority.Sign(leafCSR, intermediate, nil)
		if err != nil {
			return nil, err
		}
		plan = append(plan, Profile{
			Spec:        IMCASigned{CN: cn, Variant: variant, RootCACN: caCN},
			CertNKey:    leaf,
			HandlerKind: HandlerSSLCert,
		})
	}

	return plan, nil
}
