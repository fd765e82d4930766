////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

package certauthority

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// rsaKeyBits is the fixed key size spec.md §4.1 calls for.
const rsaKeyBits = 2048

// leafValidity and caValidity mirror the validity windows original_source
// used for generated material: short-lived leaves, longer-lived CAs,
// because every run mints fresh material and nothing needs to outlive it.
const (
	leafValidity = 24 * time.Hour
	caValidity   = 24 * time.Hour * 30
)

// BasicConstraintsVariant selects how the BasicConstraints extension is
// rendered on a synthesized intermediate CA certificate, per spec.md §3's
// IMCASigned profile.
type BasicConstraintsVariant int

const (
	// BCNone omits the BasicConstraints extension entirely.
	BCNone BasicConstraintsVariant = iota
	// BCFalse writes BasicConstraints with CA:FALSE.
	BCFalse
	// BCTrue writes BasicConstraints with CA:TRUE.
	BCTrue
)

func (v BasicConstraintsVariant) String() string {
	switch v {
	case BCNone:
		return "none"
	case BCFalse:
		return "false"
	case BCTrue:
		return "true"
	default:
		return "unknown"
	}
}

// Authority is the CertFactory: it generates keys, signs certificates, and
// keeps track of the CA material a run needs so that a CA keypair is
// generated at most once per run (spec.md §3 invariant).
type Authority struct {
	bag FileBag

	mu         sync.Mutex
	defaultCAs map[string]CertNKey // keyed by CN
	userCA     *CertNKey
	serial     uint64
}

// NewAuthority returns a CertFactory backed by bag for transient PEM
// storage.
func NewAuthority(bag FileBag) *Authority {
	return &Authority{bag: bag, defaultCAs: make(map[string]CertNKey)}
}

// persist writes cnk's leaf certificate and key to the bag as PEMs and
// returns cnk with LeafPath/KeyPath populated, per spec.md §3's invariant
// that every CertNKey is "persisted to the file bag as PEMs for the
// duration of a run".
func (a *Authority) persist(nameHint string, cnk CertNKey) (CertNKey, error) {
	leafPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cnk.Leaf.Raw})
	leafPath, err := a.bag.WriteTemp(nameHint+"-cert", leafPEM)
	if err != nil {
		return CertNKey{}, errors.Wrapf(err, "persist certificate for %q", nameHint)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(cnk.Key)})
	keyPath, err := a.bag.WriteTemp(nameHint+"-key", keyPEM)
	if err != nil {
		return CertNKey{}, errors.Wrapf(err, "persist key for %q", nameHint)
	}

	cnk.LeafPath = leafPath
	cnk.KeyPath = keyPath
	return cnk, nil
}

// GenerateKeyPair produces a fresh 2048-bit RSA key pair.
func (a *Authority) GenerateKeyPair() (KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return KeyPair{}, errors.Wrap(err, "generate RSA key pair")
	}
	return KeyPair{Private: key}, nil
}

// MakeCSR builds an X.509 certificate request with a single CN, generating
// a new key pair for it.
func (a *Authority) MakeCSR(cn string) (CSR, error) {
	kp, err := a.GenerateKeyPair()
	if err != nil {
		return CSR{}, err
	}

	template := &x509.CertificateRequest{
		Subject:            pkix.Name{CommonName: cn},
		SignatureAlgorithm: x509.SHA256WithRSA,
	}
	der, err := x509.CreateCertificateRequest(rand.Reader, template, kp.Private)
	if err != nil {
		return CSR{}, errors.Wrapf(err, "create CSR for CN %q", cn)
	}
	req, err := x509.ParseCertificateRequest(der)
	if err != nil {
		return CSR{}, errors.Wrap(err, "parse freshly created CSR")
	}
	return CSR{Request: req, Key: kp.Private}, nil
}

func (a *Authority) nextSerial() (*big.Int, error) {
	a.mu.Lock()
	a.serial++
	n := a.serial
	a.mu.Unlock()

	// 128 bits of randomness plus a run-local counter, so serials are
	// unique within a run even under concurrent profile construction,
	// mirroring the random-serial approach used throughout the pack
	// (see other_examples' randomSerial helpers).
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	r, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, errors.Wrap(err, "generate certificate serial")
	}
	return r.Add(r, big.NewInt(int64(n))), nil
}

// SelfSign issues a self-signed leaf: issuer == subject, as spec.md §4.1
// describes.
func (a *Authority) SelfSign(csr CSR) (CertNKey, error) {
	serial, err := a.nextSerial()
	if err != nil {
		return CertNKey{}, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               csr.Request.Subject,
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(leafValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  false,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, csr.Key.Public(), csr.Key)
	if err != nil {
		return CertNKey{}, errors.Wrap(err, "self-sign certificate")
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return CertNKey{}, errors.Wrap(err, "parse self-signed certificate")
	}
	return a.persist(csr.Request.Subject.CommonName+"-selfsigned", CertNKey{Leaf: leaf, Key: csr.Key})
}

// Sign issues a certificate for csr using issuer's key. When bc is nil, the
// issued certificate is a normal end-entity leaf. When bc is non-nil, the
// issued certificate is built as a CA (an intermediate), with the
// BasicConstraints extension rendered per the given variant — this is how
// spec.md §4.1's IMCASigned variants (none/false/true) get constructed.
//
// The resulting chain is issuer.Chain followed by issuer.Leaf, per spec.md
// §4.1: "writes chain = issuer.chain ++ [issuer.cert]".
func (a *Authority) Sign(csr CSR, issuer CertNKey, bc *BasicConstraintsVariant) (CertNKey, error) {
	serial, err := a.nextSerial()
	if err != nil {
		return CertNKey{}, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      csr.Request.Subject,
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(leafValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	if bc == nil {
		template.BasicConstraintsValid = true
		template.IsCA = false
	} else {
		switch *bc {
		case BCNone:
			template.BasicConstraintsValid = false
		case BCFalse:
			template.BasicConstraintsValid = true
			template.IsCA = false
		case BCTrue:
			template.BasicConstraintsValid = true
			template.IsCA = true
			template.KeyUsage |= x509.KeyUsageCertSign | x509.KeyUsageCRLSign
		}
		// An intermediate is produced from a key pair baked into the CSR,
		// not a throwaway leaf key, since it must be able to sign its own
		// children later in the same plan.
	}

	der, err := x509.CreateCertificate(rand.Reader, template, issuer.Leaf, csr.Key.Public(), issuer.Key)
	if err != nil {
		return CertNKey{}, errors.Wrapf(err, "sign certificate for CN %q", csr.Request.Subject.CommonName)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return CertNKey{}, errors.Wrap(err, "parse signed certificate")
	}

	chain := make([]*x509.Certificate, 0, len(issuer.Chain)+1)
	chain = append(chain, issuer.Chain...)
	chain = append(chain, issuer.Leaf)

	return a.persist(csr.Request.Subject.CommonName+"-signed", CertNKey{Leaf: leaf, Key: csr.Key, Chain: chain})
}

// DefaultCA returns the throwaway CA used to sign profiles when the user
// hasn't supplied one with --user-ca-cert/--user-ca-key. It is generated at
// most once per CN, per spec.md §3's CA-generated-once invariant.
func (a *Authority) DefaultCA(cn string) (CertNKey, error) {
	a.mu.Lock()
	if existing, ok := a.defaultCAs[cn]; ok {
		a.mu.Unlock()
		return existing, nil
	}
	a.mu.Unlock()

	ca, err := a.generateCA(cn)
	if err != nil {
		return CertNKey{}, err
	}

	a.mu.Lock()
	a.defaultCAs[cn] = ca
	a.mu.Unlock()
	return ca, nil
}

func (a *Authority) generateCA(cn string) (CertNKey, error) {
	key, err := a.GenerateKeyPair()
	if err != nil {
		return CertNKey{}, err
	}
	serial, err := a.nextSerial()
	if err != nil {
		return CertNKey{}, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(caValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key.Private)
	if err != nil {
		return CertNKey{}, errors.Wrapf(err, "generate default CA for CN %q", cn)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return CertNKey{}, errors.Wrap(err, "parse generated CA")
	}
	return a.persist(cn+"-ca", CertNKey{Leaf: leaf, Key: key.Private})
}

// LoadUserCA loads a user-supplied CA certificate and key from disk
// (--user-ca-cert/--user-ca-key), expanding a leading ~ the way the teacher
// expands config paths.
func (a *Authority) LoadUserCA(certPath, keyPath string) (CertNKey, error) {
	certPath, err := homedir.Expand(certPath)
	if err != nil {
		return CertNKey{}, errors.Wrapf(err, "expand user CA cert path %q", certPath)
	}
	keyPath, err = homedir.Expand(keyPath)
	if err != nil {
		return CertNKey{}, errors.Wrapf(err, "expand user CA key path %q", keyPath)
	}

	certPEM, err := readPEMFile(certPath)
	if err != nil {
		return CertNKey{}, errors.Wrapf(err, "read user CA cert %q", certPath)
	}
	keyPEM, err := readPEMFile(keyPath)
	if err != nil {
		return CertNKey{}, errors.Wrapf(err, "read user CA key %q", keyPath)
	}

	cert, err := x509.ParseCertificate(certPEM.Bytes)
	if err != nil {
		return CertNKey{}, errors.Wrap(err, "parse user CA certificate")
	}

	key, err := parseRSAKey(keyPEM.Bytes)
	if err != nil {
		return CertNKey{}, errors.Wrap(err, "parse user CA key")
	}

	jww.INFO.Printf("loaded user CA %q from %s", cert.Subject.CommonName, certPath)
	ca, err := a.persist(cert.Subject.CommonName+"-user-ca", CertNKey{Leaf: cert, Key: key})
	if err != nil {
		return CertNKey{}, err
	}
	a.mu.Lock()
	a.userCA = &ca
	a.mu.Unlock()
	return ca, nil
}

// LoadUserCert loads a fixed operator-supplied leaf certificate and key
// from disk (--user-cert/--user-key) to be presented verbatim as one
// profile, per spec.md §6.
func (a *Authority) LoadUserCert(certPath, keyPath string) (CertNKey, error) {
	certPath, err := homedir.Expand(certPath)
	if err != nil {
		return CertNKey{}, errors.Wrapf(err, "expand user cert path %q", certPath)
	}
	keyPath, err = homedir.Expand(keyPath)
	if err != nil {
		return CertNKey{}, errors.Wrapf(err, "expand user key path %q", keyPath)
	}

	certPEM, err := readPEMFile(certPath)
	if err != nil {
		return CertNKey{}, errors.Wrapf(err, "read user cert %q", certPath)
	}
	keyPEM, err := readPEMFile(keyPath)
	if err != nil {
		return CertNKey{}, errors.Wrapf(err, "read user key %q", keyPath)
	}

	cert, err := x509.ParseCertificate(certPEM.Bytes)
	if err != nil {
		return CertNKey{}, errors.Wrap(err, "parse user certificate")
	}
	key, err := parseRSAKey(keyPEM.Bytes)
	if err != nil {
		return CertNKey{}, errors.Wrap(err, "parse user key")
	}
	jww.INFO.Printf("loaded user cert %q from %s", cert.Subject.CommonName, certPath)
	return a.persist(cert.Subject.CommonName+"-user-cert", CertNKey{Leaf: cert, Key: key})
}

// UserCA returns the previously loaded user CA, if any.
func (a *Authority) UserCA() (CertNKey, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.userCA == nil {
		return CertNKey{}, false
	}
	return *a.userCA, true
}

// FetchServerCert opportunistically connects to hostport and returns the
// leaf certificate it presents, used only to copy a CN for --server, per
// spec.md §4.1. Failure here is not fatal to the run; callers fall back to
// the default CN.
func FetchServerCert(hostport string) (*x509.Certificate, error) {
	hostport, err := SplitHostPort(hostport)
	if err != nil {
		return nil, err
	}
	conn, err := tls.Dial("tcp", hostport, &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		return nil, errors.Wrapf(err, "fetch server certificate from %s", hostport)
	}
	defer conn.Close()

	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, errors.Errorf("server %s presented no certificate", hostport)
	}
	return state.PeerCertificates[0], nil
}

func readPEMFile(path string) (*pem.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	return block, nil
}

func parseRSAKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	generic, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, errors.Wrap(err, "parse PKCS#1/PKCS#8 private key")
	}
	key, ok := generic.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("user CA key is not RSA")
	}
	return key, nil
}

// SplitHostPort normalizes a --server value into a host:port pair,
// defaulting to port 443, mirroring original_source's handling of the
// --server flag.
func SplitHostPort(hostport string) (string, error) {
	if _, _, err := net.SplitHostPort(hostport); err == nil {
		return hostport, nil
	}
	return net.JoinHostPort(hostport, "443"), nil
}
