package tls

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// CertBundle is a throwaway CA and a server certificate it signed.
type CertBundle struct {
	CACertPEM []byte
	CertPEM   []byte // leaf followed by the CA
	KeyPEM    []byte // PKCS#1
}

// GenerateSelfSigned creates a CA and a leaf valid for hosts (DNS names or
// IP literals).
func GenerateSelfSigned(hosts ...string) (*CertBundle, error) {
	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Organization: []string{"ncat"}, CommonName: "ncat test CA"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, err
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return nil, err
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	leafTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{Organization: []string{"ncat"}},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			leafTemplate.IPAddresses = append(leafTemplate.IPAddresses, ip)
		} else {
			leafTemplate.DNSNames = append(leafTemplate.DNSNames, h)
		}
	}
	if len(hosts) > 0 {
		leafTemplate.Subject.CommonName = hosts[0]
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, caCert, &key.PublicKey, caKey)
	if err != nil {
		return nil, err
	}

	caPEM := pemEncode("CERTIFICATE", caDER)
	return &CertBundle{
		CACertPEM: caPEM,
		CertPEM:   append(pemEncode("CERTIFICATE", leafDER), caPEM...),
		KeyPEM:    pemEncode("RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key)),
	}, nil
}

// WriteFiles stores the bundle as ca.pem, cert.pem and key.pem in dir.
func (b *CertBundle) WriteFiles(dir string) (ca, cert, key string, err error) {
	ca = filepath.Join(dir, "ca.pem")
	cert = filepath.Join(dir, "cert.pem")
	key = filepath.Join(dir, "key.pem")
	if err = os.WriteFile(ca, b.CACertPEM, 0o644); err != nil {
		return
	}
	if err = os.WriteFile(cert, b.CertPEM, 0o644); err != nil {
		return
	}
	err = os.WriteFile(key, b.KeyPEM, 0o600)
	return
}

func pemEncode(typ string, data []byte) []byte {
	var buf bytes.Buffer
	pem.Encode(&buf, &pem.Block{Type: typ, Bytes: data})
	return buf.Bytes()
}
