package tls

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"

	"ncat/transport"
)

var (
	errInvalidCert = errors.New("invalid cert")
	errInvalidKey  = errors.New("invalid key")
)

type TLSServerConfig struct {
	CAFile   string // optional, only feeds ClientCAs
	CertFile string
	KeyFile  string
}

// ToTlsConfig loads the certificate chain and the first RSA key. Client
// certificates are never requested.
func (c *TLSServerConfig) ToTlsConfig() (*tls.Config, error) {
	if c.CertFile == "" || c.KeyFile == "" {
		return nil, transport.TLSError("load credentials", "", errors.New("certificate and key are required"))
	}

	certs, err := LoadCertificates(c.CertFile)
	if err != nil {
		return nil, err
	}
	keys, err := LoadRSAKeys(c.KeyFile)
	if err != nil {
		return nil, err
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: certs,
			PrivateKey:  keys[0],
		}},
		ClientAuth: tls.NoClientCert,
	}
	if c.CAFile != "" {
		pool, err := RootStore(c.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
	}
	return cfg, nil
}

type TLSClientConfig struct {
	CAFile string
	// ServerName overrides the name checked against the server certificate.
	// Empty means the dialed host.
	ServerName string
}

func (c *TLSClientConfig) ToTlsConfig(host string) (*tls.Config, error) {
	pool, err := RootStore(c.CAFile)
	if err != nil {
		return nil, err
	}
	serverName := c.ServerName
	if serverName == "" {
		serverName = host
	}
	return &tls.Config{
		RootCAs:    pool,
		ServerName: serverName,
	}, nil
}

// RootStore returns a fresh pool of the host's public roots plus every
// certificate in caFile. An empty caFile adds nothing.
func RootStore(caFile string) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if caFile == "" {
		return pool, nil
	}

	certs, err := LoadCertificates(caFile)
	if err != nil {
		return nil, err
	}
	for _, der := range certs {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, transport.TLSError("add ca", caFile, err)
		}
		pool.AddCert(cert)
	}
	return pool, nil
}

// LoadCertificates returns the DER bytes of every CERTIFICATE block in path.
func LoadCertificates(path string) ([][]byte, error) {
	blocks, err := readPEM(path)
	if err != nil {
		return nil, err
	}
	var certs [][]byte
	for _, block := range blocks {
		if block.Type == "CERTIFICATE" {
			certs = append(certs, block.Bytes)
		}
	}
	if len(certs) == 0 {
		return nil, transport.TLSError("load certs", path, errInvalidCert)
	}
	return certs, nil
}

// LoadRSAKeys only understands PKCS#1 "RSA PRIVATE KEY" blocks. Other key
// types are skipped, so an EC-only file fails with "invalid key".
func LoadRSAKeys(path string) ([]*rsa.PrivateKey, error) {
	blocks, err := readPEM(path)
	if err != nil {
		return nil, err
	}
	var keys []*rsa.PrivateKey
	for _, block := range blocks {
		if block.Type != "RSA PRIVATE KEY" {
			continue
		}
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, transport.TLSError("load keys", path, errInvalidKey)
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, transport.TLSError("load keys", path, errInvalidKey)
	}
	return keys, nil
}

func readPEM(path string) ([]*pem.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, transport.TLSError("read", path, err)
	}
	var blocks []*pem.Block
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}
