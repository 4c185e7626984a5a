package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/c2pa-bridge/signer"
)

// signerFile is the YAML signer configuration. Relative paths are resolved
// against the directory of the file.
type signerFile struct {
	Alg         string `yaml:"alg"`
	SignCert    string `yaml:"sign_cert"`
	PrivateKey  string `yaml:"private_key"`
	TSAURL      string `yaml:"tsa_url"`
	ReserveSize int    `yaml:"reserve_size"`
	OCSP        string `yaml:"ocsp"`
}

func loadSigner(path string) (*signer.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signer config: %w", err)
	}
	var f signerFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse signer config %s: %w", path, err)
	}
	if f.SignCert == "" || f.PrivateKey == "" {
		return nil, fmt.Errorf("signer config %s: sign_cert and private_key are required", path)
	}

	dir := filepath.Dir(path)
	certs, err := readRelative(dir, f.SignCert)
	if err != nil {
		return nil, err
	}
	keyPEM, err := readRelative(dir, f.PrivateKey)
	if err != nil {
		return nil, err
	}
	var ocspDER []byte
	if f.OCSP != "" {
		if ocspDER, err = readRelative(dir, f.OCSP); err != nil {
			return nil, err
		}
	}

	alg, err := signer.ParseAlgorithm(f.Alg)
	if err != nil {
		return nil, err
	}
	cb, err := signer.LoadKeyCallback(keyPEM, alg)
	if err != nil {
		return nil, err
	}
	return signer.NewWithConfig(cb, signer.Config{
		Algorithm:        f.Alg,
		Certs:            certs,
		TimeAuthorityURL: f.TSAURL,
		ReserveSize:      f.ReserveSize,
		OCSP:             ocspDER,
	})
}

func readRelative(dir, name string) ([]byte, error) {
	if !filepath.IsAbs(name) {
		name = filepath.Join(dir, name)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}
