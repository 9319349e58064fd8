package payment

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
)

const (
	SignTypeRSA2 = "RSA2" // SHA256withRSA
	SignTypeRSA  = "RSA"  // SHA1withRSA
)

// CanonicalString is the message the gateway signs on notifications: every
// parameter except sign and sign_type, keys sorted ascending, joined as
// key=value with '&'. Values are used as received, without re-encoding.
func CanonicalString(params url.Values) string {
	return canonical(params, false, "sign", "sign_type")
}

// requestContent is the message signed on outbound requests. Only sign is
// left out and empty values are skipped.
func requestContent(params url.Values) string {
	return canonical(params, true, "sign")
}

func canonical(params url.Values, skipEmpty bool, exclude ...string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		skip := false
		for _, ex := range exclude {
			if k == ex {
				skip = true
				break
			}
		}
		if skip || (skipEmpty && params.Get(k) == "") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params.Get(k))
	}
	return b.String()
}

func hashFor(signType string) (crypto.Hash, error) {
	switch signType {
	case SignTypeRSA2:
		return crypto.SHA256, nil
	case SignTypeRSA:
		return crypto.SHA1, nil
	}
	return 0, fmt.Errorf("unsupported sign type %q", signType)
}

func digest(h crypto.Hash, msg string) []byte {
	if h == crypto.SHA1 {
		sum := sha1.Sum([]byte(msg))
		return sum[:]
	}
	sum := sha256.Sum256([]byte(msg))
	return sum[:]
}

func sign(key *rsa.PrivateKey, signType, msg string) (string, error) {
	h, err := hashFor(signType)
	if err != nil {
		return "", err
	}
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, h, digest(h, msg))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func verify(key *rsa.PublicKey, signType, msg, signature string) error {
	if signature == "" {
		return fmt.Errorf("%w: missing sign", apperr.ErrSignature)
	}
	h, err := hashFor(signType)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrSignature, err)
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: sign is not base64", apperr.ErrSignature)
	}
	if err := rsa.VerifyPKCS1v15(key, h, digest(h, msg), sig); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrSignature, err)
	}
	return nil
}

// pemBlock accepts either a full PEM document or the bare base64 body the
// gateway console hands out.
func pemBlock(s, kind string) (*pem.Block, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "-----BEGIN") {
		s = "-----BEGIN " + kind + "-----\n" + s + "\n-----END " + kind + "-----"
	}
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, errors.New("no PEM data found")
	}
	return block, nil
}

func ParsePrivateKey(s string) (*rsa.PrivateKey, error) {
	block, err := pemBlock(s, "PRIVATE KEY")
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key: not an RSA key")
	}
	return key, nil
}

func ParsePublicKey(s string) (*rsa.PublicKey, error) {
	block, err := pemBlock(s, "PUBLIC KEY")
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key: not an RSA key")
	}
	return key, nil
}
