package payfast

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"slices"
	"strings"
)

const (
	fieldSignature  = "signature"
	fieldPassphrase = "passphrase"
)

// Param is one ordered request parameter.
type Param struct {
	Key   string
	Value string
}

// Params keeps insertion order, which the outbound signature depends on.
type Params []Param

// Add appends key=value unless value is blank.
func (p Params) Add(key, value string) Params {
	if strings.TrimSpace(value) == "" {
		return p
	}
	return append(p, Param{Key: key, Value: value})
}

// Form converts the params to url.Values for posting.
func (p Params) Form() url.Values {
	v := make(url.Values, len(p))
	for _, kv := range p {
		v.Add(kv.Key, kv.Value)
	}
	return v
}

// escapeRFC3986 leaves only unreserved characters as is.
func escapeRFC3986(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Sign computes the outbound request signature.
func Sign(params Params, passphrase string) string {
	var b strings.Builder
	for _, kv := range params {
		if kv.Key == fieldSignature {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(kv.Key)
		b.WriteByte('=')
		b.WriteString(escapeRFC3986(kv.Value))
	}
	if strings.TrimSpace(passphrase) != "" {
		b.WriteString("&" + fieldPassphrase + "=")
		b.WriteString(escapeRFC3986(passphrase))
	}
	return md5Hex(b.String())
}

// SignNotification computes the signature PayFast sends with an ITN.
func SignNotification(form url.Values, passphrase string) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		if k != fieldSignature {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	pairs := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(form.Get(k)))
	}
	if strings.TrimSpace(passphrase) != "" {
		pairs = append(pairs, fieldPassphrase+"="+url.QueryEscape(passphrase))
	}
	return md5Hex(strings.Join(pairs, "&"))
}

// VerifyNotification checks the ITN signature field.
func VerifyNotification(form url.Values, passphrase string) error {
	got := strings.ToLower(strings.TrimSpace(form.Get(fieldSignature)))
	if got == "" {
		return ErrMissingSignature
	}
	want := SignNotification(form, passphrase)
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
