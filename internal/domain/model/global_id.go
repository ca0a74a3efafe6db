package model

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const (
	GlobalTypePayment  = "Payment"
	GlobalTypeCheckout = "Checkout"
)

// ToGlobalID encodes an opaque platform identifier as base64("Type:id").
func ToGlobalID(typ string, id any) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%v", typ, id)))
}

// FromGlobalID decodes a global id and returns its type and raw id.
func FromGlobalID(gid string) (string, string, error) {
	raw, err := base64.StdEncoding.DecodeString(gid)
	if err != nil {
		return "", "", fmt.Errorf("decode global id: %w", err)
	}
	typ, id, ok := strings.Cut(string(raw), ":")
	if !ok || typ == "" || id == "" {
		return "", "", fmt.Errorf("malformed global id %q", gid)
	}
	return typ, id, nil
}

// PaymentPKFromGlobalID returns the numeric payment key behind a Payment global id.
func PaymentPKFromGlobalID(gid string) (int64, error) {
	typ, id, err := FromGlobalID(gid)
	if err != nil {
		return 0, err
	}
	if typ != GlobalTypePayment {
		return 0, fmt.Errorf("global id type %q is not %s", typ, GlobalTypePayment)
	}
	return strconv.ParseInt(id, 10, 64)
}
