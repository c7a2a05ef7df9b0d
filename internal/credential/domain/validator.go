package domain

import (
	"context"
	"errors"
	"strings"
)

type Method string

const (
	MethodQR        Method = "qr"
	MethodBluetooth Method = "bluetooth"
	MethodFace      Method = "face"
)

func ParseMethod(raw string) Method {
	return Method(strings.ToLower(strings.TrimSpace(raw)))
}

// Claim is one presented credential. Only the fields of the claimed method
// are read.
type Claim struct {
	MemberID   string
	FacilityID string
	GateID     string

	QRToken string

	DeviceID       string
	SignalStrength *int

	ImageBase64 string
}

// Validator decides whether a credential is currently valid. An invalid
// credential is (false, nil); errors mean a dependency failed.
type Validator interface {
	Method() Method
	Validate(ctx context.Context, claim Claim) (bool, error)
	// Detail is the access-log text for an outcome.
	Detail(valid bool) string
}

var ErrUnsupportedMethod = errors.New("unsupported_method")
