package bridge

import (
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/c2pa-bridge/errors"
	"github.com/wippyai/c2pa-bridge/resource"
)

// Status codes returned by operations with an integer result.
const (
	OK     = 0
	Failed = -1
)

// Every boundary operation funnels its outcome through the helpers below.
// They are the only place an error becomes a sentinel, and the only writers
// of the last-error channel.

func (a *API) fail(op string, err error) {
	a.errs.Set(a.scope(), err)
	a.log.Debug("boundary call failed",
		zap.String("op", op),
		zap.String("kind", string(errors.KindOf(err))),
		zap.Error(err))
}

// Record stores err as the calling scope's last error. Boundary adapters
// use it for failures they detect before an operation runs, such as foreign
// memory they cannot read.
func (a *API) Record(op string, err error) {
	if err != nil {
		a.fail(op, err)
	}
}

func (a *API) handle(op string, h resource.Handle, err error) resource.Handle {
	if err != nil {
		a.fail(op, err)
		return 0
	}
	return h
}

func (a *API) status(op string, err error) int {
	if err != nil {
		a.fail(op, err)
		return Failed
	}
	return OK
}

// text fails for strings a C caller could not read back in full.
func (a *API) text(op, s string, err error) (string, bool) {
	if err == nil && strings.IndexByte(s, 0) >= 0 {
		err = errors.InvalidText(errors.PhaseBoundary, op, []byte(s))
	}
	if err != nil {
		a.fail(op, err)
		return "", false
	}
	return s, true
}

func (a *API) bytes(op string, data []byte, err error) ([]byte, int) {
	if err != nil {
		a.fail(op, err)
		return nil, Failed
	}
	return data, OK
}

// checkText validates text arriving from a foreign caller.
func checkText(op string, values ...string) error {
	for _, v := range values {
		if strings.IndexByte(v, 0) >= 0 {
			return errors.InvalidText(errors.PhaseBoundary, op, []byte(v))
		}
	}
	return nil
}
