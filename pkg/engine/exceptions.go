package engine

import (
	"go.uber.org/zap"

	"linkvm/pkg/errors"
)

// ThrowReferenceError raises a ReferenceError at file:line:column.
func (e *Engine) ThrowReferenceError(msg, file string, line, column int) {
	e.throw(&errors.ReferenceError{
		Position: errors.Position{File: file, Line: line, Column: column},
		Msg:      msg,
	})
}

// ThrowTypeError raises a TypeError.
func (e *Engine) ThrowTypeError(msg string) {
	e.throw(&errors.TypeError{Msg: msg})
}

// throw records err as the pending exception. While one is pending further
// throws are secondary failures of the same unwind and are dropped.
func (e *Engine) throw(err error) {
	if e.exception != nil {
		e.log.Debug("dropping secondary exception", zap.Error(err))
		return
	}
	e.exception = err
}

func (e *Engine) HasException() bool { return e.exception != nil }

// Exception returns the pending exception without clearing it.
func (e *Engine) Exception() error { return e.exception }

// CatchException returns and clears the pending exception.
func (e *Engine) CatchException() error {
	err := e.exception
	e.exception = nil
	return err
}
