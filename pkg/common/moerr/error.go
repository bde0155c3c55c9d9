// Copyright 2021 - 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moerr

import (
	"errors"
	"fmt"
)

const (
	// 0 - 99 is OK.  They do not contain info, and are special handled
	// using a static instance, no alloc.
	Ok uint16 = 0

	// Group 1: Internal errors
	ErrStart    uint16 = 20100
	ErrInternal uint16 = 20101
	ErrNYI      uint16 = 20102

	// Group 2: numeric and functions
	ErrOutOfRange uint16 = 20201
	ErrInvalidArg uint16 = 20203

	// Group 3: invalid input
	ErrInvalidInput uint16 = 20301

	// Group 4: unexpected state and io errors
	ErrInvalidState  uint16 = 20400
	ErrUnexpectedEOF uint16 = 20407
	ErrShortBuffer   uint16 = 20414

	// Group 9: runtime filter
	ErrUnsupportedDataType uint16 = 20905
	ErrUnsupportedJoinMode uint16 = 20907

	// ErrEnd, the max value of MOErrorCode
	ErrEnd uint16 = 65535
)

var errorMsgRefer = map[uint16]string{
	ErrStart:               "internal error: error code start",
	ErrInternal:            "internal error: %s",
	ErrNYI:                 "%s is not yet implemented",
	ErrOutOfRange:          "data out of range: data type %s, %s",
	ErrInvalidArg:          "invalid argument %s, bad value %s",
	ErrInvalidInput:        "invalid input: %s",
	ErrInvalidState:        "invalid state %s",
	ErrUnexpectedEOF:       "unexpected end of %s",
	ErrShortBuffer:         "buffer too short for %s",
	ErrUnsupportedDataType: "unsupported data type %s",
	ErrUnsupportedJoinMode: "unsupported join mode %d",
	ErrEnd:                 "internal error: end of errcode code",
}

type Error struct {
	code    uint16
	message string
}

func newError(code uint16, args ...any) *Error {
	format, has := errorMsgRefer[code]
	if !has {
		panic(fmt.Sprintf("not exist MOErrorCode: %d", code))
	}
	if len(args) == 0 {
		return &Error{code: code, message: format}
	}
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func (e *Error) Succeeded() bool {
	return e.code < ErrStart
}

// IsMoErrCode checks if the error is a moerr with the given error code.
func IsMoErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}
	var me *Error
	if !errors.As(e, &me) {
		return false
	}
	return me.code == rc
}

func NewInternalErrorNoCtx(msg string, args ...any) *Error {
	return newError(ErrInternal, fmt.Sprintf(msg, args...))
}

func NewNYINoCtx(msg string, args ...any) *Error {
	return newError(ErrNYI, fmt.Sprintf(msg, args...))
}

func NewOutOfRangeNoCtx(typ string, msg string, args ...any) *Error {
	return newError(ErrOutOfRange, typ, fmt.Sprintf(msg, args...))
}

func NewInvalidArgNoCtx(arg string, val any) *Error {
	return newError(ErrInvalidArg, arg, fmt.Sprintf("%v", val))
}

func NewInvalidInputNoCtx(msg string, args ...any) *Error {
	return newError(ErrInvalidInput, fmt.Sprintf(msg, args...))
}

func NewInvalidStateNoCtx(msg string, args ...any) *Error {
	return newError(ErrInvalidState, fmt.Sprintf(msg, args...))
}

func NewUnexpectedEOFNoCtx(what string) *Error {
	return newError(ErrUnexpectedEOF, what)
}

func NewShortBufferNoCtx(what string) *Error {
	return newError(ErrShortBuffer, what)
}

func NewUnsupportedDataTypeNoCtx(typ any) *Error {
	return newError(ErrUnsupportedDataType, fmt.Sprintf("%v", typ))
}

func NewUnsupportedJoinModeNoCtx(mode int32) *Error {
	return newError(ErrUnsupportedJoinMode, mode)
}
