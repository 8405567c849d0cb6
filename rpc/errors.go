package rpc

import (
	"net/http"

	"gigchain/native/common"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
)

// Ledger error kinds surface with their own codes.
const (
	codeNotFound            = -32040
	codeForbidden           = -32041
	codeInvalidState        = -32042
	codeInvalidArgument     = -32043
	codeAssetTransferFailed = -32044
	codePreconditionFailed  = -32045
	codeModulePaused        = -32046
)

func invalidParams(message string) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: message}
}

func errorFromKind(err error) *RPCError {
	kind := common.ErrorKind(err)
	code := codeServerError
	switch kind {
	case common.KindNotFound:
		code = codeNotFound
	case common.KindUnauthorized:
		code = codeForbidden
	case common.KindInvalidState:
		code = codeInvalidState
	case common.KindInvalidArgument:
		code = codeInvalidArgument
	case common.KindAssetTransferFailed:
		code = codeAssetTransferFailed
	case common.KindPreconditionFailed:
		code = codePreconditionFailed
	case common.KindModulePaused:
		code = codeModulePaused
	}
	if code == codeServerError {
		return &RPCError{Code: code, Message: "internal error"}
	}
	return &RPCError{Code: code, Message: kind, Data: err.Error()}
}

func statusForError(err error) int {
	switch common.ErrorKind(err) {
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindUnauthorized:
		return http.StatusForbidden
	case common.KindInvalidState, common.KindAssetTransferFailed:
		return http.StatusConflict
	case common.KindInvalidArgument:
		return http.StatusBadRequest
	case common.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case common.KindModulePaused:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
