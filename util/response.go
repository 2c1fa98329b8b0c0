package util

import (
	libconstants "github.com/filswan/go-swan-lib/constants"
)

type BasicResponse struct {
	Status   string      `json:"status"`
	Code     int         `json:"code"`
	Data     interface{} `json:"data,omitempty"`
	Message  string      `json:"message,omitempty"`
	PageInfo *PageInfo   `json:"page_info,omitempty"`
}

type PageInfo struct {
	StartAfter string `json:"start_after,omitempty"`
	Limit      uint32 `json:"limit"`
	Count      int    `json:"count"`
}

func CreateSuccessResponse(_data interface{}) BasicResponse {
	return BasicResponse{
		Status: libconstants.SWAN_API_STATUS_SUCCESS,
		Data:   _data,
		Code:   SuccessCode,
	}
}

func CreatePageResponse(_data interface{}, page *PageInfo) BasicResponse {
	resp := CreateSuccessResponse(_data)
	resp.PageInfo = page
	return resp
}

func CreateErrorResponse(code int, errMsg ...string) BasicResponse {
	var msg string
	if len(errMsg) == 0 {
		msg = codeMsg[code]
	} else {
		msg = errMsg[0]
	}
	return BasicResponse{
		Status:  libconstants.SWAN_API_STATUS_FAIL,
		Code:    code,
		Message: msg,
	}
}

const (
	SuccessCode = 200
	JsonError   = 400
	ServerError = 500

	SignatureError   = 4001
	RateLimitError   = 4002
	BadParamError    = 4003
	InvalidAddress   = 4004
	ProviderNotFound = 4041
	JobNotFound      = 4042
	Unauthorized     = 4031

	InvalidJobState      = 6001
	ProviderNotActive    = 6002
	InvalidProviderData  = 6003
	NoPayment            = 6004
	ProviderExists       = 6005
	CancelWindowExpired  = 6006
	MarketPaused         = 6007
	InvalidConfig        = 6008
	ArithmeticError      = 6009
	MarketNotInitialized = 6010
	InsufficientBalance  = 6011
	DuplicateDeposit     = 6012
)

var codeMsg = map[int]string{
	JsonError:   "An error occurred while converting to json",
	ServerError: "An internal error occurred",

	SignatureError: "Missing, invalid or replayed request signature",
	RateLimitError: "Too many requests, please try again later",
	BadParamError:  "Invalid request parameter",
	InvalidAddress: "Invalid address",

	ProviderNotFound: "Provider not found",
	JobNotFound:      "Job not found",
	Unauthorized:     "Unauthorized",

	InvalidJobState:      "Invalid job state for this operation",
	ProviderNotActive:    "Provider is not active",
	InvalidProviderData:  "Invalid provider data",
	NoPayment:            "No payment provided",
	ProviderExists:       "Provider already registered",
	CancelWindowExpired:  "Job cancellation window expired",
	MarketPaused:         "Market is paused",
	InvalidConfig:        "Invalid market config",
	ArithmeticError:      "Arithmetic error",
	MarketNotInitialized: "Market is not initialized",
	InsufficientBalance:  "Deposit balance too low",
	DuplicateDeposit:     "Deposit reference already credited",
}
