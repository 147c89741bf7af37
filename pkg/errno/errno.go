package errno

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	switch typed := err.(type) {
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	default:
		return InternalServerError.Code, err.Error()
	}
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrSignature        = Errno{Code: 10003, Message: "Signature verification failed"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
	ErrTimestamp        = Errno{Code: 10005, Message: "Request timestamp out of validity window"}
)

// Order Errors (20100+)
var (
	ErrOrderNotFound        = Errno{Code: 20101, Message: "Order not found"}
	ErrDuplicateOutTradeNo  = Errno{Code: 20102, Message: "Duplicate out_trade_no"}
	ErrOrderNotTransitable  = Errno{Code: 20103, Message: "Order status does not allow this transition"}
	ErrAmountTooSmall       = Errno{Code: 20104, Message: "Amount below minimum"}
	ErrInvalidAddress       = Errno{Code: 20105, Message: "Invalid blockchain address"}
	ErrUnsupportedChain     = Errno{Code: 20106, Message: "Unsupported chain"}
	ErrAmountSuffixExhausted = Errno{Code: 20107, Message: "No available amount suffix for this address"}
)

// Balance Errors (20200+)
var (
	ErrInsufficientBalance = Errno{Code: 20201, Message: "Insufficient balance"}
	ErrLedgerInvariant     = Errno{Code: 20202, Message: "Ledger invariant violation"}
	ErrMerchantNotFound    = Errno{Code: 20203, Message: "Merchant not found"}
)

// Channel / Wallet Errors (20300+)
var (
	ErrNoAvailableChannel = Errno{Code: 20301, Message: "No available payment channel"}
	ErrNoAvailableWallet  = Errno{Code: 20302, Message: "No available deposit address"}
	ErrWalletNotFound     = Errno{Code: 20303, Message: "Wallet not found"}
)

// Collection Errors (20400+)
var (
	ErrCollectTaskConflict = Errno{Code: 20401, Message: "A live collect task already exists for this address"}
	ErrHotWalletNotFound   = Errno{Code: 20402, Message: "Hot wallet not configured"}
	ErrGasWalletNotFound   = Errno{Code: 20403, Message: "Gas wallet not configured"}
)
