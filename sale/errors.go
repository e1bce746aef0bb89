package sale

import "errors"

// Domain errors. The text of each is the name reported on the wire.
var (
	ErrUnauthorized          = errors.New("Unauthorized")
	ErrNoZeroAmount          = errors.New("NoZeroAmount")
	ErrNoOtherDenoms         = errors.New("NoOtherDenoms")
	ErrDepositNotStarted     = errors.New("DepositNotStarted")
	ErrDepositEnded          = errors.New("DepositEnded")
	ErrDepositFcfsNotStarted = errors.New("DepositFcfsNotStarted")
	ErrOverRaisingAmount     = errors.New("OverRaisingAmount")
	ErrNotFinalized          = errors.New("NotFinalized")
	ErrInvalidMerkleProof    = errors.New("InvalidMerkleProof")
	ErrOverAllocation        = errors.New("OverAllocation")
	ErrOverFcfsWalletCap     = errors.New("OverFcfsWalletCap")
	ErrWithdrawNotStarted    = errors.New("WithdrawNotStarted")
	ErrWithdrawEnded         = errors.New("WithdrawEnded")
	ErrNotConfigured         = errors.New("NotConfigured")

	ErrAlreadyInstantiated  = errors.New("AlreadyInstantiated")
	ErrNotInstantiated      = errors.New("NotInstantiated")
	ErrInvalidConfig        = errors.New("InvalidConfig")
	ErrInvalidAddress       = errors.New("InvalidAddress")
	ErrInvalidMessage       = errors.New("InvalidMessage")
	ErrDivisorLocked        = errors.New("DivisorLocked")
	ErrInsufficientBalance  = errors.New("InsufficientBalance")
	ErrWithdrawDisabled     = errors.New("WithdrawDisabled")
	ErrFcfsDisabled         = errors.New("FcfsDisabled")
	ErrAlreadyFinalized     = errors.New("AlreadyFinalized")
	ErrReserveViolation     = errors.New("ReserveViolation")
	ErrMigrationUnsupported = errors.New("MigrationUnsupported")
	ErrOverflow             = errors.New("Overflow")
)

var domainErrors = []error{
	ErrUnauthorized, ErrNoZeroAmount, ErrNoOtherDenoms, ErrDepositNotStarted,
	ErrDepositEnded, ErrDepositFcfsNotStarted, ErrOverRaisingAmount,
	ErrNotFinalized, ErrInvalidMerkleProof, ErrOverAllocation,
	ErrOverFcfsWalletCap, ErrWithdrawNotStarted, ErrWithdrawEnded,
	ErrNotConfigured, ErrAlreadyInstantiated, ErrNotInstantiated,
	ErrInvalidConfig, ErrInvalidAddress, ErrInvalidMessage, ErrDivisorLocked,
	ErrInsufficientBalance, ErrWithdrawDisabled, ErrFcfsDisabled,
	ErrAlreadyFinalized, ErrReserveViolation, ErrMigrationUnsupported,
	ErrOverflow,
}

// ErrorName returns the taxonomy name of err and true if err wraps a
// domain error.
func ErrorName(err error) (string, bool) {
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return d.Error(), true
		}
	}
	return "", false
}
