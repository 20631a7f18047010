package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInsufficientData     ErrorCode = 106
	ErrCodeInvalidPeriod        ErrorCode = 108
	ErrCodeMissingParameter     ErrorCode = 109
	ErrCodeInvalidVersion       ErrorCode = 110
	ErrCodeInvalidMultiplier    ErrorCode = 111
	ErrCodeInvalidThreshold     ErrorCode = 112

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeHistoricalDataFailed  ErrorCode = 203
	ErrCodeNoDataFound           ErrorCode = 204
	ErrCodeRateLimited           ErrorCode = 205

	// Indicator errors (300-399)
	ErrCodeIndicatorNotFound      ErrorCode = 300
	ErrCodeIndicatorAlreadyExists ErrorCode = 301
	ErrCodeIndicatorCalculation   ErrorCode = 302

	// Strategy errors (400-499)
	ErrCodeStrategyConfigError    ErrorCode = 401
	ErrCodeUnsupportedStrategy    ErrorCode = 403
	ErrCodeTrailingAlreadyActive  ErrorCode = 405
	ErrCodeTrailingNotInitialized ErrorCode = 406

	// Ledger and trading errors (500-599)
	ErrCodeOrderFailed       ErrorCode = 500
	ErrCodePurchaseNotFound  ErrorCode = 501
	ErrCodeCapacityExceeded  ErrorCode = 503
	ErrCodeInsufficientFunds ErrorCode = 504
	ErrCodeInvalidFill       ErrorCode = 505

	// Backtest errors (600-699)
	ErrCodeBacktestInitFailed  ErrorCode = 601
	ErrCodeBacktestConfigError ErrorCode = 602
	ErrCodeBacktestFinalized   ErrorCode = 609
	ErrCodeBacktestCancelled   ErrorCode = 610
	ErrCodeBacktestWriteFailed ErrorCode = 611

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataWriteFailed ErrorCode = 701
	ErrCodeMarketDataParseFailed ErrorCode = 702
	ErrCodeInvalidTimeframe      ErrorCode = 703
	ErrCodeInvalidProvider       ErrorCode = 704

	// Persistence errors (800-899)
	ErrCodeStateSaveFailed      ErrorCode = 800
	ErrCodeStateLoadFailed      ErrorCode = 801
	ErrCodeStateVersionMismatch ErrorCode = 802
)
