package update

import (
	"errors"

	appErrors "carelite/internal/errors"
)

var (
	// ErrRateLimited is returned when the release feed answers 403.
	ErrRateLimited = errors.New("rate limited by release feed")
	// ErrUnexpectedStatus wraps any other non-200 response.
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrMissingTag means the release document carried no usable tag.
	ErrMissingTag = errors.New("release has no tag")
	// ErrShortTransfer means fewer bytes arrived than the server declared.
	ErrShortTransfer = errors.New("download ended before declared length")
	// ErrChecksumMismatch is returned when a staged file fails SHA-256 verification.
	ErrChecksumMismatch = errors.New("checksum verification failed")
	// ErrSignatureInvalid is returned when a minisign signature does not verify.
	ErrSignatureInvalid = errors.New("signature verification failed")
	// ErrNoStrategy means the coordinator was built without a replacement strategy.
	ErrNoStrategy = errors.New("no replacement strategy configured")
)

func networkError(msg string, err error) error {
	return appErrors.New(appErrors.CodeNetwork, msg, err)
}

func parseError(msg string, err error) error {
	return appErrors.New(appErrors.CodeParse, msg, err)
}

func invalidFormat(msg string) error {
	return appErrors.New(appErrors.CodeInvalidFormat, msg, nil)
}

func assetNotFound(msg string) error {
	return appErrors.New(appErrors.CodeAssetNotFound, msg, nil)
}

func ioError(msg string, err error) error {
	return appErrors.New(appErrors.CodeIO, msg, err)
}

func verificationError(msg string, err error) error {
	return appErrors.New(appErrors.CodeVerification, msg, err)
}

func privilegeDenied(msg string, err error) error {
	return appErrors.New(appErrors.CodePrivilegeDenied, msg, err)
}
