package archive

import (
	"fmt"

	"github.com/batterysnoopy/crypto-downloader/pkg/kline"
)

// TransportError reports a failed archive download.
type TransportError struct {
	Key        kline.DateKey
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("download %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("download %s: HTTP %d", e.Key, e.StatusCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError reports a downloaded archive whose contents could not be
// decompressed or decoded.
type DecodeError struct {
	Key kline.DateKey
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Key, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
