// Package sizespec parses the size descriptor of a resize request.
//
// Accepted forms, case-insensitive:
//
//	"800x600"  width 800, height 600
//	"400"      square 400x400
//
// Every number must be written canonically: decimal digits only, no sign,
// no leading zero, and it must survive an Atoi/Itoa round trip. Each
// dimension lies in 1..MaxDimension.
package sizespec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxDimension bounds both width and height.
const MaxDimension = 5000

var (
	// ErrInvalidFormat marks a syntactically invalid size string.
	ErrInvalidFormat = errors.New("invalid size format")
	// ErrOutOfBounds marks a well-formed size outside 1..MaxDimension.
	ErrOutOfBounds = errors.New("size out of bounds")
)

// Stages reported in Error.Reason.
const (
	ReasonEmpty  = "empty"
	ReasonFormat = "format"
	ReasonWidth  = "width"
	ReasonHeight = "height"
	ReasonBounds = "bounds"
)

// Error describes why a size string was rejected.
type Error struct {
	Input  string
	Reason string
	err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %q (%s)", e.err, e.Input, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Size is a validated (width, height) pair.
type Size struct {
	Width  int
	Height int
}

// String returns the normalized "WxH" form used in variant keys.
func (s Size) String() string {
	return strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
}

// Parse validates raw and returns the requested dimensions.
func Parse(raw string) (Size, error) {
	if raw == "" {
		return Size{}, &Error{Input: raw, Reason: ReasonEmpty, err: ErrInvalidFormat}
	}

	parts := strings.Split(strings.ToLower(raw), "x")
	switch len(parts) {
	case 1:
		n, ok := parseDimension(parts[0])
		if !ok {
			return Size{}, &Error{Input: raw, Reason: ReasonFormat, err: ErrInvalidFormat}
		}
		return bounded(raw, Size{Width: n, Height: n})
	case 2:
		w, ok := parseDimension(parts[0])
		if !ok {
			return Size{}, &Error{Input: raw, Reason: ReasonWidth, err: ErrInvalidFormat}
		}
		h, ok := parseDimension(parts[1])
		if !ok {
			return Size{}, &Error{Input: raw, Reason: ReasonHeight, err: ErrInvalidFormat}
		}
		return bounded(raw, Size{Width: w, Height: h})
	default:
		return Size{}, &Error{Input: raw, Reason: ReasonFormat, err: ErrInvalidFormat}
	}
}

// MustParse is Parse for constants; it panics on invalid input.
func MustParse(raw string) Size {
	s, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return s
}

func bounded(raw string, s Size) (Size, error) {
	if s.Width < 1 || s.Width > MaxDimension || s.Height < 1 || s.Height > MaxDimension {
		return Size{}, &Error{Input: raw, Reason: ReasonBounds, err: ErrOutOfBounds}
	}
	return s, nil
}

// parseDimension accepts only canonical decimal integers.
func parseDimension(tok string) (int, bool) {
	if tok == "" {
		return 0, false
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, false
	}
	if strconv.Itoa(n) != tok {
		return 0, false
	}
	return n, true
}
