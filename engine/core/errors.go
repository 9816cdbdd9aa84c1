package core

import (
	"errors"
	"fmt"
)

var (
	ErrSwapchainBooting   = errors.New("swapchain resized or recreated, booting")
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")
	ErrDeviceLost         = errors.New("device lost")
	ErrTooManyInstances   = errors.New("scene exceeds the instance transform capacity")
	ErrNilPipeline        = errors.New("render pass has no pipeline")
	ErrUnknown            = errors.New("unknown")
)

// ErrorKind classifies failures by how the engine reacts to them.
type ErrorKind uint8

const (
	KindNone ErrorKind = iota
	// KindSetup covers device, pipeline, render pass and shader creation
	// failures. Initialization stops.
	KindSetup
	// KindSwapchainRebuild is raised by out-of-date or suboptimal
	// acquire/present results. The swapchain is rebuilt and the tick dropped.
	KindSwapchainRebuild
	// KindTransient covers command buffer begin/end and submit failures.
	// The tick is dropped and the next one runs normally.
	KindTransient
	// KindAsset covers missing or corrupt source files. The target keeps a
	// default value.
	KindAsset
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSetup:
		return "setup"
	case KindSwapchainRebuild:
		return "swapchain-rebuild"
	case KindTransient:
		return "transient"
	case KindAsset:
		return "asset"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// Error is a tagged error carrying the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of the first *Error found in err's chain.
// Errors that carry no tag are treated as setup failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrSwapchainOutOfDate) {
		return KindSwapchainRebuild
	}
	return KindSetup
}

// FrameResult is the outcome of one render tick.
type FrameResult struct {
	Kind ErrorKind
	Err  error
}

func (r FrameResult) OK() bool {
	return r.Kind == KindNone
}

// Fatal reports whether the engine must stop.
func (r FrameResult) Fatal() bool {
	return r.Kind == KindSetup
}

func FrameOK() FrameResult {
	return FrameResult{}
}

func FrameFailed(kind ErrorKind, op string, err error) FrameResult {
	return FrameResult{Kind: kind, Err: NewError(kind, op, err)}
}
