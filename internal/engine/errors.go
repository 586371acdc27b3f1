package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCaseRequired         = errors.New("case id is required")
	ErrAlreadyInitialized   = errors.New("workflow already initialized")
	ErrNoActiveStage        = errors.New("no stage in progress")
	ErrIntegrity            = errors.New("workflow integrity violation")
	ErrUnknownStage         = errors.New("unknown stage")
	ErrInvalidStatus        = errors.New("invalid stage status")
	ErrUnknownDocumentType  = errors.New("unknown document type")
	ErrAgentDisabled        = errors.New("agent disabled")
	ErrStageAlreadyInFlight = errors.New("another stage is in progress")
)

// IncompleteStageError is advisory: the stage is missing required artifacts.
type IncompleteStageError struct {
	Stage   string
	Missing []string
}

func (e *IncompleteStageError) Error() string {
	return fmt.Sprintf("stage %s incomplete: missing %s", e.Stage, strings.Join(e.Missing, ", "))
}

// PersistenceError wraps a store failure. The write it names may have left
// the workflow partially updated; callers re-read state before retrying.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
