package wasm

import (
	"fmt"
	"time"
)

// CompilationError occurs when Wasm module compilation fails
type CompilationError struct {
	ModuleName string
	Err        error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile Wasm module '%s': %v", e.ModuleName, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// CacheError occurs when the on-disk compilation cache cannot be opened
type CacheError struct {
	Dir string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("failed to open compilation cache '%s': %v", e.Dir, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// InstantiationError occurs when module instantiation fails
type InstantiationError struct {
	ModuleName string
	InstanceID string
	Err        error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("failed to instantiate module '%s' (instance: %s): %v",
		e.ModuleName, e.InstanceID, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// InstanceLimitError occurs when the session limit has been reached
type InstanceLimitError struct {
	Max int
}

func (e *InstanceLimitError) Error() string {
	return fmt.Sprintf("session limit of %d reached", e.Max)
}

// ModuleNotFoundError occurs when a module is not in cache
type ModuleNotFoundError struct {
	ModuleName string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module '%s' not found in cache", e.ModuleName)
}

// FunctionNotFoundError occurs when an exported function is missing
type FunctionNotFoundError struct {
	ModuleName   string
	FunctionName string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("function '%s' not found in module '%s'",
		e.FunctionName, e.ModuleName)
}

// MemoryAccessError occurs when memory operations fail
type MemoryAccessError struct {
	Operation string
	Address   uint32
	Length    uint32
}

func (e *MemoryAccessError) Error() string {
	return fmt.Sprintf("memory access failed (op=%s, addr=%d, len=%d)",
		e.Operation, e.Address, e.Length)
}

// ExecutionError occurs when a guest export traps or fails
type ExecutionError struct {
	InstanceID string
	Export     string
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("export '%s' of instance %s failed: %v", e.Export, e.InstanceID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// TimeoutError occurs when Wasm execution times out
type TimeoutError struct {
	Export   string
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Wasm export '%s' timed out after %v", e.Export, e.Duration)
}

// SessionClosedError occurs when a closed session is used
type SessionClosedError struct {
	InstanceID string
}

func (e *SessionClosedError) Error() string {
	return fmt.Sprintf("session %s is closed", e.InstanceID)
}
