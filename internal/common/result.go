package common

// Result is the outcome of an operation whose failures are expected and
// user-facing (policy, validation, authentication). UI code renders Message
// directly; no error needs to be unwound.
type Result struct {
	Success bool
	Message string
}

// Ok builds a successful Result.
func Ok(msg string) Result { return Result{Success: true, Message: msg} }

// Fail builds a failed Result.
func Fail(msg string) Result { return Result{Success: false, Message: msg} }
