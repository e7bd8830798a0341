package policy

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/format"
	"cuelang.org/go/cue/token"
	"go.uber.org/multierr"

	"github.com/roach88/offlinewallet/internal/wallet"
)

//go:embed schema.cue
var schemaCUE string

// Error codes.
const (
	ErrCodeRead     = "E_POLICY_READ"
	ErrCodeSyntax   = "E_POLICY_SYNTAX"
	ErrCodeMissing  = "E_POLICY_MISSING"
	ErrCodeInvalid  = "E_POLICY_INVALID"
	ErrCodeInternal = "E_POLICY_INTERNAL"
)

// Error is a policy loading failure. Pos is set when CUE reported one.
type Error struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Default returns the stock policy.
func Default() wallet.RiskPolicy {
	return wallet.DefaultRiskPolicy()
}

// Load reads the CUE policy file at path.
func Load(path string) (wallet.RiskPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return wallet.RiskPolicy{}, &Error{Code: ErrCodeRead, Message: err.Error()}
	}
	return LoadBytes(path, data)
}

// LoadBytes parses CUE policy source. filename is used in error positions.
//
// Every schema violation is reported; the returned error combines them
// with multierr.
func LoadBytes(filename string, data []byte) (wallet.RiskPolicy, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return wallet.RiskPolicy{}, &Error{Code: ErrCodeInternal, Message: fmt.Sprintf("compiling schema: %v", err)}
	}

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return wallet.RiskPolicy{}, convertCUEError(ErrCodeSyntax, err)
	}

	policyVal := value.LookupPath(cue.ParsePath("policy"))
	if !policyVal.Exists() {
		return wallet.RiskPolicy{}, &Error{Code: ErrCodeMissing, Message: fmt.Sprintf("%s: no top-level policy struct", filename)}
	}

	unified := schema.LookupPath(cue.ParsePath("#Policy")).Unify(policyVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return wallet.RiskPolicy{}, convertCUEError(ErrCodeInvalid, err)
	}

	var p wallet.RiskPolicy
	if err := unified.Decode(&p); err != nil {
		return wallet.RiskPolicy{}, convertCUEError(ErrCodeInvalid, err)
	}
	return p, nil
}

// Format renders p as a policy file that Load accepts.
func Format(p wallet.RiskPolicy) ([]byte, error) {
	ctx := cuecontext.New()
	v := ctx.Encode(struct {
		Policy wallet.RiskPolicy `json:"policy"`
	}{Policy: p})
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("encode policy: %w", err)
	}
	out, err := format.Node(v.Syntax())
	if err != nil {
		return nil, fmt.Errorf("format policy: %w", err)
	}
	return append(bytes.TrimSpace(out), '\n'), nil
}

// convertCUEError splits a CUE error list into one *Error per entry.
func convertCUEError(code string, err error) error {
	var combined error
	for _, e := range cueerrors.Errors(err) {
		pe := &Error{Code: code, Message: e.Error()}
		if pos := e.Position(); pos.IsValid() {
			pe.Pos = pos
		}
		combined = multierr.Append(combined, pe)
	}
	if combined == nil {
		return &Error{Code: code, Message: err.Error()}
	}
	return combined
}

// AsError returns the first *Error in err, if any.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	for _, e := range multierr.Errors(err) {
		if errors.As(e, &pe) {
			return pe, true
		}
	}
	return nil, false
}
