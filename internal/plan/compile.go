package plan

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/aspect/internal/engine"
	"github.com/roach88/aspect/internal/member"
)

// CompileError is a plan compilation error with source position.
type CompileError struct {
	Rule    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	field := e.Field
	if e.Rule != "" {
		field = fmt.Sprintf("rule %q: %s", e.Rule, e.Field)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			field, e.Message)
	}
	return fmt.Sprintf("%s: %s", field, e.Message)
}

// LoadDir loads the CUE package in dir and compiles every rule in it.
// Compile errors of all rules are joined.
func LoadDir(dir string) (*Plan, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("plans directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("plans directory: not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, errors.New("no CUE instances loaded")
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", formatCUEError(inst.Err))
	}

	v := cuecontext.New().BuildInstance(inst)
	return Compile(v)
}

// CompileString compiles plan source held in memory.
func CompileString(src string) (*Plan, error) {
	return Compile(cuecontext.New().CompileString(src))
}

// Compile compiles every rule under the top-level "rule" field of v.
func Compile(v cue.Value) (*Plan, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &Plan{}
	rules := v.LookupPath(cue.ParsePath("rule"))
	if !rules.Exists() {
		return p, nil
	}
	iter, err := rules.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var errs []error
	for iter.Next() {
		r, err := CompileRule(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.Rules = append(p.Rules, *r)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return p, nil
}

// CompileRule parses one rule struct. The rule ID is the struct's label:
//
//	v := ctx.CompileString(`rule: "audit": { ... }`)
//	r, err := CompileRule(v.LookupPath(cue.ParsePath(`rule."audit"`)))
func CompileRule(v cue.Value) (*Rule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	r := &Rule{}
	if sels := v.Path().Selectors(); len(sels) > 0 {
		r.ID = strings.Trim(sels[len(sels)-1].String(), `"`)
	}

	sel, err := compileSelect(r.ID, v)
	if err != nil {
		return nil, err
	}
	r.Select = *sel

	r.Hooks, err = compileHooks(r.ID, v)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func compileSelect(rule string, v cue.Value) (*Select, error) {
	sv := v.LookupPath(cue.ParsePath("select"))
	if !sv.Exists() {
		return nil, &CompileError{Rule: rule, Field: "select", Message: "select is required", Pos: v.Pos()}
	}

	s := &Select{}
	var err error
	if s.Member, err = optString(sv, "member"); err != nil {
		return nil, err
	}
	if s.All, err = optBool(sv, "all"); err != nil {
		return nil, err
	}
	if s.AllMembers, err = optBool(sv, "all_members"); err != nil {
		return nil, err
	}

	if kind, err := optString(sv, "kind"); err != nil {
		return nil, err
	} else if kind != "" {
		k, err := member.ParseKind(kind)
		if err != nil {
			return nil, &CompileError{Rule: rule, Field: "select.kind", Message: err.Error(), Pos: sv.LookupPath(cue.ParsePath("kind")).Pos()}
		}
		s.Kind = &k
	}

	if pattern, err := optString(sv, "match"); err != nil {
		return nil, err
	} else if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &CompileError{Rule: rule, Field: "select.match", Message: err.Error(), Pos: sv.LookupPath(cue.ParsePath("match")).Pos()}
		}
		s.Match = re
	}

	if av := sv.LookupPath(cue.ParsePath("async")); av.Exists() {
		b, err := av.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		s.Async = &b
	}

	if pv := sv.LookupPath(cue.ParsePath("params")); pv.Exists() {
		s.Params = []string{}
		iter, err := pv.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			name, err := iter.Value().String()
			if err != nil {
				return nil, &CompileError{Rule: rule, Field: "select.params", Message: "parameter types must be strings", Pos: iter.Value().Pos()}
			}
			s.Params = append(s.Params, name)
		}
	}

	if argv := sv.LookupPath(cue.ParsePath("args")); argv.Exists() {
		s.Args = []any{}
		iter, err := argv.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			a, err := decodeValue(iter.Value())
			if err != nil {
				return nil, &CompileError{Rule: rule, Field: "select.args", Message: err.Error(), Pos: iter.Value().Pos()}
			}
			s.Args = append(s.Args, a)
		}
	}

	blanket := s.All || s.AllMembers
	narrowed := s.Member != "" || s.Match != nil || s.Kind != nil || s.Params != nil || s.Async != nil || s.Args != nil
	switch {
	case s.All && s.AllMembers:
		return nil, &CompileError{Rule: rule, Field: "select", Message: "all and all_members are exclusive", Pos: sv.Pos()}
	case blanket && narrowed:
		return nil, &CompileError{Rule: rule, Field: "select", Message: "a blanket selection takes no other fields", Pos: sv.Pos()}
	case !blanket && s.Member == "" && s.Match == nil:
		return nil, &CompileError{Rule: rule, Field: "select", Message: "one of member, match, all or all_members is required", Pos: sv.Pos()}
	}
	return s, nil
}

func compileHooks(rule string, v cue.Value) ([]Hook, error) {
	hv := v.LookupPath(cue.ParsePath("hooks"))
	if !hv.Exists() {
		return nil, &CompileError{Rule: rule, Field: "hooks", Message: "at least one hook is required", Pos: v.Pos()}
	}
	iter, err := hv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var hooks []Hook
	for i := 0; iter.Next(); i++ {
		h, err := compileHook(rule, fmt.Sprintf("hooks[%d]", i), iter.Value())
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, *h)
	}
	if len(hooks) == 0 {
		return nil, &CompileError{Rule: rule, Field: "hooks", Message: "at least one hook is required", Pos: hv.Pos()}
	}
	return hooks, nil
}

func compileHook(rule, field string, v cue.Value) (*Hook, error) {
	on, err := optString(v, "on")
	if err != nil {
		return nil, err
	}
	if on == "" {
		return nil, &CompileError{Rule: rule, Field: field + ".on", Message: "on is required", Pos: v.Pos()}
	}
	kind, err := engine.ParseHookKind(on)
	if err != nil {
		return nil, &CompileError{Rule: rule, Field: field + ".on", Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("on")).Pos()}
	}

	action, err := optString(v, "action")
	if err != nil {
		return nil, err
	}
	h := &Hook{On: kind, Action: Action(action)}
	if h.Message, err = optString(v, "message"); err != nil {
		return nil, err
	}

	invalid := func(msg string) error {
		return &CompileError{Rule: rule, Field: field + ".action", Message: msg, Pos: v.Pos()}
	}
	switch h.Action {
	case ActionTrace:
		if kind == engine.HookInvoke {
			return nil, invalid(`an "invoke" hook must replace the call: use action "invoke" or "fail"`)
		}
	case ActionReturn:
		if kind != engine.HookReturn {
			return nil, invalid(`action "return" is only valid on "return"`)
		}
	case ActionInvoke:
		if kind != engine.HookInvoke {
			return nil, invalid(`action "invoke" is only valid on "invoke"`)
		}
	case ActionFail:
		if h.Message == "" {
			h.Message = "failed by plan"
		}
	case "":
		return nil, invalid("action is required")
	default:
		return nil, invalid(fmt.Sprintf("unknown action %q, must be trace, return, invoke or fail", action))
	}

	if h.Action == ActionReturn || h.Action == ActionInvoke {
		vv := v.LookupPath(cue.ParsePath("value"))
		if vv.Exists() {
			if h.Value, err = decodeValue(vv); err != nil {
				return nil, &CompileError{Rule: rule, Field: field + ".value", Message: err.Error(), Pos: vv.Pos()}
			}
		}
	}
	return h, nil
}

// decodeValue converts a concrete CUE value to Go: null, bool, int64,
// float64, string, or the generic decoding of lists and structs.
func decodeValue(v cue.Value) (any, error) {
	if !v.IsConcrete() {
		return nil, errors.New("value must be concrete")
	}
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind:
		return v.Float64()
	case cue.StringKind:
		return v.String()
	default:
		var out any
		if err := v.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func optString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
