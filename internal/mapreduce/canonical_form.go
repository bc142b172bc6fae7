package mapreduce

import (
	"fmt"
	"io"

	"github.com/roach88/fedcomp/internal/analysis"
	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/types"
)

// Component names, in constructor order.
const (
	Initialize = "initialize"
	Prepare    = "prepare"
	Work       = "work"
	Zero       = "zero"
	Accumulate = "accumulate"
	Merge      = "merge"
	Report     = "report"
	Bitwidth   = "bitwidth"
	Update     = "update"
)

// FormError reports a component that does not fit the canonical form.
type FormError struct {
	Component string
	Message   string
}

func (e *FormError) Error() string {
	return fmt.Sprintf("canonical form: %s: %s", e.Component, e.Message)
}

func formErrorf(component, format string, args ...any) *FormError {
	return &FormError{Component: component, Message: fmt.Sprintf(format, args...)}
}

// CanonicalForm is one round of an iterative process expressed as nine
// local computations. With abstract types S (server state), C (client
// input), D (client data), U (client update), V (secure-sum part),
// Y (client output), A (accumulator), R (aggregate) and X (server output):
//
//	initialize  ( -> S)
//	prepare     (S -> C)
//	work        (<D,C> -> <<U,V>,Y>)
//	zero        ( -> A)
//	accumulate  (<A,U> -> A)
//	merge       (<A,A> -> A)
//	report      (A -> R)
//	bitwidth    ( -> B)
//	update      (<S,<R,V>> -> <S,X>)
type CanonicalForm struct {
	initialize *ir.Computation
	prepare    *ir.Computation
	work       *ir.Computation
	zero       *ir.Computation
	accumulate *ir.Computation
	merge      *ir.Computation
	report     *ir.Computation
	bitwidth   *ir.Computation
	update     *ir.Computation
}

// NewCanonicalForm checks that the components are plain local logic and
// that their signatures connect, and returns the form. The first problem
// found is returned as a *FormError.
func NewCanonicalForm(initialize, prepare, work, zero, accumulate, merge, report, bitwidth, update *ir.Computation) (*CanonicalForm, error) {
	f := &CanonicalForm{
		initialize: initialize,
		prepare:    prepare,
		work:       work,
		zero:       zero,
		accumulate: accumulate,
		merge:      merge,
		report:     report,
		bitwidth:   bitwidth,
		update:     update,
	}
	for _, nc := range f.components() {
		if err := checkPlain(nc.name, nc.comp); err != nil {
			return nil, err
		}
	}
	if err := f.checkSignatures(); err != nil {
		return nil, err
	}
	return f, nil
}

type namedComputation struct {
	name string
	comp *ir.Computation
}

func (f *CanonicalForm) components() []namedComputation {
	return []namedComputation{
		{Initialize, f.initialize},
		{Prepare, f.prepare},
		{Work, f.work},
		{Zero, f.zero},
		{Accumulate, f.accumulate},
		{Merge, f.merge},
		{Report, f.report},
		{Bitwidth, f.bitwidth},
		{Update, f.update},
	}
}

// checkPlain requires a local computation with no reachable intrinsic.
func checkPlain(name string, c *ir.Computation) error {
	if c == nil {
		return formErrorf(name, "computation is missing")
	}
	if c.Strategy() != ir.StrategyLocal {
		return formErrorf(name, "expected a local computation, found %s", c.Strategy())
	}
	if p, ok := analysis.Find(c.Body(), analysis.OfKind(ir.KindIntrinsic)); ok {
		return formErrorf(name, "uses intrinsic at %s", p)
	}
	return nil
}

func (f *CanonicalForm) checkSignatures() error {
	initT := f.initialize.Type()
	prepareT := f.prepare.Type()
	workT := f.work.Type()
	zeroT := f.zero.Type()
	accT := f.accumulate.Type()
	mergeT := f.merge.Type()
	reportT := f.report.Type()
	updateT := f.update.Type()

	if !types.Equal(prepareT.Parameter, initT.Result) {
		return formErrorf(Prepare, "parameter %s does not match the result %s of initialize",
			types.Format(prepareT.Parameter), types.Format(initT.Result))
	}

	workParam, ok := pair(workT.Parameter)
	if !ok {
		return formErrorf(Work, "parameter %s is not a two-element struct", types.Format(workT.Parameter))
	}
	if !types.Equal(workParam.At(1), prepareT.Result) {
		return formErrorf(Work, "second parameter element %s does not match the result %s of prepare",
			types.Format(workParam.At(1)), types.Format(prepareT.Result))
	}
	workResult, ok := pair(workT.Result)
	if !ok {
		return formErrorf(Work, "result %s is not a two-element struct", types.Format(workT.Result))
	}
	updates, ok := pair(workResult.At(0))
	if !ok {
		return formErrorf(Work, "first result element %s is not a two-element struct", types.Format(workResult.At(0)))
	}

	accParam, ok := pair(accT.Parameter)
	if !ok {
		return formErrorf(Accumulate, "parameter %s is not a two-element struct", types.Format(accT.Parameter))
	}
	if !types.IsAssignable(zeroT.Result, accParam.At(0)) {
		return formErrorf(Accumulate, "accumulator %s is not assignable from the result %s of zero",
			types.Format(accParam.At(0)), types.Format(zeroT.Result))
	}
	if !types.Equal(accParam.At(1), updates.At(0)) {
		return formErrorf(Accumulate, "second parameter element %s does not match the client update %s produced by work",
			types.Format(accParam.At(1)), types.Format(updates.At(0)))
	}
	if !types.IsAssignable(accT.Result, accParam.At(0)) {
		return formErrorf(Accumulate, "accumulator %s is not assignable from its own result %s",
			types.Format(accParam.At(0)), types.Format(accT.Result))
	}

	mergeParam, ok := pair(mergeT.Parameter)
	if !ok {
		return formErrorf(Merge, "parameter %s is not a two-element struct", types.Format(mergeT.Parameter))
	}
	for i := 0; i < 2; i++ {
		if !types.IsAssignable(accT.Result, mergeParam.At(i)) {
			return formErrorf(Merge, "parameter element %d %s is not assignable from the result %s of accumulate",
				i, types.Format(mergeParam.At(i)), types.Format(accT.Result))
		}
	}
	if !types.IsAssignable(mergeT.Result, mergeParam.At(0)) {
		return formErrorf(Merge, "parameter element 0 %s is not assignable from its own result %s",
			types.Format(mergeParam.At(0)), types.Format(mergeT.Result))
	}

	if !types.IsAssignable(mergeT.Result, reportT.Parameter) {
		return formErrorf(Report, "parameter %s is not assignable from the result %s of merge",
			types.Format(reportT.Parameter), types.Format(mergeT.Result))
	}

	wantUpdate := types.Unnamed(initT.Result, types.Unnamed(reportT.Result, updates.At(1)))
	if !types.Equal(updateT.Parameter, wantUpdate) {
		return formErrorf(Update, "parameter %s does not match %s implied by initialize, report and work",
			types.Format(updateT.Parameter), wantUpdate)
	}
	updateResult, ok := pair(updateT.Result)
	if !ok {
		return formErrorf(Update, "result %s is not a two-element struct", types.Format(updateT.Result))
	}
	if !types.Equal(updateResult.At(0), initT.Result) {
		return formErrorf(Update, "first result element %s does not match the result %s of initialize",
			types.Format(updateResult.At(0)), types.Format(initT.Result))
	}
	return nil
}

// pair returns t as a two-element struct.
func pair(t types.Type) (*types.StructType, bool) {
	st, ok := t.(*types.StructType)
	if !ok || st.Len() != 2 {
		return nil, false
	}
	return st, true
}

func (f *CanonicalForm) Initialize() *ir.Computation { return f.initialize }
func (f *CanonicalForm) Prepare() *ir.Computation    { return f.prepare }
func (f *CanonicalForm) Work() *ir.Computation       { return f.work }
func (f *CanonicalForm) Zero() *ir.Computation       { return f.zero }
func (f *CanonicalForm) Accumulate() *ir.Computation { return f.accumulate }
func (f *CanonicalForm) Merge() *ir.Computation      { return f.merge }
func (f *CanonicalForm) Report() *ir.Computation     { return f.report }
func (f *CanonicalForm) Bitwidth() *ir.Computation   { return f.bitwidth }
func (f *CanonicalForm) Update() *ir.Computation     { return f.update }

// Component returns the computation registered under name.
func (f *CanonicalForm) Component(name string) (*ir.Computation, bool) {
	for _, nc := range f.components() {
		if nc.name == name {
			return nc.comp, true
		}
	}
	return nil, false
}

// Summary writes one "name: type" line per component, names padded to the
// width of "initialize".
func (f *CanonicalForm) Summary(w io.Writer) error {
	for _, nc := range f.components() {
		if _, err := fmt.Fprintf(w, "%-10s: %s\n", nc.name, nc.comp.Type()); err != nil {
			return err
		}
	}
	return nil
}
