package policy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	fedanalysis "github.com/roach88/fedcomp/internal/analysis"
	"github.com/roach88/fedcomp/internal/ir"
)

// prelude is prepended to every evaluated program. The empty URI and node 0
// never occur in a computation; those facts keep forbidden/1 and local/3
// defined when nothing else would.
const prelude = `
forbidden("").
local(0, "", 0).

reachable(Id) :- node(Id, 0, _, _).
reachable(Child) :- reachable(Parent), node(Child, Parent, _, _).

ancestor(A, D) :- node(D, A, _, _).
ancestor(A, D) :- node(C, A, _, _), ancestor(C, D).

uses_intrinsic(Id, Uri) :- node(Id, _, /intrinsic, Uri).

violation(Uri, Id) :- uses_intrinsic(Id, Uri), forbidden(Uri).
`

const digestDomain = "fedcomp/policy/v1"

// createdFactLimit bounds what user rules may derive for one computation.
const createdFactLimit = 1_000_000

// Policy is a named set of forbidden intrinsics plus optional Datalog rules
// deriving further violation(Uri, Id) facts.
type Policy struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Forbidden   []string `yaml:"forbidden,omitempty"`
	Rules       string   `yaml:"rules,omitempty"`
}

// Violation is one derived violation(Uri, Id) fact.
type Violation struct {
	URI    string
	NodeID int64
	Path   fedanalysis.Path
}

func (v Violation) String() string {
	return fmt.Sprintf("%s at %s", v.URI, v.Path)
}

// Load decodes a YAML policy, rejecting unknown fields, and checks that its
// rules parse.
func Load(r io.Reader) (*Policy, error) {
	var p Policy
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse policy YAML: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadFile reads a YAML policy file.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	p, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Validate checks the name, the forbidden URIs and the rule syntax.
func (p *Policy) Validate() error {
	if p.Name == "" {
		return &Error{Code: ErrCodeInvalid, Message: "name is required"}
	}
	for i, uri := range p.Forbidden {
		if uri == "" {
			return &Error{Code: ErrCodeInvalid, Policy: p.Name, Message: fmt.Sprintf("forbidden[%d] is empty", i)}
		}
	}
	if strings.TrimSpace(p.Rules) != "" {
		if _, err := parse.Unit(strings.NewReader(p.Rules)); err != nil {
			return &Error{Code: ErrCodeRules, Policy: p.Name, Message: "rules do not parse", Cause: err}
		}
	}
	return nil
}

// Digest returns a content hash of the policy's name, forbidden URIs and
// rules. Descriptions do not contribute.
func (p *Policy) Digest() (string, error) {
	forbidden := make(ir.IRArray, len(p.Forbidden))
	for i, uri := range p.Forbidden {
		forbidden[i] = ir.IRString(uri)
	}
	data, err := ir.MarshalCanonical(ir.NewIRObjectFromPairs(
		ir.O("name", ir.IRString(p.Name)),
		ir.O("forbidden", forbidden),
		ir.O("rules", ir.IRString(p.Rules)),
	))
	if err != nil {
		return "", &Error{Code: ErrCodeInvalid, Policy: p.Name, Message: "cannot encode policy", Cause: err}
	}
	h := sha256.New()
	h.Write([]byte(digestDomain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Program returns the full Datalog program evaluated for c.
func (p *Policy) Program(c *ir.Computation) (string, *Facts, error) {
	facts, err := ExportFacts(c)
	if err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	sb.WriteString(prelude)
	for _, uri := range p.Forbidden {
		fmt.Fprintf(&sb, "forbidden(%s).\n", quote(uri))
	}
	sb.WriteString(facts.Source)
	if p.Rules != "" {
		sb.WriteString("\n")
		sb.WriteString(p.Rules)
		sb.WriteString("\n")
	}
	return sb.String(), facts, nil
}

// Evaluate runs the policy over c and returns every violation, ordered by
// node id then URI.
func (p *Policy) Evaluate(c *ir.Computation) ([]Violation, error) {
	src, facts, err := p.Program(c)
	if err != nil {
		return nil, err
	}

	unit, err := parse.Unit(strings.NewReader(src))
	if err != nil {
		return nil, &Error{Code: ErrCodeRules, Policy: p.Name, Message: "parse error", Cause: err}
	}
	info, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, &Error{Code: ErrCodeRules, Policy: p.Name, Message: "analysis error", Cause: err}
	}
	store := factstore.NewSimpleInMemoryStore()
	stats, err := engine.EvalProgramWithStats(info, store, engine.WithCreatedFactLimit(createdFactLimit))
	if err != nil {
		return nil, &Error{Code: ErrCodeEval, Policy: p.Name, Message: "evaluation error", Cause: err}
	}
	Logger().Debug("policy evaluated",
		zap.String("policy", p.Name),
		zap.String("computation", c.Name()),
		zap.Int("strata", len(stats.Strata)),
		zap.Int("nodes", len(facts.Paths)))

	var out []Violation
	err = store.GetFacts(ast.NewQuery(ast.PredicateSym{Symbol: "violation", Arity: 2}), func(a ast.Atom) error {
		v, err := violationOf(a)
		if err != nil {
			return err
		}
		v.Path = facts.Paths[v.NodeID]
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, &Error{Code: ErrCodeEval, Policy: p.Name, Message: "reading violations", Cause: err}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].NodeID != out[j].NodeID {
			return out[i].NodeID < out[j].NodeID
		}
		return out[i].URI < out[j].URI
	})
	return out, nil
}

// Check evaluates the policy and returns a *ViolationError when c breaks
// it.
func (p *Policy) Check(c *ir.Computation) error {
	vs, err := p.Evaluate(c)
	if err != nil {
		return err
	}
	if len(vs) == 0 {
		return nil
	}
	Logger().Info("policy violated",
		zap.String("policy", p.Name),
		zap.String("computation", c.Name()),
		zap.Int("violations", len(vs)))
	return &ViolationError{Policy: p.Name, Computation: c.Name(), Violations: vs}
}

func violationOf(a ast.Atom) (Violation, error) {
	if len(a.Args) != 2 {
		return Violation{}, fmt.Errorf("violation/%d: expected 2 arguments", len(a.Args))
	}
	uri, ok := a.Args[0].(ast.Constant)
	if !ok {
		return Violation{}, errors.New("violation: first argument is not a constant")
	}
	id, ok := a.Args[1].(ast.Constant)
	if !ok || id.Type != ast.NumberType {
		return Violation{}, fmt.Errorf("violation: node id %v is not a number", a.Args[1])
	}

	v := Violation{NodeID: id.NumValue}
	if uri.Type == ast.StringType || uri.Type == ast.NameType {
		v.URI = uri.Symbol
	} else {
		v.URI = uri.String()
	}
	return v, nil
}
