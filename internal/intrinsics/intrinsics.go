// Package intrinsics names the built-in federated operators and builds
// their signatures.
//
// The IR treats intrinsic URIs as opaque. This package is a convenience for
// callables that trace computations: each helper infers the operator's
// type from its operands and applies it through a Builder.
package intrinsics

import (
	"sort"

	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/tracing"
	"github.com/roach88/fedcomp/internal/types"
)

// Intrinsic URIs.
const (
	FederatedAggregate     = "federated_aggregate"
	FederatedApply         = "federated_apply"
	FederatedBroadcast     = "federated_broadcast"
	FederatedCollect       = "federated_collect"
	FederatedEvalAtClients = "federated_eval_at_clients"
	FederatedEvalAtServer  = "federated_eval_at_server"
	FederatedMap           = "federated_map"
	FederatedMean          = "federated_mean"
	FederatedReduce        = "federated_reduce"
	FederatedSecureSum     = "federated_secure_sum"
	FederatedSum           = "federated_sum"
	FederatedValueClients  = "federated_value_at_clients"
	FederatedValueServer   = "federated_value_at_server"
	FederatedWeightedMean  = "federated_weighted_mean"
	FederatedZipAtClients  = "federated_zip_at_clients"
	FederatedZipAtServer   = "federated_zip_at_server"
	SequenceMap            = "sequence_map"
	SequenceReduce         = "sequence_reduce"
	SequenceSum            = "sequence_sum"
)

// Info describes one catalog entry.
type Info struct {
	URI string `json:"uri"`

	// Aggregation marks operators that move values from clients to the
	// server.
	Aggregation bool `json:"aggregation"`

	// Secure marks aggregations that never reveal individual client values.
	Secure bool `json:"secure"`
}

var catalog = map[string]Info{
	FederatedAggregate:     {URI: FederatedAggregate, Aggregation: true},
	FederatedApply:         {URI: FederatedApply},
	FederatedBroadcast:     {URI: FederatedBroadcast},
	FederatedCollect:       {URI: FederatedCollect, Aggregation: true},
	FederatedEvalAtClients: {URI: FederatedEvalAtClients},
	FederatedEvalAtServer:  {URI: FederatedEvalAtServer},
	FederatedMap:           {URI: FederatedMap},
	FederatedMean:          {URI: FederatedMean, Aggregation: true},
	FederatedReduce:        {URI: FederatedReduce, Aggregation: true},
	FederatedSecureSum:     {URI: FederatedSecureSum, Aggregation: true, Secure: true},
	FederatedSum:           {URI: FederatedSum, Aggregation: true},
	FederatedValueClients:  {URI: FederatedValueClients},
	FederatedValueServer:   {URI: FederatedValueServer},
	FederatedWeightedMean:  {URI: FederatedWeightedMean, Aggregation: true},
	FederatedZipAtClients:  {URI: FederatedZipAtClients},
	FederatedZipAtServer:   {URI: FederatedZipAtServer},
	SequenceMap:            {URI: SequenceMap},
	SequenceReduce:         {URI: SequenceReduce},
	SequenceSum:            {URI: SequenceSum},
}

// Lookup returns the catalog entry for uri.
func Lookup(uri string) (Info, bool) {
	info, ok := catalog[uri]
	return info, ok
}

// URIs returns every catalog URI, sorted.
func URIs() []string {
	out := make([]string, 0, len(catalog))
	for uri := range catalog {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}

// InsecureAggregations returns the sorted URIs of aggregations that expose
// individual client values or unprotected partial results to the server.
// It is the usual forbidden set for deployments requiring secure
// aggregation.
func InsecureAggregations() []string {
	var out []string
	for uri, info := range catalog {
		if info.Aggregation && !info.Secure {
			out = append(out, uri)
		}
	}
	sort.Strings(out)
	return out
}

// Builder is the part of a tracer the helpers need. *wrapper.Tracer
// implements it.
type Builder interface {
	Intrinsic(uri string, t types.Type) (ir.BuildingBlock, error)
	Apply(fn ir.BuildingBlock, arg any) (ir.BuildingBlock, error)
}

func apply(b Builder, uri string, t *types.FunctionType, arg any) (ir.BuildingBlock, error) {
	fn, err := b.Intrinsic(uri, t)
	if err != nil {
		return nil, err
	}
	return b.Apply(fn, arg)
}

func atClients(t types.Type) *types.FederatedType {
	return &types.FederatedType{Member: t, Placement: types.Clients}
}

func allEqualAt(t types.Type, p types.Placement) *types.FederatedType {
	return &types.FederatedType{Member: t, Placement: p, AllEqual: true}
}

// federated returns the member of v's type when v is placed at p.
func federated(uri string, v ir.BuildingBlock, p types.Placement) (types.Type, error) {
	if v == nil {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: missing operand", uri)
	}
	ft, ok := v.Type().(*types.FederatedType)
	if !ok || ft.Placement != p {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: operand %s is not placed at %s", uri, v.Type(), p)
	}
	return ft.Member, nil
}

func function(uri string, fn ir.BuildingBlock) (*types.FunctionType, error) {
	if fn == nil {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: missing function operand", uri)
	}
	ft, ok := fn.Type().(*types.FunctionType)
	if !ok || ft.Parameter == nil {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: operand %s is not a unary function", uri, fn.Type())
	}
	return ft, nil
}

func sequenceElement(uri string, v ir.BuildingBlock) (types.Type, error) {
	if v == nil {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: missing operand", uri)
	}
	st, ok := v.Type().(*types.SequenceType)
	if !ok {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: operand %s is not a sequence", uri, v.Type())
	}
	return st.Element, nil
}
