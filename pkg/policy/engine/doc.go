// Package engine evaluates a bot's compiled node graph against a composite
// policy pack and decides which controls must be injected, which nodes
// block publication and which operations need human approval.
//
// The evaluator is a pure function of (composite, nodes, now). It reads no
// clock, performs no I/O and keeps no state between calls, so the same
// inputs always produce the same Result and a single Evaluator may be
// shared by any number of goroutines.
//
// # Architecture
//
// The engine is built from four pieces:
//
//  1. Matcher - evaluates each rule predicate against each node
//  2. ResolveControls - unions the controls of matched rules per node
//  3. ResolveApprovals - derives human-in-the-loop gates and deadlines
//  4. Enforcer - applies the per-classification egress, retention and
//     mandatory control floor, independent of rules
//
// # Evaluation Flow
//
//	[]NodeContext
//	     ↓
//	INIT                    validate ids, classifications, egress
//	     ↓
//	MATCH                   (rule, node) pairs
//	     ↓
//	RESOLVE_CONTROLS        rule controls ∪ baseline controls
//	     ↓
//	RESOLVE_APPROVALS       requiredFor, category wildcards, HITL_APPROVAL
//	     ↓
//	CHECK_EGRESS_RETENTION  blocks and soft warnings
//	     ↓
//	FINALIZE                passed = no blocks
//
// Only INIT can fail, with an error wrapping ErrInvalidContext. Everything
// found afterwards is returned in the Result: a failed compliance check is
// data, not an error.
//
// # Basic Usage
//
//	ev, err := engine.NewEvaluator(engine.DefaultEngineConfig(), logger)
//	if err != nil {
//	    return err
//	}
//	composite, err := registry.ResolveComposite(tenantID, refs)
//	if err != nil {
//	    return err
//	}
//	result, err := ev.Evaluate(ctx, composite, nodes, time.Now())
//	if err != nil {
//	    return err // compiler bug: bad node contexts
//	}
//	if !result.Passed {
//	    // refuse to publish, show result.Blocks
//	}
//
// # Concurrency
//
// Pool runs evaluations on a fixed number of goroutines sized to the CPU
// count. Callers that need a deadline pass one in the context; the
// evaluation itself always completes.
//
// # Runtime Re-validation
//
// CheckControlsPresent reports injected controls a running bot does not
// have, and Drift reports what a runtime evaluation with live data adds
// to the compile-time one.
package engine
