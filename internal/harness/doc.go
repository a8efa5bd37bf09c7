// Package harness runs conformance scenarios against the interception
// layer.
//
// A scenario is a YAML file naming the CUE plans to apply, a sequence of
// calls on the test service and the assertions that must hold over the
// resulting trace:
//
//	name: audit_perform
//	description: "before and after hooks run around Perform"
//	plans: [plans/audit]
//	calls:
//	  - call: Perform(int)
//	    args: [3]
//	  - call: Return
//	    expect:
//	      value: 1
//	assertions:
//	  - type: trace_order
//	    events:
//	      - {kind: hook, hook: before, member: Perform}
//	      - {kind: hook, hook: after, member: Perform}
//	  - type: call_count
//	    member: Perform
//	    count: 1
//
// Each run builds a fresh interceptor with a deterministic clock and call
// IDs, so the same scenario always produces the same trace. RunWithGolden
// compares that trace with testdata/golden/<name>.golden.
package harness
