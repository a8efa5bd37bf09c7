// Package engine implements interception dispatch.
//
// A forwarding adapter implements the intercepted interface and routes every
// member through a Caller. For each call the engine builds an Invocation,
// reads the matching rules from the Registry snapshot and runs the hook
// pipeline around the real (or replaced) call.
//
// PIPELINE:
//
//  1. Before callbacks, all matching rules in registration order, on the
//     calling goroutine.
//  2. The last registered OnInvoke replaces the call. Otherwise the real
//     member runs.
//  3. On success, OnReturn callbacks chain over the value in rule order,
//     then After callbacks run and observe the final value.
//  4. On failure, OnCatch callbacks observe the error. They never suppress it.
//  5. Finally callbacks run once the call has succeeded or failed, even if a
//     completion callback returned an error.
//
// Asynchronous members go through the same steps. Steps 3 to 5 are attached
// as a continuation of the member's task and run on whichever goroutine
// completes it. Synchronous members are dispatched as already-completed
// tasks, so both shapes share one code path and produce the same hook order.
//
// ERRORS:
//
// A failed call is returned as *InvocationError wrapping the original error.
// A callback returning an error aborts the remaining callbacks of that phase
// and is returned as *HookError. A Before failure skips the call and all
// completion callbacks.
//
// CONCURRENCY:
//
// Each call allocates its own Invocation. The Registry hands out immutable
// snapshots, so registration never disturbs calls already in flight. Call
// sequence numbers come from a logical Clock, never from wall time.
package engine
