// Package trace records what happened to intercepted calls as
// deterministic, comparable events.
//
// Arguments and results are converted to a small sealed set of values
// (Null, String, Int, Bool, Array, Object) and rendered as RFC 8785
// canonical JSON, so a trace of the same calls is byte-identical across
// runs. Golden files and the SQLite store both use this form.
//
// Key constraints:
//   - no floats: ValueOf renders them as decimal strings
//   - object keys sort by UTF-16 code units
//   - strings are NFC normalized at serialization
//   - event order comes from logical counters, never wall time
package trace
