// Package member describes the members of an intercepted interface.
//
// A Signature is the identity used for matching: kind, logical name,
// declaring interface, ordered parameter types, async flag and generic
// arity. Overloads share a logical name and differ by parameter types;
// generic members are declared once as a definition (arity > 0, no
// parameters) and dispatched as instantiations carrying type arguments.
//
// Argument matchers are captured while a sample call runs: Any[T] records a
// wildcard for one position and Eq records an explicit value. Positions that
// were not captured match by value.
//
// A Table lists the members of one interface together with their exemption
// marker. Exemption is read only when blanket selectors are expanded.
package member
