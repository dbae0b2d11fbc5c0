// Package varcalc implements a calculator for arithmetic, logical, and bitwise
// expressions over float64 values with named variables.
//
// The syntax is the usual infix notation. "1 + a * 3" multiplies before it
// adds, "2^3^2" is "2^(3^2)", and "4!" is a factorial. Comparisons and logical
// operators produce 1 or 0, since there are no booleans. Bitwise operators and
// shifts work on the 32-bit two's-complement truncation of their operands, so
// "~3" is -4 and "-5 >>> 2" is 1073741822. Number literals may be written in
// binary or hexadecimal with 0b and 0x prefixes, and digit groups may be split
// with underscores, as in 0b1010_0101 or 123_456.
//
// Variable names are lowercase: a letter followed by letters, digits, and
// underscores. PI and E are reserved constants which variables never shadow.
// A variable missing from the context evaluates to NaN instead of failing.
//
// Parse an expression once and evaluate it against many contexts, even
// concurrently, or use Evaluate to do both in one call.
package varcalc
