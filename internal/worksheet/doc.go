// Package worksheet loads and evaluates calculation worksheets.
//
// A worksheet declares measured quantities and a sequence of named steps,
// in YAML or (by .toml extension) TOML:
//
//	precision: 4
//	quantities:
//	  - {name: x, values: [2.0], errors: [0.1]}
//	  - {name: y, values: [3.0], errors: [0.2]}
//	steps:
//	  - {name: s, op: add, args: [x, y]}
//	  - {name: z, op: mul, args: [s, 2]}
//
// Step arguments are names of quantities or earlier steps, or numeric
// literals. A Runner evaluates the steps through a propagation engine,
// optionally capturing the derivation of the last step. A Watcher re-runs a
// worksheet when its file changes.
package worksheet
