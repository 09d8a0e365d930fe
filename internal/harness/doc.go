// Package harness provides a conformance testing framework for the query
// compiler.
//
// A scenario is a YAML file listing request documents and the outcome each
// one should have:
//
//	name: find_basic
//	description: Projection, selection and paging
//	cases:
//	  - name: adults
//	    request:
//	      find:
//	        table: employees
//	        columns: [id, firstname, age]
//	        selection: {gte: {key: age, value: 18}}
//	        limit: 10
//	    expect:
//	      sql: "SELECT `id`, `firstname`, `age` FROM `employees` WHERE `age` >= ? LIMIT 10;"
//	      params: [18]
//	assertions:
//	  - type: placeholder_parity
//
// Scenarios with execute: true (sqlite dialect only) also run every
// compiled statement against a fresh in-memory database after the setup
// statements, so expectations can name result rows and affected-row counts
// and final_state assertions can inspect the tables afterwards.
//
// Golden files capture the canonical JSON snapshot of a run (see Snapshot)
// and are compared with goldie. Run the package tests with -update to
// regenerate them.
package harness
