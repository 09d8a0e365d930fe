// Package request reads query requests from YAML, JSON and CUE documents.
//
// A request document names one statement shape at the top level and
// describes its clauses with the same tree queryir.Tree produces:
//
//	find:
//	  table: employees
//	  columns: [id, firstname, lastname, age]
//	  projection: [{include: firstname}, {include: lastname}]
//	  selection:
//	    and:
//	      - or: [{eq: {key: age, value: 18}}, {eq: {key: age, value: 23}}]
//	      - ne: {key: firstname, value: James}
//	  orderby: [{asc: firstname}, {desc: id}]
//	  limit: 10
//	  offset: 20
//
// Literals that JSON cannot express directly use single-key tagged objects
// ({"$date": ...}, {"$binary": ...}, {"$decimal": ...}, {"$float": ...},
// {"$absent": true}). See ir.FromAny.
//
// Structural problems are reported as *querysql.CompileError values so a
// document error and a compile error carry the same codes.
package request
