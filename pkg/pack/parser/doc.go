// Package parser reads tenant policy packs from YAML.
//
// The parser keeps the yaml.Node tree so that every error carries the file,
// line and column of the offending element. Structural problems (unknown
// predicate keys, unsupported operators, malformed thresholds) are
// reported as *Error values wrapping pack.ErrMalformedRule; semantic checks
// that need the classification lattice live in package validator.
//
// Basic usage:
//
//	p := parser.NewParser()
//	pk, err := p.Parse("packs/hipaa.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(pk.Ref())
//
// Predicate syntax under "when":
//
//	nodeType: claims.adjudicate          # or a list
//	nodeCategory: [email, http]
//	dataContains: [PHI, PII]
//	egress: EXTERNAL                     # node egress >= EXTERNAL
//	classificationAtLeast: PHI
//	amount: "> 10000"                    # or {operator: ">", value: 10000}
//	retentionDays: {operator: ">=", value: 365}
//	all: [ {...}, {...} ]
//	any: [ {...}, {...} ]
//	not: {...}
//
// Several keys in one mapping are combined with AND.
package parser
