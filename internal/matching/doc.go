// Package matching decides how well a request fits a resource.
//
// Every declared condition of a resource yields a Result with a Verdict and
// a weight. Aggregate folds the results into an Outcome: a resource matches
// when no condition failed and at least one was declared, and matches
// exactly when every declared condition compared for equality. SelectBest
// picks the winner among the outcomes for one request: exact matches first,
// then higher score, then earlier declaration.
//
// Weights:
//
//   - method: 1
//   - path: 2 for a literal template, 1 for placeholders, 1 (wildcard) for a
//     trailing wildcard; no path is NoConfig
//   - each path, query, header and form parameter condition: 1
//   - each request body condition: 1
//   - each eval condition: 3
package matching
