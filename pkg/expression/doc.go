// Package expression resolves ${...} placeholders against an exchange.
//
// A placeholder names an evaluator by the prefix before its first dot and
// hands the remainder to that evaluator:
//
//	${random.alphanumeric(length=8,uppercase=true)}
//	${datetime.now.iso8601_datetime}
//	${system.server.url}
//	${context.request.headers.X-Correlation-Id}
//	${context.request.body:$.order.id}
//	${context.request.body://order/id}
//	${expr.request.method == "POST" && request.queryParams.dryRun == "true"}
//
// A fallback may follow ":-": ${context.request.queryParams.page:-1}. The
// fallback is used when the evaluator has no value or fails; without one the
// placeholder resolves to the empty string.
//
// Evaluation never fails the caller. Unknown evaluators and evaluator errors
// are logged and degrade to the fallback, so a single bad placeholder cannot
// break an exchange.
//
// Additional evaluators are registered with Registry.Register; the store
// package contributes "stores" this way.
package expression
