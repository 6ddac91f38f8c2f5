// Package governance coordinates runtime safety controls such as rate limiting,
// circuit breaking, retries, and timeout enforcement. The REST function
// executor wraps its upstream calls in the breaker, retry policy and timeout
// manager, and the data plane rate-limits its chat-completions ingress;
// chat-completion calls to upstream LLM providers do not use this package.
//
// In addition to the core control loops, the package keeps lightweight admin
// helpers that surface governance metrics and allow zero-downtime configuration
// reloads. The data plane depends on these primitives to protect upstream
// services without introducing extra infrastructure coupling.
package governance
