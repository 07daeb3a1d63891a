/*
Package oracle turns a page screenshot into a navigation Decision and a
UXAnalysis by asking a vision-language model.

Model output is parsed into closed variants (Action, Severity, PageType) at
this boundary; unknown values never reach the journey controller. Callers
that must not fail on model errors substitute DegradedDecision or
DegradedAnalysis. RetryingOracle adds opt-in exponential backoff for
retryable provider errors.
*/
package oracle
