/*
Package report derives statistics and export documents from a finished
journey.Journey without re-running it.

Summarize aggregates steps into a Summary (average conversion score, issue
counts, top suggestions, per-step grades). The exporters render the journey as
a JSON document, a YAML document, a plain-text summary or a Graphviz DOT map
of the visited pages. Gate evaluates a boolean expression over a Summary so
that CI pipelines can fail on poor UX.
*/
package report
