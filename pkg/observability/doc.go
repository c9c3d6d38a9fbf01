/*
Package observability watches protocol runs without influencing them.

It provides broker subscribers and lifecycle hooks that record Prometheus
metrics and structured log lines for every published run log record and
every dispatched action. Hooks from several sources can be merged with
CombineHooks.
*/
package observability
