// Package observe provides ready-made consumers for breaker state-change
// events: a slog transition logger and a Prometheus collector. The breaker
// core stays decoupled from both; wire them through OnStateChange.
package observe
