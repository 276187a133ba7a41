/*
Package api implements the catalog manager's wire API: a plain HTTP+JSON
request/response surface for the Control Operations, built on net/http
and encoding/json rather than gRPC (see DESIGN.md's Open Question 1
resolution).

The API server is the catalog's front door for table servers' tablet
reports, client drivers' namespace/table/type/cluster requests, and the
join flow used to grow the raft cluster:

	┌────────────── CLIENT / tablet server ──────────────┐
	│                     HTTP + JSON                     │
	└──────────────────────┬──────────────────────────────┘
	                       │
	┌──────────────────────▼──── catalog manager node ────┐
	│  pkg/api: routing, JSON (de)coding,                  │
	│  wire-code error mapping, Prometheus instrumentation │
	│                       │                               │
	│  pkg/catalog.Service: validation, ID generation,     │
	│  ER reads, Command construction                     │
	│                       │                               │
	│  pkg/manager.Manager: raft.Apply, FSM replay         │
	└───────────────────────────────────────────────────────┘

Every handler that mutates state calls through to a catalog.Service CO
method, which itself refuses to proceed unless this node's Leader State
& Lock currently admits requests; handlers translate the resulting
catalogerr.Error into a wire code via WireCode().
*/
package api
