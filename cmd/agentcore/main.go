// Command agentcore runs the multi-agent orchestration gateway: a cron
// scheduler, a multi-lane task runner, the orchestrator step loop, and
// the self-update pipeline, all sharing one Postgres-or-in-memory store.
package main

func main() {
	Execute()
}
